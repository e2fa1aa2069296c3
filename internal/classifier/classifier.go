package classifier

import (
	"strconv"
	"strings"

	"github.com/kittclouds/aide/internal/kernel"
)

// Decision is the outcome of classifying one turn: the chosen tier and a
// short human-readable reason, echoed back to the client in the
// "classification" frame.
type Decision struct {
	Tier   Tier
	Reason string
}

// Classifier is a compiled, reusable rule evaluator. Build once per process
// (or per config reload) and reuse across turns; it holds no per-turn state.
type Classifier struct {
	cfg        Config
	structural *PhraseMatcher
	queries    *PhraseMatcher
	domain     *PhraseMatcher
}

// New compiles cfg's phrase lists into matchers.
func New(cfg Config) (*Classifier, error) {
	structural, err := NewPhraseMatcher(cfg.StructuralPhrases)
	if err != nil {
		return nil, err
	}
	queries, err := NewPhraseMatcher(cfg.QueryStarters)
	if err != nil {
		return nil, err
	}
	domain, err := NewPhraseMatcher(cfg.DomainPhrases)
	if err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg, structural: structural, queries: queries, domain: domain}, nil
}

// Classify assigns a tier to message given the current snapshot, applying
// the rule order first-match-wins.
func (c *Classifier) Classify(message string, snap kernel.Snapshot) Decision {
	if m := c.cfg.addNewRegexp().FindStringSubmatch(message); m != nil {
		if !entityMatches(snap, m[1]) {
			return Decision{TierL3, "add-new-entity with no existing match"}
		}
	}

	if c.structural.ContainsAny(message) {
		return Decision{TierL3, "structural phrase detected"}
	}

	if strings.Contains(message, "?") || c.queries.StartsWithAny(message) {
		return Decision{TierL4, "query phrasing detected"}
	}

	if len(snap.Entities) == 0 {
		return Decision{TierL3, "first turn, empty snapshot"}
	}

	if c.domain.ContainsAny(message) && !hasMatchingChildTree(snap, message) {
		return Decision{TierL3, "domain-specific introduction phrase with no matching subtree"}
	}

	if isMultiItemIntroduction(message, c.cfg) && !hasAnyTable(snap) {
		return Decision{TierL3, "multi-item introduction with no existing table"}
	}

	return Decision{TierL2, "routine update"}
}

// entityMatches reports whether any live entity's display name or id
// case-insensitively matches name.
func entityMatches(snap kernel.Snapshot, name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return false
	}
	for _, e := range snap.Entities {
		if e.Removed {
			continue
		}
		if strings.ToLower(e.Display) == needle || strings.ToLower(e.ID) == needle {
			return true
		}
		if strings.Contains(strings.ToLower(e.Display), needle) {
			return true
		}
	}
	return false
}

// hasMatchingChildTree reports whether any live entity's subtree looks
// related to message; a coarse heuristic: any live entity's display name
// appears as a substring of message.
func hasMatchingChildTree(snap kernel.Snapshot, message string) bool {
	lower := strings.ToLower(message)
	for _, e := range snap.Entities {
		if e.Removed || e.Display == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(e.Display)) {
			return true
		}
	}
	return false
}

// hasAnyTable reports whether the snapshot already contains a live entity
// whose props mark it as tabular (props["kind"] == "table"). An entity is
// not counted as a table merely for having children.
func hasAnyTable(snap kernel.Snapshot) bool {
	for _, e := range snap.Entities {
		if e.Removed {
			continue
		}
		if kind, _ := e.Props["kind"].(string); kind == "table" {
			return true
		}
	}
	return false
}

// isMultiItemIntroduction reports whether message looks like it is
// introducing several items at once: either enough comma-separated segments,
// or enough numeric segments, paired with a configured intro word.
func isMultiItemIntroduction(message string, cfg Config) bool {
	lower := strings.ToLower(message)
	hasIntro := false
	for _, w := range cfg.IntroWords {
		if strings.Contains(lower, w) {
			hasIntro = true
			break
		}
	}
	if !hasIntro {
		return false
	}

	segments := strings.Split(message, ",")
	if len(segments) >= cfg.MinCommaSegments {
		return true
	}

	numeric := 0
	for _, seg := range strings.Fields(message) {
		if _, err := strconv.ParseFloat(strings.Trim(seg, ".,"), 64); err == nil {
			numeric++
		}
	}
	return numeric >= cfg.MinNumericSegments
}
