// Package classifier assigns each incoming turn to a model tier (L2, L3, or
// L4) using a rule-based, first-match-wins evaluation over the message text
// and the current snapshot. No LLM call is involved in classification.
package classifier

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
)

// isJoiner returns true for punctuation that commonly appears inside a
// multiword phrase ("set up a", "what's") and should not split it into
// separate tokens during canonicalization.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// canonicalize lowercases, folds curly quotes and dashes to their plain
// forms, and collapses any run of separators to a single space, so that
// "What's the budget?" and "what's   the budget" canonicalize identically
// before Aho-Corasick matching.
func canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// PhraseMatcher tests whether a message contains any phrase from a
// configured set (structural phrases, query starters, domain phrases),
// using a single Aho-Corasick automaton so an arbitrarily long phrase list
// costs one linear scan per message rather than one strings.Contains per
// phrase.
type PhraseMatcher struct {
	ac      *ahocorasick.Automaton
	phrases []string
}

// NewPhraseMatcher compiles phrases into a matcher. An empty phrase list
// yields a matcher that never matches.
func NewPhraseMatcher(phrases []string) (*PhraseMatcher, error) {
	canon := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if c := canonicalize(p); c != "" {
			canon = append(canon, c)
		}
	}
	if len(canon) == 0 {
		return &PhraseMatcher{phrases: canon}, nil
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(canon).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	return &PhraseMatcher{ac: automaton, phrases: canon}, nil
}

// ContainsAny reports whether text contains any configured phrase.
func (m *PhraseMatcher) ContainsAny(text string) bool {
	if m.ac == nil {
		return false
	}
	matches := m.ac.FindAllOverlapping([]byte(canonicalize(text)))
	return len(matches) > 0
}

// StartsWithAny reports whether text, once canonicalized, begins with any
// configured phrase; used for query-starter detection ("how many", "who",
// "what's") where the phrase must lead the message rather than appear
// anywhere inside it.
func (m *PhraseMatcher) StartsWithAny(text string) bool {
	canon := canonicalize(text)
	for _, p := range m.phrases {
		if strings.HasPrefix(canon, p) {
			return true
		}
	}
	return false
}
