package classifier

import (
	"testing"

	"github.com/kittclouds/aide/internal/kernel"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("compile classifier: %v", err)
	}
	return c
}

func snapWith(entities ...*kernel.Entity) kernel.Snapshot {
	s := kernel.Empty()
	for _, e := range entities {
		s.Entities[e.ID] = e
	}
	return s
}

func TestFirstTurnEmptySnapshotIsL3(t *testing.T) {
	c := newClassifier(t)
	d := c.Classify("I run a poker league, 8 players, every other Thursday.", kernel.Empty())
	if d.Tier != TierL3 {
		t.Errorf("expected L3 for first turn, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestRoutineUpdateIsL2(t *testing.T) {
	c := newClassifier(t)
	snap := snapWith(&kernel.Entity{ID: "player_mike", Parent: "roster", Display: "card"})
	d := c.Classify("Mike's out this week.", snap)
	if d.Tier != TierL2 {
		t.Errorf("expected L2 for routine update, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestQuestionIsL4(t *testing.T) {
	c := newClassifier(t)
	snap := snapWith(&kernel.Entity{ID: "roster", Parent: "root"})

	for _, msg := range []string{
		"How many players are active?",
		"who is hosting next week",
		"what's the buy-in",
	} {
		d := c.Classify(msg, snap)
		if d.Tier != TierL4 {
			t.Errorf("%q: expected L4, got %s (%s)", msg, d.Tier, d.Reason)
		}
	}
}

func TestStructuralPhraseIsL3(t *testing.T) {
	c := newClassifier(t)
	snap := snapWith(&kernel.Entity{ID: "roster", Parent: "root"})

	for _, msg := range []string{
		"add a section for snacks",
		"reorganize the schedule by month",
		"set up a payment tracker",
	} {
		d := c.Classify(msg, snap)
		if d.Tier != TierL3 {
			t.Errorf("%q: expected L3, got %s (%s)", msg, d.Tier, d.Reason)
		}
	}
}

func TestAddNewEntityRule(t *testing.T) {
	c := newClassifier(t)

	// No matching entity: structural.
	snap := snapWith(&kernel.Entity{ID: "roster", Parent: "root", Display: "Roster"})
	d := c.Classify("add a new standings table", snap)
	if d.Tier != TierL3 {
		t.Errorf("expected L3 when no entity matches, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestMultiItemIntroductionIsL3(t *testing.T) {
	c := newClassifier(t)
	snap := snapWith(&kernel.Entity{ID: "league", Parent: "root", Display: "League"})

	d := c.Classify("here are the players: mike, dave, sarah, tom", snap)
	if d.Tier != TierL3 {
		t.Errorf("expected L3 for multi-item introduction, got %s (%s)", d.Tier, d.Reason)
	}

	// With a table already present, the same message is routine.
	withTable := snapWith(
		&kernel.Entity{ID: "league", Parent: "root", Display: "League"},
		&kernel.Entity{ID: "standings", Parent: "root", Props: map[string]interface{}{"kind": "table"}},
	)
	d = c.Classify("here are the players: mike, dave, sarah, tom", withTable)
	if d.Tier != TierL2 {
		t.Errorf("expected L2 when a table exists, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestDomainPhraseIsL3WithoutMatchingSubtree(t *testing.T) {
	c := newClassifier(t)
	snap := snapWith(&kernel.Entity{ID: "league", Parent: "root", Display: "League"})

	d := c.Classify("budget is 2400 for the season", snap)
	if d.Tier != TierL3 {
		t.Errorf("expected L3 for unseeded domain phrase, got %s (%s)", d.Tier, d.Reason)
	}

	// A subtree whose display name appears in the message counts as seeded.
	seeded := snapWith(&kernel.Entity{ID: "budget", Parent: "root", Display: "budget"})
	d = c.Classify("budget is 2400 for the season", seeded)
	if d.Tier != TierL2 {
		t.Errorf("expected L2 for seeded domain phrase, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestRemovedEntitiesIgnored(t *testing.T) {
	c := newClassifier(t)
	snap := snapWith(&kernel.Entity{ID: "roster", Parent: "root", Removed: true})
	d := c.Classify("hello there", snap)
	// Only a removed entity exists; len(entities) != 0 so the first-turn rule
	// does not fire, and nothing else matches.
	if d.Tier != TierL2 {
		t.Errorf("expected L2, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"What's   the Budget?": "what's the budget",
		"SET UP A tracker":     "set up a tracker",
		"a—b":                  "a-b",
	}
	for in, want := range cases {
		if got := canonicalize(in); got != want {
			t.Errorf("canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhraseMatcher(t *testing.T) {
	m, err := NewPhraseMatcher([]string{"set up a", "how many"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !m.ContainsAny("could you set up a tracker") {
		t.Error("ContainsAny missed an inner phrase")
	}
	if m.ContainsAny("nothing relevant here") {
		t.Error("ContainsAny false positive")
	}
	if !m.StartsWithAny("How many players?") {
		t.Error("StartsWithAny missed a leading phrase")
	}
	if m.StartsWithAny("tell me how many players") {
		t.Error("StartsWithAny must require the phrase to lead")
	}

	empty, err := NewPhraseMatcher(nil)
	if err != nil {
		t.Fatalf("compile empty: %v", err)
	}
	if empty.ContainsAny("anything") {
		t.Error("empty matcher must never match")
	}
}
