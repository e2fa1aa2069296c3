package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	l := New(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !l.Allow("user1") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if l.Allow("user1") {
		t.Error("fourth call must be denied")
	}
	if !l.Allow("user2") {
		t.Error("distinct keys have independent quotas")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	l := New(1, 30*time.Millisecond)

	if !l.Allow("k") {
		t.Fatal("first call allowed")
	}
	if l.Allow("k") {
		t.Fatal("quota exhausted")
	}
	time.Sleep(50 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("expired window must reset transparently")
	}
}

func TestLimiterUnlimited(t *testing.T) {
	l := New(0, time.Hour)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatal("unset limit means unlimited")
		}
	}
	if l.Remaining("k") != -1 {
		t.Error("unlimited reports -1 remaining")
	}
}

func TestLimiterRemaining(t *testing.T) {
	l := New(2, time.Hour)
	if l.Remaining("k") != 2 {
		t.Errorf("fresh key has full quota, got %d", l.Remaining("k"))
	}
	l.Allow("k")
	if l.Remaining("k") != 1 {
		t.Errorf("expected 1 remaining, got %d", l.Remaining("k"))
	}
}

func TestLimiterSweep(t *testing.T) {
	l := New(5, 10*time.Millisecond)
	l.Allow("a")
	l.Allow("b")
	time.Sleep(30 * time.Millisecond)
	l.Allow("c")

	if removed := l.Sweep(); removed != 2 {
		t.Errorf("expected 2 expired keys swept, got %d", removed)
	}
	if len(l.counts) != 1 {
		t.Errorf("expected only the live key kept, got %d", len(l.counts))
	}
}
