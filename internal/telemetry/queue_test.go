package telemetry

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10)
	for _, id := range []string{"a", "b", "c"} {
		if dropped := q.Enqueue(Record{AideID: id}); dropped {
			t.Errorf("no drop expected enqueueing %s", id)
		}
	}
	got := q.DrainUpTo(2)
	if len(got) != 2 || got[0].AideID != "a" || got[1].AideID != "b" {
		t.Errorf("expected [a b], got %+v", got)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 remaining, got %d", q.Len())
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	q := NewQueue(3)

	drops := 0
	for i, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if q.Enqueue(Record{AideID: id}) {
			drops++
			if i < 3 {
				t.Errorf("drop before capacity reached, at %s", id)
			}
		}
	}
	if drops != 2 {
		t.Errorf("expected 2 drops, got %d", drops)
	}
	if q.DroppedCount() != 2 {
		t.Errorf("expected DroppedCount 2, got %d", q.DroppedCount())
	}

	got := q.DrainUpTo(10)
	if len(got) != 3 {
		t.Fatalf("expected the last 3 records, got %d", len(got))
	}
	for i, want := range []string{"r3", "r4", "r5"} {
		if got[i].AideID != want {
			t.Errorf("slot %d: expected %s, got %s", i, want, got[i].AideID)
		}
	}
}

func TestQueueDrainEmpty(t *testing.T) {
	q := NewQueue(3)
	if got := q.DrainUpTo(5); len(got) != 0 {
		t.Errorf("draining empty queue yields nothing, got %+v", got)
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	if q.capacity != defaultCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultCapacity, q.capacity)
	}
}
