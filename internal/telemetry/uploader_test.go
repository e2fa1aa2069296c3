package telemetry

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePutter struct {
	mu       sync.Mutex
	puts     map[string][]byte
	failures int // fail this many calls before succeeding
	calls    int
}

func newFakePutter() *fakePutter {
	return &fakePutter{puts: map[string][]byte{}}
}

func (p *fakePutter) PutArtifact(key string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("transient store error")
	}
	p.puts[key] = append([]byte(nil), data...)
	return nil
}

func (p *fakePutter) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.puts))
	for k := range p.puts {
		out = append(out, k)
	}
	return out
}

func TestUploaderGroupsByAide(t *testing.T) {
	q := NewQueue(100)
	p := newFakePutter()
	u := NewUploader(q, p, zerolog.Nop(), 100, time.Hour)

	q.Enqueue(Record{AideID: "aide1", EventType: EventLLMCall})
	q.Enqueue(Record{AideID: "aide2", EventType: EventLLMCall})
	q.Enqueue(Record{AideID: "aide1", EventType: EventDirectEdit})

	u.flushOnce()

	keys := p.keys()
	if len(keys) != 2 {
		t.Fatalf("expected one artifact per aide, got %v", keys)
	}
	var aide1Key string
	for _, k := range keys {
		if !strings.HasPrefix(k, "flight-logs/") || !strings.HasSuffix(k, ".jsonl") {
			t.Errorf("key layout wrong: %s", k)
		}
		if strings.Contains(k, "aide1") {
			aide1Key = k
		}
	}
	if aide1Key == "" {
		t.Fatal("no aide1 batch written")
	}
	body := string(p.puts[aide1Key])
	if strings.Count(body, "\n") != 2 {
		t.Errorf("aide1 batch must hold 2 JSONL lines, got %q", body)
	}
}

func TestUploaderRetriesOnce(t *testing.T) {
	q := NewQueue(100)
	p := newFakePutter()
	p.failures = 1
	u := NewUploader(q, p, zerolog.Nop(), 100, time.Hour)

	q.Enqueue(Record{AideID: "aide1"})
	u.flushOnce()

	if p.calls != 2 {
		t.Errorf("expected initial attempt plus one retry, got %d calls", p.calls)
	}
	if len(p.keys()) != 1 {
		t.Error("batch must land on the retry")
	}
}

func TestUploaderDropsAfterPermanentFailure(t *testing.T) {
	q := NewQueue(100)
	p := newFakePutter()
	p.failures = 10
	u := NewUploader(q, p, zerolog.Nop(), 100, time.Hour)

	q.Enqueue(Record{AideID: "aide1"})
	u.flushOnce() // must not panic and must not loop forever

	if len(p.keys()) != 0 {
		t.Error("permanently failing batch must be dropped")
	}
	if q.Len() != 0 {
		t.Error("dropped batch must not be requeued")
	}
}

func TestUploaderStopDrains(t *testing.T) {
	q := NewQueue(100)
	p := newFakePutter()
	u := NewUploader(q, p, zerolog.Nop(), 2, time.Hour)

	for i := 0; i < 5; i++ {
		q.Enqueue(Record{AideID: "aide1"})
	}

	done := make(chan struct{})
	go func() {
		u.Run()
		close(done)
	}()
	u.Stop(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if q.Len() != 0 {
		t.Errorf("shutdown must drain the queue, %d left", q.Len())
	}
}

func TestRecorderFinalize(t *testing.T) {
	r := NewRecorder("aide1", "user1", "msg1")
	r.AddLLMCall(LLMCallRecord{
		Tier: "L2", Model: "fast-model",
		TTFC: 120 * time.Millisecond, TTC: 900 * time.Millisecond,
		LinesEmitted: 3, LinesAccepted: 2, LinesRejected: 1,
		CostUSD: 0.0012,
	})
	r.AddLLMCall(LLMCallRecord{Tier: "L2", Model: "shadow-model", Shadow: true})

	recs := r.Finalize()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	first := recs[0]
	if first.EventType != EventLLMCall || first.Model != "fast-model" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.TTFCMillis != 120 || first.TTCMillis != 900 {
		t.Errorf("latency fields wrong: %+v", first)
	}
	if first.LinesAccepted != 2 || first.LinesRejected != 1 {
		t.Errorf("parser yield fields wrong: %+v", first)
	}
}

func TestRecorderDirectEdit(t *testing.T) {
	r := NewRecorder("aide1", "user1", "")
	r.DirectEdit = true
	r.EditLatency = 42 * time.Millisecond

	recs := r.Finalize()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].EventType != EventDirectEdit || recs[0].EditLatencyMillis != 42 {
		t.Errorf("unexpected record: %+v", recs[0])
	}
}

func TestCostLedger(t *testing.T) {
	l := NewCostLedger()
	l.Add([]Record{
		{AideID: "aide1", EventType: EventLLMCall, InputTokens: 100, OutputTokens: 50, CostUSD: 0.002},
		{AideID: "aide1", EventType: EventLLMCall, InputTokens: 200, OutputTokens: 80, CostUSD: 0.003},
		{AideID: "aide1", EventType: EventDirectEdit}, // not an llm_call, no contribution
		{AideID: "aide2", EventType: EventLLMCall, CostUSD: 1},
	})

	t1 := l.Totals("aide1")
	if t1.CallCount != 2 || t1.InputTokens != 300 || t1.OutputTokens != 130 {
		t.Errorf("aide1 totals wrong: %+v", t1)
	}
	if diff := t1.CostUSD - 0.005; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("aide1 cost wrong: %v", t1.CostUSD)
	}
	if got := l.Totals("aide2").CostUSD; got != 1 {
		t.Errorf("aide2 cost wrong: %v", got)
	}
	if got := l.Totals("unseen"); got.CallCount != 0 {
		t.Errorf("unseen aide must report zeroes: %+v", got)
	}
}
