package telemetry

import "sync"

// AideCostTotals accumulates cost and token usage across every LLM call
// telemetry has recorded for one aide. Used for dashboards and budget
// alerts; never consulted by the reducer or orchestrator's hot path.
type AideCostTotals struct {
	AideID           string
	CallCount        int
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	CostUSD          float64
}

// Accumulate folds recs (only llm_call rows contribute token/cost totals)
// into totals and returns the updated value.
func Accumulate(totals AideCostTotals, recs []Record) AideCostTotals {
	for _, r := range recs {
		if r.EventType != EventLLMCall {
			continue
		}
		totals.CallCount++
		totals.InputTokens += r.InputTokens
		totals.OutputTokens += r.OutputTokens
		totals.CacheReadTokens += r.CacheReadTokens
		totals.CacheWriteTokens += r.CacheWriteTokens
		totals.CostUSD += r.CostUSD
	}
	return totals
}

// CostLedger keeps per-aide running totals in memory, reset on process
// restart; durable rollups are a billing collaborator's concern.
type CostLedger struct {
	mu     sync.Mutex
	totals map[string]AideCostTotals
}

func NewCostLedger() *CostLedger {
	return &CostLedger{totals: map[string]AideCostTotals{}}
}

// Add folds recs into the per-aide totals.
func (l *CostLedger) Add(recs []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range recs {
		t := l.totals[r.AideID]
		t.AideID = r.AideID
		l.totals[r.AideID] = Accumulate(t, []Record{r})
	}
}

// Totals reports the running rollup for aideID; a never-seen aide reports
// zeroes.
func (l *CostLedger) Totals(aideID string) AideCostTotals {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.totals[aideID]
	t.AideID = aideID
	return t
}
