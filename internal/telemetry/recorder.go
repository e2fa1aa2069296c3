package telemetry

import (
	"time"

	"github.com/kittclouds/aide/internal/llm"
)

// LLMCallRecord captures one LLM call's telemetry: tier, model, timing,
// token accounting, parser yield, and cost.
type LLMCallRecord struct {
	Tier          string
	Model         string
	PromptVer     string
	TTFC          time.Duration
	TTC           time.Duration
	Usage         llm.Usage
	LinesEmitted  int
	LinesAccepted int
	LinesRejected int
	Escalated     bool
	Error         string
	CostUSD       float64
	Shadow        bool // true for shadow-model calls: recorded, never applied
}

// Recorder accumulates one turn's telemetry as the orchestrator pipeline
// runs, then finalizes into relational Records on turn completion.
type Recorder struct {
	AideID    string
	UserID    string
	MessageID string

	StartedAt time.Time

	calls []LLMCallRecord

	DirectEdit  bool
	EditLatency time.Duration
	DirectError string
}

// NewRecorder starts a recorder for one turn.
func NewRecorder(aideID, userID, messageID string) *Recorder {
	return &Recorder{AideID: aideID, UserID: userID, MessageID: messageID, StartedAt: time.Now()}
}

// AddLLMCall appends one production or shadow LLM call's telemetry.
func (r *Recorder) AddLLMCall(c LLMCallRecord) {
	r.calls = append(r.calls, c)
}

// Finalize produces the relational Records for this turn: one row per
// recorded LLM call, plus a direct_edit row if this turn was a direct edit.
// Shadow calls are tagged with their own model but otherwise recorded
// identically; the recorder makes no distinction a query over the table
// couldn't already make from the model column.
func (r *Recorder) Finalize() []Record {
	now := time.Now().UTC().Format(time.RFC3339)
	var out []Record

	for _, c := range r.calls {
		reason := ""
		if c.Escalated {
			reason = "tier_escalated"
		}
		out = append(out, Record{
			Timestamp:        now,
			AideID:           r.AideID,
			UserID:           r.UserID,
			EventType:        EventLLMCall,
			Tier:             c.Tier,
			Model:            c.Model,
			PromptVer:        c.PromptVer,
			TTFCMillis:       c.TTFC.Milliseconds(),
			TTCMillis:        c.TTC.Milliseconds(),
			InputTokens:      c.Usage.InputTokens,
			OutputTokens:     c.Usage.OutputTokens,
			CacheReadTokens:  c.Usage.CacheReadTokens,
			CacheWriteTokens: c.Usage.CacheWriteTokens,
			LinesEmitted:     c.LinesEmitted,
			LinesAccepted:    c.LinesAccepted,
			LinesRejected:    c.LinesRejected,
			Escalated:        c.Escalated,
			EscalationReason: reason,
			CostUSD:          c.CostUSD,
			MessageID:        r.MessageID,
			Error:            c.Error,
		})
	}

	if r.DirectEdit {
		out = append(out, Record{
			Timestamp:         now,
			AideID:            r.AideID,
			UserID:            r.UserID,
			EventType:         EventDirectEdit,
			EditLatencyMillis: r.EditLatency.Milliseconds(),
			MessageID:         r.MessageID,
			Error:             r.DirectError,
		})
	}

	return out
}
