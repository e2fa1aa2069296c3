// Package persistence is the hydration and durability facade: an
// append-only event log plus a materialized snapshot, conversation history,
// optional published artifacts, and a per-aide access check; everything
// the orchestrator needs on the load/persist boundary of a turn.
package persistence

import "github.com/kittclouds/aide/internal/kernel"

// Blueprint describes an aide's LLM-facing persona, assembled by the
// orchestrator into the system prompt.
type Blueprint struct {
	Identity string `json:"identity"`
	Voice    string `json:"voice"`
	Prompt   string `json:"prompt"`
}

// ConversationMessage is one row of an aide's chat history.
type ConversationMessage struct {
	Role      string `json:"role"` // "user" | "assistant" | "system"
	Content   string `json:"content"`
	Timestamp string `json:"ts"`
}

// HydrateResult is the cold-load payload: a ready-to-render snapshot plus
// the full event log, blueprint, conversation, and a reconciliation hash.
// Clients must not replay events to reconstruct state from this.
type HydrateResult struct {
	Snapshot     kernel.Snapshot
	Events       []kernel.Event
	Blueprint    Blueprint
	Messages     []ConversationMessage
	SnapshotHash string
}

// LoadForTurnResult is what the orchestrator fetches inside the per-aide
// lock before running a turn.
type LoadForTurnResult struct {
	Snapshot         kernel.Snapshot
	ConversationTail []ConversationMessage
	Blueprint        Blueprint
}

// TelemetryEventType enumerates the relational telemetry table's event_type
// column values.
type TelemetryEventType string

const (
	TelemetryLLMCall    TelemetryEventType = "llm_call"
	TelemetryDirectEdit TelemetryEventType = "direct_edit"
	TelemetryUndo       TelemetryEventType = "undo"
	TelemetryEscalation TelemetryEventType = "escalation"
)

// TelemetryRecord is the relational telemetry table's row contract. The
// persistence facade only accepts and stores these; it computes nothing.
type TelemetryRecord struct {
	Timestamp         string             `json:"ts"`
	AideID            string             `json:"aide_id"`
	UserID            string             `json:"user_id"`
	EventType         TelemetryEventType `json:"event_type"`
	Tier              string             `json:"tier,omitempty"`
	Model             string             `json:"model,omitempty"`
	PromptVer         string             `json:"prompt_ver,omitempty"`
	TTFCMillis        int64              `json:"ttfc_ms,omitempty"`
	TTCMillis         int64              `json:"ttc_ms,omitempty"`
	InputTokens       int                `json:"input_tokens,omitempty"`
	OutputTokens      int                `json:"output_tokens,omitempty"`
	CacheReadTokens   int                `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens  int                `json:"cache_write_tokens,omitempty"`
	LinesEmitted      int                `json:"lines_emitted,omitempty"`
	LinesAccepted     int                `json:"lines_accepted,omitempty"`
	LinesRejected     int                `json:"lines_rejected,omitempty"`
	Escalated         bool               `json:"escalated,omitempty"`
	EscalationReason  string             `json:"escalation_reason,omitempty"`
	CostUSD           float64            `json:"cost_usd,omitempty"`
	EditLatencyMillis int64              `json:"edit_latency_ms,omitempty"`
	MessageID         string             `json:"message_id,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// PublishOptions controls how a rendered artifact is exposed at its slug.
type PublishOptions struct {
	ContentType string
	Public      bool
}

// Store is the opaque persistence facade the orchestrator and hydration
// endpoint depend on. SQLiteStore is the sole implementation.
type Store interface {
	Hydrate(aideID string) (HydrateResult, error)
	LoadForTurn(aideID string) (LoadForTurnResult, error)
	PersistTurn(aideID string, appliedEvents []kernel.Event, newSnapshot kernel.Snapshot, userMessage, assistantSummary string) error
	Publish(aideID, slug string, renderedBytes []byte, opts PublishOptions) error
	Fork(aideID string) (newAideID string, err error)
	PutArtifact(key string, data []byte) error

	Close() error
}

// AccessChecker enforces that a caller may only touch aides it owns. The
// mechanism (bearer tokens, row-level policies) is an external collaborator
// concern; this interface is the contract the orchestrator calls through.
type AccessChecker interface {
	CanAccess(userID, aideID string) (bool, error)
}
