// Package orchestrator implements the per-turn pipeline: tier
// classification, cache-aware prompt assembly, LLM token streaming,
// line-buffered JSONL parsing, incremental reduction, batch buffering,
// interrupt handling, and delta broadcast, all serialized per aide by a
// keyed mutex registry held across the whole load-through-persist span.
package orchestrator

import (
	"github.com/kittclouds/aide/internal/kernel"
)

// FrameType tags the frames of the ordered Server->Client stream.
type FrameType string

const (
	FrameStreamStart       FrameType = "stream.start"
	FrameClassification    FrameType = "classification"
	FrameVoice             FrameType = "voice"
	FrameBatchStart        FrameType = "batch.start"
	FrameBatchEnd          FrameType = "batch.end"
	FrameEntityCreate      FrameType = "entity.create"
	FrameEntityUpdate      FrameType = "entity.update"
	FrameEntityRemove      FrameType = "entity.remove"
	FrameRejection         FrameType = "rejection"
	FrameStreamEnd         FrameType = "stream.end"
	FrameStreamInterrupted FrameType = "stream.interrupted"
	FrameDirectEditError   FrameType = "direct_edit.error"
)

// Frame is one frame of the ordered Server->Client stream for a turn. It is
// a flat struct rather than a tagged union of Go types because it crosses
// the WebSocket-framing boundary as JSON anyway; every field other than
// Type is optional and only populated for the frame kinds that use it.
type Frame struct {
	Type      FrameType              `json:"type"`
	MessageID string                 `json:"message_id,omitempty"`
	Tier      string                 `json:"tier,omitempty"`
	Model     string                 `json:"model,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Ref       string                 `json:"ref,omitempty"`
	Sequence  int64                  `json:"sequence,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Event     string                 `json:"event,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Options carries the per-call inputs ProcessTurn needs beyond the message
// text itself.
type Options struct {
	MessageID    string
	UserID       string
	Source       string // "web", "signal", "cli", ...
	ShadowModels []string
}

// DirectEdit is one client-initiated field edit, skipping classification and
// the LLM entirely.
type DirectEdit struct {
	EntityID string
	Field    string
	Value    interface{}
}

// entityDeltaPayload returns the wire-visible Data for an applied entity
// event, mirroring the client-side mirror's needs: full props for
// create/update, nothing beyond the id for remove.
func entityDeltaPayload(ent *kernel.Entity) map[string]interface{} {
	if ent == nil {
		return nil
	}
	out := map[string]interface{}{
		"parent":   ent.Parent,
		"display":  ent.Display,
		"props":    ent.Props,
		"children": ent.Children,
	}
	return out
}
