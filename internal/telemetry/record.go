package telemetry

import "github.com/kittclouds/aide/internal/persistence"

// Record is one row of the relational telemetry table contract; the
// persistence facade only accepts and stores these.
type Record = persistence.TelemetryRecord

// EventType re-exports the persistence package's event_type enum so
// callers need only import telemetry.
type EventType = persistence.TelemetryEventType

const (
	EventLLMCall    = persistence.TelemetryLLMCall
	EventDirectEdit = persistence.TelemetryDirectEdit
	EventUndo       = persistence.TelemetryUndo
	EventEscalation = persistence.TelemetryEscalation
)
