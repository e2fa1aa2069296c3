package orchestrator

import "fmt"

// TurnErrorKind classifies a fatal, turn-level failure. Validation errors
// (reducer rejections) never reach this type; they become rejection frames
// and the turn continues.
type TurnErrorKind string

const (
	TurnErrorBusy         TurnErrorKind = "busy"
	TurnErrorPersistence  TurnErrorKind = "persistence"
	TurnErrorTransport    TurnErrorKind = "transport"
	TurnErrorAccessDenied TurnErrorKind = "access_denied"
)

// TurnError is the typed top-level error for a fatal turn failure.
// ProcessTurn returns it for a denied access check or a busy lock, and the
// direct-edit entry points return it directly. Inside a streaming turn, a
// load or persist failure reaches the caller only as the error text of the
// final stream.end frame.
type TurnError struct {
	Kind   TurnErrorKind
	AideID string
	Err    error
}

func (e *TurnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orchestrator: %s: aide %s: %v", e.Kind, e.AideID, e.Err)
	}
	return fmt.Sprintf("orchestrator: %s: aide %s", e.Kind, e.AideID)
}

func (e *TurnError) Unwrap() error { return e.Err }
