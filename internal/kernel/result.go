package kernel

// WarningCode enumerates warnings that let an event apply with a caveat.
type WarningCode string

const (
	WarnAlreadyRemoved      WarningCode = "ALREADY_REMOVED"
	WarnConstraintViolated  WarningCode = "CONSTRAINT_VIOLATED"
	WarnUnknownFieldIgnored WarningCode = "UNKNOWN_FIELD_IGNORED"
	WarnSchemaFieldMissing  WarningCode = "SCHEMA_FIELD_MISSING"
)

// RejectCode enumerates reasons an event is rejected and not appended.
type RejectCode string

const (
	ErrEntityAlreadyExists      RejectCode = "ENTITY_ALREADY_EXISTS"
	ErrParentNotFound           RejectCode = "PARENT_NOT_FOUND"
	ErrEntityNotFound           RejectCode = "ENTITY_NOT_FOUND"
	ErrMissingRef               RejectCode = "MISSING_REF"
	ErrCycleDetected            RejectCode = "CYCLE_DETECTED"
	ErrStrictConstraintViolated RejectCode = "STRICT_CONSTRAINT_VIOLATED"
	ErrSchemaInUse              RejectCode = "SCHEMA_IN_USE"
	ErrSchemaNotFound           RejectCode = "SCHEMA_NOT_FOUND"
	ErrUnknownPrimitive         RejectCode = "UNKNOWN_PRIMITIVE"
	ErrInvalidID                RejectCode = "INVALID_ID"
	ErrTypeMismatch             RejectCode = "TYPE_MISMATCH"
)

// Warning is a non-fatal issue recorded against an applied event.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message,omitempty"`
}

// RejectError is returned when an event could not be applied. The snapshot
// it is attached to (via ReduceResult) is the unchanged input snapshot.
type RejectError struct {
	Code    RejectCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

func (e *RejectError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

// ReduceResult is the value-only outcome of applying one event to a
// snapshot. Reduce never panics and never returns a Go error from the
// signature; rejection is a structured, inspectable value.
type ReduceResult struct {
	Snapshot Snapshot
	Applied  bool
	Warnings []Warning
	Error    *RejectError
}

// Rejected builds a ReduceResult carrying the given rejection code. The
// snapshot argument should always be the reducer's original, unmutated input.
func Rejected(snap Snapshot, code RejectCode, msg string) ReduceResult {
	return ReduceResult{
		Snapshot: snap,
		Applied:  false,
		Error:    &RejectError{Code: code, Message: msg},
	}
}

// Applied builds a ReduceResult for a successfully applied event, with zero
// or more warnings.
func Applied(snap Snapshot, warnings ...Warning) ReduceResult {
	return ReduceResult{
		Snapshot: snap,
		Applied:  true,
		Warnings: warnings,
	}
}
