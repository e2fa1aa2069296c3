package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kittclouds/aide/internal/kernel"
	"github.com/kittclouds/aide/internal/pool"
	"github.com/kittclouds/aide/internal/reducer"
	"github.com/kittclouds/aide/internal/telemetry"
)

// ProcessDirectEdit applies one client-initiated field edit under the same
// per-aide lock a turn uses, skipping classification and the LLM entirely.
// It returns the applied event and the resulting snapshot, or a rejection
// frame's equivalent error.
func (o *Orchestrator) ProcessDirectEdit(ctx context.Context, aideID, userID string, edit DirectEdit) (kernel.Event, kernel.Snapshot, error) {
	res, snap, err := o.ProcessDirectEditBatch(ctx, aideID, userID, []DirectEdit{edit})
	if err != nil {
		return kernel.Event{}, kernel.Snapshot{}, err
	}
	if len(res) == 0 {
		return kernel.Event{}, snap, nil
	}
	return res[0], snap, nil
}

// ProcessDirectEditBatch applies a sequence of direct edits as a single
// locked, atomic-looking step: one lock acquisition, one LoadForTurn, one
// PersistTurn, regardless of how many edits are given. This is the
// supplemented direct_edit_batch feature: the single-edit client message and
// the batched one share this exact code path, differing only in slice
// length, so there is no separate "batch mode" to keep in sync.
func (o *Orchestrator) ProcessDirectEditBatch(ctx context.Context, aideID, userID string, edits []DirectEdit) ([]kernel.Event, kernel.Snapshot, error) {
	if err := o.checkAccess(userID, aideID); err != nil {
		return nil, kernel.Snapshot{}, err
	}
	if len(edits) == 0 {
		return nil, kernel.Snapshot{}, nil
	}

	lockCtx, lockCancel := context.WithTimeout(ctx, o.lockTimeout())
	defer lockCancel()
	release, err := o.locks.Acquire(lockCtx, aideID)
	if err != nil {
		return nil, kernel.Snapshot{}, &TurnError{Kind: TurnErrorBusy, AideID: aideID, Err: err}
	}
	defer release()

	start := time.Now()
	recorder := telemetry.NewRecorder(aideID, userID, "")
	recorder.DirectEdit = true

	turnState, err := o.loadForTurnRetrying(aideID)
	if err != nil {
		recorder.EditLatency = time.Since(start)
		recorder.DirectError = err.Error()
		o.enqueueTelemetry(recorder.Finalize())
		return nil, kernel.Snapshot{}, err
	}

	cur := turnState.Snapshot
	applied := make([]kernel.Event, 0, len(edits))
	for _, edit := range edits {
		scratch := pool.GetMap()
		scratch["ref"] = edit.EntityID
		scratch["props"] = map[string]interface{}{edit.Field: edit.Value}
		payload, merr := json.Marshal(scratch)
		pool.PutMap(scratch)
		if merr != nil {
			err = fmt.Errorf("orchestrator: marshal direct edit: %w", merr)
			break
		}
		ev := kernel.Event{
			ID:        newEventID(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Actor:     userID,
			Source:    "direct_edit",
			Type:      kernel.EntityUpdate,
			Payload:   payload,
		}
		res := reducer.Reduce(cur, ev)
		if !res.Applied {
			err = res.Error
			break
		}
		cur = res.Snapshot
		ev.Sequence = cur.Sequence
		applied = append(applied, ev)
	}

	recorder.EditLatency = time.Since(start)
	if err != nil {
		recorder.DirectError = err.Error()
		o.enqueueTelemetry(recorder.Finalize())
		return nil, kernel.Snapshot{}, err
	}

	summary := fmt.Sprintf("[direct edit: %d field(s) applied]", len(applied))
	if perr := o.persistTurnRetrying(aideID, applied, cur, "", summary); perr != nil {
		recorder.DirectError = perr.Error()
		o.enqueueTelemetry(recorder.Finalize())
		return nil, kernel.Snapshot{}, perr
	}

	o.enqueueTelemetry(recorder.Finalize())
	return applied, cur, nil
}
