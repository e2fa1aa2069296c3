package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kittclouds/aide/internal/kernel"
	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/reducer"
)

// suggestAndApplyAnnotations runs the background memory pass after a
// successful turn: ask the annotation model for durable facts in the user's
// message, then apply each as an ordinary meta.annotate event under the
// per-aide lock. Everything here is best-effort; a failure is logged and
// the turn's outcome is unaffected.
func (o *Orchestrator) suggestAndApplyAnnotations(aideID, userMessage string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	notes := llm.SuggestAnnotations(ctx, o.llm, o.cfg.AnnotationModel, userMessage)
	if len(notes) == 0 {
		return
	}

	lockCtx, lockCancel := context.WithTimeout(ctx, o.lockTimeout())
	defer lockCancel()
	release, err := o.locks.Acquire(lockCtx, aideID)
	if err != nil {
		o.log.Warn().Err(err).Str("aide_id", aideID).Msg("orchestrator: annotation pass could not acquire lock")
		return
	}
	defer release()

	turnState, err := o.loadForTurnRetrying(aideID)
	if err != nil {
		o.log.Warn().Err(err).Str("aide_id", aideID).Msg("orchestrator: annotation pass load failed")
		return
	}

	cur := turnState.Snapshot
	var applied []kernel.Event
	for _, note := range notes {
		payload, merr := json.Marshal(kernel.MetaAnnotatePayload{Note: note})
		if merr != nil {
			continue
		}
		ev := kernel.Event{
			ID:        newEventID(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Actor:     "system",
			Source:    "annotation",
			Type:      kernel.MetaAnnotate,
			Payload:   payload,
		}
		res := reducer.Reduce(cur, ev)
		if !res.Applied {
			continue
		}
		cur = res.Snapshot
		ev.Sequence = cur.Sequence
		applied = append(applied, ev)
	}
	if len(applied) == 0 {
		return
	}

	if err := o.persistTurnRetrying(aideID, applied, cur, "", ""); err != nil {
		o.log.Warn().Err(err).Str("aide_id", aideID).Msg("orchestrator: annotation pass persist failed")
	}
}
