package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kittclouds/aide/internal/kernel"
	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/reducer"
	"github.com/kittclouds/aide/internal/telemetry"
)

// appliedResult is the outcome of streaming one turn's completion through
// the parser and reducer: the resulting snapshot and the ordered list of
// events that actually applied (rejected lines never appear here).
type appliedResult struct {
	snap   kernel.Snapshot
	events []kernel.Event
}

// streamAndReduce drives the production LLM call for one turn: it opens the
// stream, line-buffers the content through a Parser, reduces each parsed
// event against a local snapshot copy, and emits Frames for every visible
// effect, honoring batch.start/batch.end buffering. It returns once the
// stream ends, the context is done, or the stream errors.
func (o *Orchestrator) streamAndReduce(ctx context.Context, req llm.CompletionRequest, model, tier string, snap kernel.Snapshot, opts Options, out chan<- Frame) (appliedResult, telemetry.LLMCallRecord, error) {
	start := time.Now()
	chunkCh := make(chan llm.StreamChunk, 16)
	errCh := make(chan error, 1)
	go func() {
		err := o.llm.Stream(ctx, req, chunkCh)
		// Stream never writes to chunkCh after returning, so closing here
		// unblocks the read loop even when the call failed before emitting a
		// Done chunk (e.g. a 4xx before the first SSE frame).
		close(chunkCh)
		errCh <- err
	}()

	parser := NewParser()
	cur := snap
	var appliedEvents []kernel.Event
	var linesEmitted, linesAccepted, linesRejected int
	var usage llm.Usage
	var ttfc time.Duration
	var gotFirst bool
	inBatch := false
	escalated := false
	var batchBuffer []Frame

	flushBatch := func() {
		for _, f := range batchBuffer {
			emit(out, f)
		}
		batchBuffer = nil
	}

	handleItems := func(items []ParsedItem) {
		for _, item := range items {
			linesEmitted++
			switch {
			case item.IsVoice:
				emit(out, Frame{Type: FrameVoice, MessageID: opts.MessageID, Text: item.VoiceText})
				continue
			case item.Malformed:
				o.log.Debug().Str("raw", item.Raw).Msg("orchestrator: skipped malformed stream line")
				continue
			}

			if item.Type == kernel.Escalate {
				escalated = true
			}
			if item.Type == kernel.BatchStart {
				inBatch = true
				emit(out, Frame{Type: FrameBatchStart, MessageID: opts.MessageID})
				continue
			}
			if item.Type == kernel.BatchEnd {
				inBatch = false
				flushBatch()
				emit(out, Frame{Type: FrameBatchEnd, MessageID: opts.MessageID})
				continue
			}

			ev := kernel.Event{
				ID:        newEventID(),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				Actor:     "assistant",
				Source:    opts.Source,
				Type:      item.Type,
				Payload:   item.Payload,
			}

			res := reducer.Reduce(cur, ev)
			if !res.Applied {
				linesRejected++
				emit(out, Frame{
					Type:      FrameRejection,
					MessageID: opts.MessageID,
					Event:     string(ev.Type),
					Code:      string(res.Error.Code),
					Error:     res.Error.Error(),
				})
				continue
			}

			linesAccepted++
			cur = res.Snapshot
			ev.Sequence = cur.Sequence
			appliedEvents = append(appliedEvents, ev)

			if frame, ok := frameForEvent(ev, cur, opts.MessageID); ok {
				if inBatch {
					batchBuffer = append(batchBuffer, frame)
				} else {
					emit(out, frame)
				}
			}
		}
	}

loop:
	for {
		select {
		case chunk, ok := <-chunkCh:
			if !ok {
				break loop
			}
			if !gotFirst && chunk.ContentDelta != "" {
				ttfc = time.Since(start)
				gotFirst = true
			}
			handleItems(parser.Feed(chunk.ContentDelta))
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			if chunk.Done {
				break loop
			}
		case <-ctx.Done():
			break loop
		}
	}

	// Stream's channel writes all select on ctx.Done, so it always returns
	// promptly once the loop has exited and this read cannot hang.
	streamErr := <-errCh
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}

	handleItems(parser.Flush())
	flushBatch()

	rec := telemetry.LLMCallRecord{
		Tier:          tier,
		Model:         model,
		TTFC:          ttfc,
		TTC:           time.Since(start),
		Usage:         usage,
		LinesEmitted:  linesEmitted,
		LinesAccepted: linesAccepted,
		LinesRejected: linesRejected,
		Escalated:     escalated,
		CostUSD:       llm.Cost(o.pricing, model, usage),
	}
	if streamErr != nil {
		rec.Error = streamErr.Error()
	}

	return appliedResult{snap: cur, events: appliedEvents}, rec, streamErr
}

// frameForEvent builds the client-visible delta frame for one applied
// event, or reports ok=false for event types that have no direct wire
// representation beyond already having mutated the snapshot (relationship,
// style, meta, and schema primitives surface through the next hydration's
// snapshot rather than their own frame type).
func frameForEvent(ev kernel.Event, snap kernel.Snapshot, messageID string) (Frame, bool) {
	switch ev.Type {
	case kernel.EntityCreate, kernel.EntityUpdate, kernel.EntityMove, kernel.EntityReorder:
		ent := entityFromPayload(ev, snap)
		ftype := FrameEntityUpdate
		if ev.Type == kernel.EntityCreate {
			ftype = FrameEntityCreate
		}
		return Frame{
			Type:      ftype,
			MessageID: messageID,
			ID:        entityID(ev),
			Sequence:  ev.Sequence,
			Data:      entityDeltaPayload(ent),
		}, true
	case kernel.EntityRemove:
		return Frame{
			Type:      FrameEntityRemove,
			MessageID: messageID,
			ID:        entityID(ev),
			Sequence:  ev.Sequence,
		}, true
	default:
		return Frame{}, false
	}
}

// entityID extracts the subject entity of an applied event: create payloads
// carry "id", update/remove/move carry "ref", and reorder names its "parent".
func entityID(ev kernel.Event) string {
	var p struct {
		ID     string `json:"id"`
		Ref    string `json:"ref"`
		Parent string `json:"parent"`
	}
	_ = json.Unmarshal(ev.Payload, &p)
	switch {
	case p.ID != "":
		return p.ID
	case p.Ref != "":
		return p.Ref
	default:
		return p.Parent
	}
}

func entityFromPayload(ev kernel.Event, snap kernel.Snapshot) *kernel.Entity {
	id := entityID(ev)
	return snap.Entities[id]
}
