package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/telemetry"
)

// runShadowCalls fires one streaming call per model in shadowModels
// concurrently via sourcegraph/conc's structured, panic-safe WaitGroup.
// Shadow results are recorded but never reach the reducer; the return type
// enforces that by only ever producing telemetry records.
//
// This runs detached from the turn: it does not block persistence, and a
// shadow failure is logged and swallowed, never surfacing to the user or
// failing the turn.
func (o *Orchestrator) runShadowCalls(parent context.Context, req llm.CompletionRequest, tier, promptVer string, shadowModels []string, onComplete func([]telemetry.LLMCallRecord)) {
	if len(shadowModels) == 0 {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Warn().Interface("panic", r).Msg("orchestrator: shadow call panic recovered")
			}
		}()

		var wg conc.WaitGroup
		var mu sync.Mutex
		var records []telemetry.LLMCallRecord

		for _, model := range shadowModels {
			model := model
			wg.Go(func() {
				rec := o.runOneShadowCall(parent, req, model, tier, promptVer)
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			})
		}
		wg.Wait()

		if onComplete != nil {
			onComplete(records)
		}
	}()
}

func (o *Orchestrator) runOneShadowCall(parent context.Context, req llm.CompletionRequest, model, tier, promptVer string) telemetry.LLMCallRecord {
	shadowReq := req
	shadowReq.Model = model

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	_ = parent // the shadow call intentionally outlives the parent turn context

	start := time.Now()
	out := make(chan llm.StreamChunk, 16)
	var usage llm.Usage
	var ttfc time.Duration
	var gotFirst bool
	var linesEmitted int

	errCh := make(chan error, 1)
	go func() {
		err := o.llm.Stream(ctx, shadowReq, out)
		close(out)
		errCh <- err
	}()

	parser := NewParser()
loop:
	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				break loop
			}
			if !gotFirst {
				ttfc = time.Since(start)
				gotFirst = true
			}
			for range parser.Feed(chunk.ContentDelta) {
				linesEmitted++
			}
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
	err := <-errCh

	rec := telemetry.LLMCallRecord{
		Tier:         tier,
		Model:        model,
		PromptVer:    promptVer,
		TTFC:         ttfc,
		TTC:          time.Since(start),
		Usage:        usage,
		LinesEmitted: linesEmitted,
		Shadow:       true,
		CostUSD:      llm.Cost(o.pricing, model, usage),
	}
	if err != nil {
		rec.Error = err.Error()
		o.log.Warn().Err(err).Str("model", model).Msg("orchestrator: shadow call failed")
	}
	return rec
}
