package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/kittclouds/aide/internal/classifier"
	"github.com/kittclouds/aide/internal/kernel"
	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/persistence"
	"github.com/kittclouds/aide/internal/telemetry"
)

// Config holds the subset of internal/config's options the orchestrator
// itself consults; cmd/aided translates the bound configuration into this
// shape when constructing an Orchestrator.
type Config struct {
	TurnTimeout time.Duration
	LockTimeout time.Duration

	// CacheTTL bounds how long an assembled snapshot rendering may be
	// reused; cmd/aided derives it from the per-tier CACHE_TTL options.
	CacheTTL time.Duration

	L2Model string
	L3Model string
	L4Model string

	L2ShadowModel string
	L3ShadowModel string

	// AnnotationModel, when set, enables the background memory pass that
	// proposes (unpinned) annotations after a turn that ended without error
	// and applied at least one event.
	AnnotationModel string

	PromptVersion string
}

func (c Config) modelFor(tier classifier.Tier) string {
	switch tier {
	case classifier.TierL3, classifier.TierL4:
		if tier == classifier.TierL3 {
			return c.L3Model
		}
		return c.L4Model
	default:
		return c.L2Model
	}
}

func (c Config) shadowModelsFor(tier classifier.Tier) []string {
	var out []string
	switch tier {
	case classifier.TierL2:
		if c.L2ShadowModel != "" {
			out = append(out, c.L2ShadowModel)
		}
	case classifier.TierL3:
		if c.L3ShadowModel != "" {
			out = append(out, c.L3ShadowModel)
		}
	}
	return out
}

// activeTurn tracks one in-flight turn so Interrupt can find it and
// distinguish a deliberate client interrupt from the turn timeout once the
// turn's context is done.
type activeTurn struct {
	cancel      context.CancelFunc
	interrupted atomic.Bool
}

// Orchestrator wires the classifier, LLM client, reducer, persistence
// facade, and telemetry queue into the per-turn pipeline.
type Orchestrator struct {
	store   persistence.Store
	access  persistence.AccessChecker
	clf     *classifier.Classifier
	llm     llm.Streamer
	pricing llm.PricingTable
	queue   *telemetry.Queue
	ledger  *telemetry.CostLedger
	locks   *LockRegistry
	pcache  *promptCache
	log     zerolog.Logger
	cfg     Config

	activeMu sync.Mutex
	active   map[string]*activeTurn
}

// New builds an Orchestrator. access may be nil, in which case every aide
// is considered accessible (suitable for a single-tenant local exercise).
func New(store persistence.Store, access persistence.AccessChecker, clf *classifier.Classifier, streamer llm.Streamer, pricing llm.PricingTable, queue *telemetry.Queue, log zerolog.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:   store,
		access:  access,
		clf:     clf,
		llm:     streamer,
		pricing: pricing,
		queue:   queue,
		ledger:  telemetry.NewCostLedger(),
		locks:   NewLockRegistry(10 * time.Minute),
		pcache:  newPromptCache(cfg.CacheTTL),
		log:     log,
		cfg:     cfg,
		active:  map[string]*activeTurn{},
	}
}

// CostTotals reports the in-memory running cost rollup for aideID across
// every LLM call recorded since process start.
func (o *Orchestrator) CostTotals(aideID string) telemetry.AideCostTotals {
	return o.ledger.Totals(aideID)
}

func (o *Orchestrator) checkAccess(userID, aideID string) error {
	if o.access == nil || userID == "" {
		return nil
	}
	ok, err := o.access.CanAccess(userID, aideID)
	if err != nil {
		return fmt.Errorf("orchestrator: access check: %w", err)
	}
	if !ok {
		return &TurnError{Kind: TurnErrorAccessDenied, AideID: aideID}
	}
	return nil
}

func (o *Orchestrator) registerActive(aideID string, cancel context.CancelFunc) *activeTurn {
	t := &activeTurn{cancel: cancel}
	o.activeMu.Lock()
	o.active[aideID] = t
	o.activeMu.Unlock()
	return t
}

func (o *Orchestrator) unregisterActive(aideID string) {
	o.activeMu.Lock()
	delete(o.active, aideID)
	o.activeMu.Unlock()
}

// Interrupt requests cancellation of aideID's in-flight turn, if any. It
// returns false if no turn is currently in progress for aideID. The turn
// task observes this between LLM chunks and between reducer applications,
// flushes whatever it already applied, persists, releases the lock, and
// emits stream.interrupted.
func (o *Orchestrator) Interrupt(aideID string) bool {
	o.activeMu.Lock()
	t, ok := o.active[aideID]
	o.activeMu.Unlock()
	if !ok {
		return false
	}
	t.interrupted.Store(true)
	t.cancel()
	return true
}

// ProcessTurn runs one full turn for aideID: acquires the per-aide lock,
// loads state, classifies, streams and parses the LLM response, reduces
// and broadcasts deltas, and persists. It returns a channel of Frame the
// caller should drain until it is closed; ProcessTurn itself never blocks
// past lock acquisition.
func (o *Orchestrator) ProcessTurn(ctx context.Context, aideID, userMessage string, opts Options) (<-chan Frame, error) {
	if err := o.checkAccess(opts.UserID, aideID); err != nil {
		return nil, err
	}

	lockCtx, lockCancel := context.WithTimeout(ctx, o.lockTimeout())
	defer lockCancel()
	release, err := o.locks.Acquire(lockCtx, aideID)
	if err != nil {
		return nil, &TurnError{Kind: TurnErrorBusy, AideID: aideID, Err: err}
	}

	turnCtx, turnCancel := context.WithCancel(context.Background())
	timeoutCtx, timeoutCancel := context.WithTimeout(turnCtx, o.turnTimeout())
	at := o.registerActive(aideID, turnCancel)

	out := make(chan Frame, 64)
	go func() {
		defer close(out)
		defer release()
		defer o.unregisterActive(aideID)
		defer timeoutCancel()
		defer turnCancel()
		o.runTurn(timeoutCtx, at, aideID, userMessage, opts, out)
	}()

	return out, nil
}

func (o *Orchestrator) turnTimeout() time.Duration {
	if o.cfg.TurnTimeout <= 0 {
		return 60 * time.Second
	}
	return o.cfg.TurnTimeout
}

func (o *Orchestrator) lockTimeout() time.Duration {
	if o.cfg.LockTimeout <= 0 {
		return 10 * time.Second
	}
	return o.cfg.LockTimeout
}

func emit(out chan<- Frame, f Frame) {
	out <- f
}

// runTurn is the body of the turn pipeline: load, classify, assemble,
// stream, reduce, broadcast, persist. It always runs inside the per-aide
// lock and always leaves the in-memory snapshot instance local to this
// call: its externally visible effects are the frames sent to out, the
// telemetry it enqueues, the shadow calls and annotation pass it may start,
// and, unless the turn ends before streaming or times out, PersistTurn
// (retried once on failure; one best-effort call after an interrupt).
func (o *Orchestrator) runTurn(ctx context.Context, at *activeTurn, aideID, userMessage string, opts Options, out chan<- Frame) {
	emit(out, Frame{Type: FrameStreamStart, MessageID: opts.MessageID})

	turnState, err := o.loadForTurnRetrying(aideID)
	if err != nil {
		emit(out, Frame{Type: FrameStreamEnd, MessageID: opts.MessageID, Error: err.Error()})
		return
	}
	snap := turnState.Snapshot

	decision := o.clf.Classify(userMessage, snap)
	model := o.cfg.modelFor(decision.Tier)
	emit(out, Frame{Type: FrameClassification, Tier: string(decision.Tier), Model: model, Reason: decision.Reason})

	snapJSON, err := o.pcache.snapshotJSON(snap)
	if err != nil {
		emit(out, Frame{Type: FrameStreamEnd, MessageID: opts.MessageID, Error: err.Error()})
		return
	}
	req := assembleRequest(model, decision.Tier, turnState.Blueprint, snapJSON, turnState.ConversationTail, userMessage)

	recorder := telemetry.NewRecorder(aideID, opts.UserID, opts.MessageID)

	shadowModels := opts.ShadowModels
	if len(shadowModels) == 0 {
		shadowModels = o.cfg.shadowModelsFor(decision.Tier)
	}
	o.runShadowCalls(ctx, req, string(decision.Tier), o.cfg.PromptVersion, shadowModels, func(recs []telemetry.LLMCallRecord) {
		var shadowRecs []telemetry.Record
		for _, r := range recs {
			rec := recorderSingleRecord(aideID, opts.UserID, opts.MessageID, r)
			shadowRecs = append(shadowRecs, rec)
		}
		o.enqueueTelemetry(shadowRecs)
	})

	applied, callRecord, streamErr := o.streamAndReduce(ctx, req, model, string(decision.Tier), snap, opts, out)
	callRecord.PromptVer = o.cfg.PromptVersion
	recorder.AddLLMCall(callRecord)
	finalSnap := applied.snap

	var assistantSummary string
	if len(applied.events) > 0 {
		assistantSummary = fmt.Sprintf("[%d operations applied]", len(applied.events))
	}

	wasInterrupted := at.interrupted.Load()

	switch {
	case wasInterrupted:
		o.persistWithGrace(aideID, applied.events, finalSnap, userMessage, assistantSummary)
		emit(out, Frame{Type: FrameStreamInterrupted, MessageID: opts.MessageID})

	case ctx.Err() != nil && !wasInterrupted:
		// Turn-level timeout, not an explicit client interrupt (the turn
		// context derives from context.Background, so the caller's ctx
		// bounds only lock acquisition): nothing is persisted and the last
		// successfully persisted snapshot remains authoritative.
		recorder.DirectError = "turn timed out"
		emit(out, Frame{Type: FrameStreamEnd, MessageID: opts.MessageID, Error: "turn timed out"})

	default:
		if streamErr != nil {
			recorder.DirectError = streamErr.Error()
		}
		if err := o.persistTurnRetrying(aideID, applied.events, finalSnap, userMessage, assistantSummary); err != nil {
			emit(out, Frame{Type: FrameStreamEnd, MessageID: opts.MessageID, Error: err.Error()})
		} else if streamErr != nil {
			emit(out, Frame{Type: FrameStreamEnd, MessageID: opts.MessageID, Error: streamErr.Error()})
		} else {
			emit(out, Frame{Type: FrameStreamEnd, MessageID: opts.MessageID})
			if o.cfg.AnnotationModel != "" && len(applied.events) > 0 {
				go o.suggestAndApplyAnnotations(aideID, userMessage)
			}
		}
	}

	o.enqueueTelemetry(recorder.Finalize())
}

func recorderSingleRecord(aideID, userID, messageID string, c telemetry.LLMCallRecord) telemetry.Record {
	r := telemetry.NewRecorder(aideID, userID, messageID)
	r.AddLLMCall(c)
	recs := r.Finalize()
	if len(recs) == 0 {
		return telemetry.Record{}
	}
	return recs[0]
}

func (o *Orchestrator) enqueueTelemetry(recs []telemetry.Record) {
	o.ledger.Add(recs)
	if o.queue == nil {
		return
	}
	for _, r := range recs {
		if dropped := o.queue.Enqueue(r); dropped {
			o.log.Warn().Str("aide_id", r.AideID).Msg("telemetry queue full, dropped oldest record")
		}
	}
}

func (o *Orchestrator) loadForTurnRetrying(aideID string) (persistence.LoadForTurnResult, error) {
	var res persistence.LoadForTurnResult
	boff := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 1)
	err := backoff.Retry(func() error {
		var err error
		res, err = o.store.LoadForTurn(aideID)
		return err
	}, boff)
	if err != nil {
		return persistence.LoadForTurnResult{}, &TurnError{Kind: TurnErrorPersistence, AideID: aideID, Err: err}
	}
	return res, nil
}

// persistTurnRetrying retries a failed persist once; if still failing, it
// propagates a top-level error without corrupting anything (the local
// snapshot instance is simply discarded by the caller returning).
func (o *Orchestrator) persistTurnRetrying(aideID string, events []kernel.Event, snap kernel.Snapshot, userMsg, assistantSummary string) error {
	boff := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 1)
	err := backoff.Retry(func() error {
		return o.store.PersistTurn(aideID, events, snap, userMsg, assistantSummary)
	}, boff)
	if err != nil {
		return &TurnError{Kind: TurnErrorPersistence, AideID: aideID, Err: err}
	}
	return nil
}

// persistWithGrace is the bounded best-effort persist after an explicit
// interrupt: if it cannot complete within the grace period, persistence is
// skipped and the last-persisted snapshot remains authoritative. Failure
// here is logged, not propagated: an interrupted turn's stream.interrupted
// frame has already been decided regardless of whether the best-effort
// persist lands.
func (o *Orchestrator) persistWithGrace(aideID string, events []kernel.Event, snap kernel.Snapshot, userMsg, assistantSummary string) {
	done := make(chan error, 1)
	go func() {
		done <- o.store.PersistTurn(aideID, events, snap, userMsg, assistantSummary)
	}()
	select {
	case err := <-done:
		if err != nil {
			o.log.Warn().Err(err).Str("aide_id", aideID).Msg("orchestrator: best-effort persist after interrupt failed")
		}
	case <-time.After(500 * time.Millisecond):
		o.log.Warn().Str("aide_id", aideID).Msg("orchestrator: persist after interrupt exceeded grace period, skipped")
	}
}

func newEventID() string { return ulid.Make().String() }
