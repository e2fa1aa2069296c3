package main

import (
	"fmt"
	"time"

	"github.com/kittclouds/aide/internal/classifier"
	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/orchestrator"
	"github.com/kittclouds/aide/internal/persistence"
	"github.com/kittclouds/aide/internal/ratelimit"
	"github.com/kittclouds/aide/internal/telemetry"
)

// app bundles everything a subcommand needs, built once from the resolved
// Config by newApp. Close stops the background uploader (bounded by a grace
// period) and releases the store.
type app struct {
	store        persistence.Store
	orch         *orchestrator.Orchestrator
	queue        *telemetry.Queue
	uploader     *telemetry.Uploader
	limiter      *ratelimit.Limiter
	mock         *llm.MockClient // non-nil only when no provider key is configured
	uploaderDone chan struct{}
}

func maxTTL(ds ...time.Duration) time.Duration {
	var out time.Duration
	for _, d := range ds {
		if d > out {
			out = d
		}
	}
	return out
}

func newApp() (*app, error) {
	store, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	clf, err := classifier.New(classifier.DefaultConfig())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("compile classifier: %w", err)
	}

	queue := telemetry.NewQueue(cfg.TelemetryQueueSize)
	uploader := telemetry.NewUploader(queue, store, log.With().Str("component", "telemetry").Logger(), cfg.TelemetryBatchSize, cfg.TelemetryFlush())

	orchCfg := orchestrator.Config{
		TurnTimeout:     cfg.TurnTimeout(),
		LockTimeout:     cfg.LockTimeout(),
		CacheTTL:        maxTTL(cfg.CacheTTLL2, cfg.CacheTTLL3, cfg.CacheTTLL4),
		L2Model:         cfg.L2Model,
		L3Model:         cfg.L3Model,
		L4Model:         cfg.L4Model,
		L2ShadowModel:   cfg.L2ShadowModel,
		L3ShadowModel:   cfg.L3ShadowModel,
		AnnotationModel: cfg.AnnotationModel,
		PromptVersion:   "v1",
	}
	// Single-tenant local exercise: no AccessChecker is wired, so every aide
	// id is reachable, matching orchestrator.New's documented nil behavior.
	streamer, mock := buildStreamer()
	orch := orchestrator.New(store, nil, clf, streamer, llm.PricingTable{}, queue, log.With().Str("component", "orchestrator").Logger(), orchCfg)

	limiter := ratelimit.New(cfg.FreeTierTurnsPerWeek, 7*24*time.Hour)

	a := &app{store: store, orch: orch, queue: queue, uploader: uploader, limiter: limiter, mock: mock, uploaderDone: make(chan struct{})}
	go func() {
		uploader.Run()
		close(a.uploaderDone)
	}()
	return a, nil
}

func (a *app) Close() {
	a.uploader.Stop(5 * time.Second)
	<-a.uploaderDone
	a.store.Close()
}

// buildStreamer returns a real provider-backed Client when an API key is
// configured, or a MockClient under the configured delay profile otherwise.
// The MockClient is also returned directly so the serve loop's set_profile
// message can repoint its pacing mid-session.
func buildStreamer() (llm.Streamer, *llm.MockClient) {
	if cfg.OpenRouterAPIKey != "" {
		return llm.NewClient(llm.Config{
			Provider: llm.ProviderOpenRouter,
			APIKey:   cfg.OpenRouterAPIKey,
			BaseURL:  cfg.OpenRouterURL,
		}, nil), nil
	}
	mock := &llm.MockClient{
		Profile: llm.DelayProfile(cfg.DelayProfile),
		Script:  canonedScript,
	}
	return mock, mock
}

// canonedScript is the canned transcript the mock streamer plays back for
// local exercise when no provider is configured: a spoken line plus a single
// entity.create, enough to exercise the full parse/reduce/broadcast path.
func canonedScript(req llm.CompletionRequest) []string {
	return []string{
		"Got it, adding that now.",
		`{"t":"entity.create","p":{"id":"note_1","parent":"root","display":"Untitled note"}}`,
	}
}
