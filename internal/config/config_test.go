package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	v := New("")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.TelemetryQueueSize != 10_000 {
		t.Errorf("telemetry_queue_size default wrong: %d", cfg.TelemetryQueueSize)
	}
	if cfg.TelemetryBatchSize != 100 {
		t.Errorf("telemetry_batch_size default wrong: %d", cfg.TelemetryBatchSize)
	}
	if cfg.TelemetryFlush() != 60*time.Second {
		t.Errorf("telemetry flush default wrong: %v", cfg.TelemetryFlush())
	}
	if cfg.TurnTimeout() != 60*time.Second {
		t.Errorf("turn timeout default wrong: %v", cfg.TurnTimeout())
	}
	if cfg.LockTimeout() != 10*time.Second {
		t.Errorf("lock timeout default wrong: %v", cfg.LockTimeout())
	}
	if cfg.DelayProfile != "instant" {
		t.Errorf("delay profile default wrong: %q", cfg.DelayProfile)
	}
	if cfg.L2Model != "" {
		t.Errorf("model identifiers must not default silently, got %q", cfg.L2Model)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AIDE_L2_MODEL", "some/fast-model")
	t.Setenv("AIDE_TELEMETRY_QUEUE_SIZE", "32")

	v := New("")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.L2Model != "some/fast-model" {
		t.Errorf("env override missed: %q", cfg.L2Model)
	}
	if cfg.TelemetryQueueSize != 32 {
		t.Errorf("env override missed: %d", cfg.TelemetryQueueSize)
	}
}
