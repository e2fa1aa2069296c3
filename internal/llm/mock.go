package llm

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DelayProfile selects the inter-chunk pacing MockClient uses, bound from
// the DELAY_PROFILE configuration option and switchable mid-session by a
// client's "set_profile" message.
type DelayProfile string

const (
	ProfileInstant     DelayProfile = "instant"
	ProfileRealisticL2 DelayProfile = "realistic_l2"
	ProfileRealisticL3 DelayProfile = "realistic_l3"
	ProfileRealisticL4 DelayProfile = "realistic_l4"
	ProfileSlow        DelayProfile = "slow"
)

// perChunkDelay maps a profile to the pause MockClient inserts before each
// emitted line, approximating the pacing a real streaming call would have
// for that tier. Unrecognized profiles behave like ProfileInstant.
func perChunkDelay(p DelayProfile) time.Duration {
	switch p {
	case ProfileRealisticL2:
		return 40 * time.Millisecond
	case ProfileRealisticL3:
		return 90 * time.Millisecond
	case ProfileRealisticL4:
		return 70 * time.Millisecond
	case ProfileSlow:
		return 400 * time.Millisecond
	default:
		return 0
	}
}

// Scripter produces the line-by-line body MockClient streams for a given
// request, one JSONL/voice line per returned string. Letting the caller
// supply this keeps MockClient usable both for deterministic tests (a fixed
// script) and for a local-exercise CLI (a canned per-tier transcript).
type Scripter func(req CompletionRequest) []string

// MockClient is a Streamer that never calls out to a real provider. It
// exists for the local-exercise entrypoint (cmd/aided) and for tests that
// need a deterministic, fast substitute for the orchestrator's LLM stream
// step without a configured API key.
type MockClient struct {
	Profile DelayProfile
	Script  Scripter

	mu sync.Mutex
}

func (m *MockClient) IsConfigured() bool { return true }

// SetProfile switches the pacing profile for subsequent streams, backing the
// client's "set_profile" message.
func (m *MockClient) SetProfile(p DelayProfile) {
	m.mu.Lock()
	m.Profile = p
	m.mu.Unlock()
}

func (m *MockClient) profile() DelayProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Profile
}

// Stream emits one StreamChunk per line m.Script returns, pausing
// perChunkDelay(m.Profile) between each, then a final chunk carrying Usage.
// A nil Script streams nothing but a usage-only final chunk.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest, out chan<- StreamChunk) error {
	delay := perChunkDelay(m.profile())
	var lines []string
	if m.Script != nil {
		lines = m.Script(req)
	}
	var outputTokens int
	for _, line := range lines {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		outputTokens += len(strings.Fields(line))
		select {
		case out <- StreamChunk{ContentDelta: line + "\n"}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case out <- StreamChunk{Done: true, Usage: &Usage{OutputTokens: outputTokens, InputTokens: len(req.Messages) * 20}}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
