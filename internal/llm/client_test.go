package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func sseBody(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("data: " + l + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func collectChunks(t *testing.T, c *Client, req CompletionRequest) ([]StreamChunk, error) {
	t.Helper()
	out := make(chan StreamChunk, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Stream(context.Background(), req, out)
		close(out)
	}()
	var chunks []StreamChunk
	for ch := range out {
		chunks = append(chunks, ch)
	}
	return chunks, <-errCh
}

func TestClientStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"content":"hello "}}]}`,
			`{"choices":[{"delta":{"content":"world"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"prompt_tokens_details":{"cached_tokens":4}}}`,
		))
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: ProviderOpenRouter, APIKey: "test-key", BaseURL: srv.URL}, nil)
	chunks, err := collectChunks(t, c, CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: strPtr("hi")}},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var content string
	var usage *Usage
	for _, ch := range chunks {
		content += ch.ContentDelta
		if ch.Usage != nil {
			usage = ch.Usage
		}
	}
	if content != "hello world" {
		t.Errorf("content = %q", content)
	}
	if usage == nil {
		t.Fatal("usage never reported")
	}
	if usage.InputTokens != 10 || usage.OutputTokens != 2 || usage.CacheReadTokens != 4 {
		t.Errorf("usage wrong: %+v", usage)
	}
}

func TestClientStreamSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: this is not json\n\n")
		fmt.Fprint(w, sseBody(`{"choices":[{"delta":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	chunks, err := collectChunks(t, c, CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ContentDelta != "ok" {
		t.Errorf("expected the good frame only, got %+v", chunks)
	}
}

func TestClientStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := collectChunks(t, c, CompletionRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected an error for a 4xx response")
	}
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient(Config{}, nil)
	if c.IsConfigured() {
		t.Error("empty key must report unconfigured")
	}
	out := make(chan StreamChunk, 1)
	if err := c.Stream(context.Background(), CompletionRequest{}, out); err == nil {
		t.Error("streaming unconfigured must error")
	}
}

func TestMarshalRequestFlattensSystemBlocks(t *testing.T) {
	body, err := marshalRequest("m", []PromptBlock{
		{Text: "prefix", Cache: &CacheControl{Type: "ephemeral"}},
		{Text: "tier"},
	}, []Message{{Role: "user", Content: strPtr("hi")}}, 0.2, 100)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(body)
	for _, want := range []string{`"model":"m"`, `"prefix"`, `"tier"`, `"stream":true`, `"include_usage":true`} {
		if !strings.Contains(s, want) {
			t.Errorf("request body missing %s: %s", want, s)
		}
	}
}

func TestMockClientScriptAndCancel(t *testing.T) {
	m := &MockClient{Script: func(CompletionRequest) []string {
		return []string{"line one", `{"t":"voice","p":{}}`}
	}}

	out := make(chan StreamChunk, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Stream(context.Background(), CompletionRequest{}, out)
		close(out)
	}()
	var content string
	var done bool
	for ch := range out {
		content += ch.ContentDelta
		if ch.Done {
			done = true
			if ch.Usage == nil {
				t.Error("final chunk must carry usage")
			}
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("mock stream: %v", err)
	}
	if !done {
		t.Error("mock stream must finish with a Done chunk")
	}
	if !strings.Contains(content, "line one\n") {
		t.Errorf("scripted lines missing: %q", content)
	}

	// Cancellation stops a slow stream.
	slow := &MockClient{Profile: ProfileSlow, Script: func(CompletionRequest) []string {
		return []string{"a", "b", "c", "d", "e"}
	}}
	ctx, cancel := context.WithCancel(context.Background())
	out2 := make(chan StreamChunk, 16)
	go func() {
		<-out2
		cancel()
	}()
	if err := slow.Stream(ctx, CompletionRequest{}, out2); err == nil {
		t.Error("canceled stream must return the context error")
	}
}

func TestCost(t *testing.T) {
	table := PricingTable{
		"fast-model": {Input: 1.0, Output: 2.0, CacheRead: 0.1, CacheWrite: 1.25},
	}

	got := Cost(table, "fast-model", Usage{
		InputTokens: 1_000_000, OutputTokens: 500_000,
		CacheReadTokens: 2_000_000, CacheWriteTokens: 400_000,
	})
	want := 1.0 + 1.0 + 0.2 + 0.5
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want %v", got, want)
	}

	if Cost(table, "unknown-model", Usage{InputTokens: 1000}) != 0 {
		t.Error("unknown models price at zero")
	}
	if Cost(table, "fast-model", Usage{}) != 0 {
		t.Error("zero usage costs zero")
	}
}
