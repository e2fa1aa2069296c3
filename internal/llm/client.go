package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// Streamer is the narrow interface the orchestrator depends on: a real
// Client for production traffic, or a MockClient for local exercise under
// the DELAY_PROFILE configuration option when no provider API key is
// configured.
type Streamer interface {
	IsConfigured() bool
	Stream(ctx context.Context, req CompletionRequest, out chan<- StreamChunk) error
}

// Client issues streaming chat completions against a configured provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client for cfg. httpClient may be nil to use
// http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// Stream opens a streaming completion and sends each parsed chunk to out.
// Stream returns when the upstream stream ends, ctx is canceled, or an error
// occurs; out is never closed by Stream: the caller owns the channel and
// closes it once Stream has returned.
func (c *Client) Stream(ctx context.Context, req CompletionRequest, out chan<- StreamChunk) error {
	if !c.IsConfigured() {
		return fmt.Errorf("llm: provider not configured")
	}

	body, err := marshalRequest(req.Model, req.System, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.cfg.BaseURL
	if url == "" {
		url = defaultOpenRouterURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("llm: upstream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// A malformed SSE frame does not abort the stream; the parser
			// downstream already tolerates malformed lines the same way.
			continue
		}
		chunk := ev.toChunk()
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
