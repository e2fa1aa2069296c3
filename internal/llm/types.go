// Package llm is the HTTP-based chat-completion client the orchestrator
// streams turns through, plus the pricing table cost computation and a
// scriptable mock for local exercise.
package llm

import "encoding/json"

// Provider identifies which upstream API a Config targets.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderGoogle     Provider = "google"
)

// Config holds connection settings for one provider endpoint.
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string // override for testing; empty uses the provider default
	Referer  string
	Title    string
}

// Message is one chat turn in the OpenRouter/Google-compatible wire format.
// Cache marks this message as a prompt-caching breakpoint; the orchestrator
// sets it on the last conversation-tail message.
type Message struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Cache      *CacheControl `json:"cache_control,omitempty"`
}

// ToolCall represents a function call surfaced by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the function name and raw JSON arguments of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CacheControl marks a message (or content block) as a prompt-caching
// breakpoint, per the orchestrator's cache-aware prompt assembly step.
type CacheControl struct {
	Type string `json:"type"` // "ephemeral"
}

// PromptBlock is one cacheable segment of the assembled prompt: the shared
// prefix, the tier-specific block, or the uncached snapshot body.
type PromptBlock struct {
	Text  string        `json:"text"`
	Cache *CacheControl `json:"cache_control,omitempty"`
}

// CompletionRequest is a streaming chat-completion call.
type CompletionRequest struct {
	Model       string
	System      []PromptBlock
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for a completed (or partially streamed)
// call, including prompt-cache hits/writes where the provider reports them.
type Usage struct {
	InputTokens      int `json:"prompt_tokens"`
	OutputTokens     int `json:"completion_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
}

// StreamChunk is one incremental unit from a streaming completion: either a
// content delta or, on the final chunk, usage totals.
type StreamChunk struct {
	ContentDelta string
	Done         bool
	Usage        *Usage
}

// sseEvent mirrors one `data: {...}` line of an OpenRouter/OpenAI-compatible
// server-sent-events stream.
type sseEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails *struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

func (e sseEvent) toChunk() StreamChunk {
	var chunk StreamChunk
	if len(e.Choices) > 0 {
		chunk.ContentDelta = e.Choices[0].Delta.Content
		chunk.Done = e.Choices[0].FinishReason != nil
	}
	if e.Usage != nil {
		u := &Usage{
			InputTokens:  e.Usage.PromptTokens,
			OutputTokens: e.Usage.CompletionTokens,
		}
		if e.Usage.PromptTokensDetails != nil {
			u.CacheReadTokens = e.Usage.PromptTokensDetails.CachedTokens
		}
		chunk.Usage = u
	}
	return chunk
}

func marshalRequest(model string, system []PromptBlock, messages []Message, temperature float64, maxTokens int) ([]byte, error) {
	type wireReq struct {
		Model       string          `json:"model"`
		Messages    []Message       `json:"messages"`
		Temperature float64         `json:"temperature"`
		MaxTokens   int             `json:"max_tokens"`
		Stream      bool            `json:"stream"`
		StreamOpts  map[string]bool `json:"stream_options,omitempty"`
	}
	full := make([]Message, 0, len(system)+len(messages))
	for _, block := range system {
		content := block.Text
		full = append(full, Message{Role: "system", Content: &content, Cache: block.Cache})
	}
	full = append(full, messages...)

	req := wireReq{
		Model:       model,
		Messages:    full,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
		StreamOpts:  map[string]bool{"include_usage": true},
	}
	return json.Marshal(req)
}
