package llm

import (
	"context"
	"strings"
)

const annotationPrompt = `Review the conversation turn below. List any durable facts worth
remembering across future sessions, one per line, at most three lines.
Only facts the user stated or clearly implied; no speculation. If nothing
is worth keeping, output nothing.`

// SuggestAnnotations asks model for durable facts worth pinning from one
// user turn, returning them as plain note strings the caller may turn into
// annotation events. It is a best-effort side path: any error yields nil
// and the caller moves on. Intended to run on a background goroutine so it
// never delays the turn it observes.
func SuggestAnnotations(ctx context.Context, s Streamer, model, userMessage string) []string {
	content := userMessage
	req := CompletionRequest{
		Model: model,
		System: []PromptBlock{
			{Text: annotationPrompt},
		},
		Messages:    []Message{{Role: "user", Content: &content}},
		Temperature: 0,
		MaxTokens:   256,
	}

	out := make(chan StreamChunk, 16)
	errCh := make(chan error, 1)
	go func() {
		err := s.Stream(ctx, req, out)
		close(out)
		errCh <- err
	}()

	var b strings.Builder
	for chunk := range out {
		b.WriteString(chunk.ContentDelta)
	}
	if err := <-errCh; err != nil {
		return nil
	}

	var notes []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		notes = append(notes, line)
		if len(notes) == 3 {
			break
		}
	}
	return notes
}
