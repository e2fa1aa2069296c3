package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/kittclouds/aide/internal/kernel"
)

// wireEvent mirrors one compact JSONL event line the tier LLM emits: short
// keys (t for type, p for props/payload) to keep per-line token overhead
// down, normalized here into the kernel's canonical PrimitiveType+payload
// shape before anything downstream sees it.
type wireEvent struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// ParsedItem is one complete unit the Parser has recognized: either a
// structured event line, a free-form voice fragment, or a malformed line
// that the caller should skip and log.
type ParsedItem struct {
	IsVoice   bool
	VoiceText string

	Type    kernel.PrimitiveType
	Payload json.RawMessage

	Malformed bool
	Raw       string
}

// Parser incrementally line-buffers streamed LLM content and yields
// complete lines as ParsedItems, holding back any trailing partial line for
// the next Feed call. One JSON object per line is a structured event;
// anything else is free-form voice text. A malformed line never aborts the
// stream; it is reported so the caller can log and skip it.
type Parser struct {
	buf strings.Builder
}

// NewParser returns a Parser with an empty line buffer.
func NewParser() *Parser { return &Parser{} }

// Feed appends chunk to the buffer and returns every complete line it now
// contains, parsed. An incomplete trailing line is retained for the next
// Feed or Flush call.
func (p *Parser) Feed(chunk string) []ParsedItem {
	p.buf.WriteString(chunk)
	content := p.buf.String()
	p.buf.Reset()

	lines := strings.Split(content, "\n")
	complete := lines[:len(lines)-1]
	p.buf.WriteString(lines[len(lines)-1])

	out := make([]ParsedItem, 0, len(complete))
	for _, line := range complete {
		if item, ok := parseLine(line); ok {
			out = append(out, item)
		}
	}
	return out
}

// Flush parses and returns whatever partial line remains buffered, treating
// it as a final (possibly incomplete) line. Call once at stream end.
func (p *Parser) Flush() []ParsedItem {
	remainder := p.buf.String()
	p.buf.Reset()
	if item, ok := parseLine(remainder); ok {
		return []ParsedItem{item}
	}
	return nil
}

func parseLine(line string) (ParsedItem, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ParsedItem{}, false
	}
	if !strings.HasPrefix(trimmed, "{") {
		return ParsedItem{IsVoice: true, VoiceText: trimmed}, true
	}
	var we wireEvent
	if err := json.Unmarshal([]byte(trimmed), &we); err != nil || we.T == "" {
		return ParsedItem{Malformed: true, Raw: trimmed}, true
	}
	return ParsedItem{Type: kernel.PrimitiveType(we.T), Payload: we.P}, true
}
