package orchestrator

import (
	"fmt"

	"github.com/kittclouds/aide/internal/classifier"
	"github.com/kittclouds/aide/internal/kernel"
	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/persistence"
)

// sharedPrefixBody is the cacheable system content common to every tier:
// voice rules, the primitive catalog, and entity-tree structure notes. It
// never mentions the current snapshot, so it is safe to cache across many
// turns of the same aide (and, in principle, across aides sharing a
// blueprint voice).
const sharedPrefixBody = `You are AIde, a conversational editor. You emit one JSON object per line
for every state-changing action ({"t":"<primitive>","p":{...}}), and plain
text lines for anything you want to say aloud to the user (voice).

Recognized primitives: entity.create, entity.update, entity.remove,
entity.move, entity.reorder, rel.set, rel.remove, rel.constrain, style.set,
style.entity, meta.set, meta.annotate, meta.constrain, schema.create,
schema.update, schema.remove, voice, escalate, batch.start, batch.end.

Entities form a tree rooted at "root". Every entity you create must name an
id, and may name a parent (defaulting to "root"), a display hint, and a
props object. Soft-removed entities stay addressable but are excluded from
rendering and validation.`

func tierBlockBody(tier classifier.Tier) string {
	switch tier {
	case classifier.TierL3:
		return `This turn is classified L3 (structural). Favor creating and organizing
entities: containers, sections, and the child entities they should hold.
Prefer a small number of well-named top-level entities over a flat list.`
	case classifier.TierL4:
		return `This turn is classified L4 (query). The user is asking a question about
the current state. Prefer a voice answer over state mutation; only emit
events if answering requires a small correction the user clearly implied.`
	default:
		return `This turn is classified L2 (routine). Prefer the smallest edit that
satisfies the user's request: usually a single entity.update.`
	}
}

// AssembleRequest builds the CompletionRequest for one turn: a cacheable
// shared-prefix block, a cacheable tier-specific block, an uncached
// current-snapshot block, and a messages array built from the conversation
// tail plus the current user message. The last tail message (if any) is
// marked as a cache breakpoint.
func AssembleRequest(model string, tier classifier.Tier, bp persistence.Blueprint, snap kernel.Snapshot, tail []persistence.ConversationMessage, userMessage string) (llm.CompletionRequest, error) {
	snapJSON, err := snap.CanonicalJSON()
	if err != nil {
		return llm.CompletionRequest{}, fmt.Errorf("orchestrator: marshal snapshot for prompt: %w", err)
	}
	return assembleRequest(model, tier, bp, string(snapJSON), tail, userMessage), nil
}

// assembleRequest is AssembleRequest over an already-rendered snapshot body,
// letting the turn pipeline feed it from the promptCache.
func assembleRequest(model string, tier classifier.Tier, bp persistence.Blueprint, snapJSON string, tail []persistence.ConversationMessage, userMessage string) llm.CompletionRequest {
	blueprintLine := ""
	if bp.Prompt != "" {
		blueprintLine = "\n\n" + bp.Prompt
	}

	system := []llm.PromptBlock{
		{
			Text:  sharedPrefixBody + blueprintLine,
			Cache: &llm.CacheControl{Type: "ephemeral"},
		},
		{
			Text:  tierBlockBody(tier),
			Cache: &llm.CacheControl{Type: "ephemeral"},
		},
		{
			Text: "Current snapshot:\n" + snapJSON,
		},
	}

	// Assistant rows in the conversation tail already hold the compact
	// "[K operations applied]" summary written at persist time (see
	// Orchestrator.runTurn), not the raw JSONL transcript, so the messages
	// array here needs no further summarization.
	messages := make([]llm.Message, 0, len(tail)+1)
	for i, m := range tail {
		content := m.Content
		msg := llm.Message{Role: m.Role, Content: &content}
		if i == len(tail)-1 {
			msg.Cache = &llm.CacheControl{Type: "ephemeral"}
		}
		messages = append(messages, msg)
	}
	messages = append(messages, llm.Message{Role: "user", Content: &userMessage})

	return llm.CompletionRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}
