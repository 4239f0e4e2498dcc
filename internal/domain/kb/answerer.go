package kb

import (
	"context"
	"fmt"
	"strings"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
)

// answerer composes retrieved context into a language-appropriate prompt
// and drives the LLM to produce a grounded answer (C6).
type answerer struct {
	llm ports.LLMService
}

func newAnswerer(llm ports.LLMService) *answerer {
	return &answerer{llm: llm}
}

// generateContext renders retrieval results as a
// "Relevant information:\n\n[Document i] <text>" block, one entry per
// result in the order given (callers pass results already sorted by
// descending score).
func generateContext(results []entities.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant information:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[Document %d] %s\n", i+1, r.Text)
	}
	return b.String()
}

// answer produces a single blocking response grounded on results.
func (a *answerer) answer(ctx context.Context, req entities.QueryRequest, results []entities.RetrievalResult) (entities.ChatResponse, error) {
	const op = "answerer.answer"

	prompt := buildPrompt(req.PreferredLanguage, req.ConversationHistory, generateContext(results), req.EffectiveQuery())
	text, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return entities.ChatResponse{}, kberrors.New(kberrors.LLMError, op, err)
	}
	return entities.ChatResponse{Answer: text, Sources: results}, nil
}

// streamAnswer returns a channel of text deltas grounded on results; the
// channel closes when the underlying LLMService stream ends or ctx is
// cancelled, matching the context-cancellable streaming contract.
func (a *answerer) streamAnswer(ctx context.Context, req entities.QueryRequest, results []entities.RetrievalResult) (<-chan ports.Delta, error) {
	const op = "answerer.streamAnswer"

	prompt := buildPrompt(req.PreferredLanguage, req.ConversationHistory, generateContext(results), req.EffectiveQuery())
	deltas, err := a.llm.StreamComplete(ctx, prompt)
	if err != nil {
		return nil, kberrors.New(kberrors.LLMError, op, err)
	}
	return deltas, nil
}
