package kb

import (
	"context"
	"strings"
	"testing"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
)

func TestGenerateContext_FormatsNumberedDocuments(t *testing.T) {
	ctxBlock := generateContext([]entities.RetrievalResult{
		{Text: "first fact"},
		{Text: "second fact"},
	})
	if !strings.Contains(ctxBlock, "[Document 1] first fact") {
		t.Errorf("missing first document marker: %q", ctxBlock)
	}
	if !strings.Contains(ctxBlock, "[Document 2] second fact") {
		t.Errorf("missing second document marker: %q", ctxBlock)
	}
}

func TestGenerateContext_EmptyResultsYieldsEmptyString(t *testing.T) {
	if got := generateContext(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestAnswerer_Answer_UsesLLMCompletion(t *testing.T) {
	llm := &fakeLLM{response: "the answer"}
	a := newAnswerer(llm)

	resp, err := a.answer(context.Background(), entities.QueryRequest{Query: []string{"q"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "the answer" {
		t.Errorf("got answer %q", resp.Answer)
	}
}

func TestAnswerer_StreamAnswer_CancelsWithContext(t *testing.T) {
	llm := &fakeLLM{response: "one two three four five"}
	a := newAnswerer(llm)
	ctx, cancel := context.WithCancel(context.Background())

	deltas, err := a.streamAnswer(ctx, entities.QueryRequest{Query: []string{"q"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := <-deltas
	if first.Text == "" {
		t.Fatal("expected a first token")
	}
	cancel()

	for range deltas {
		// drain until the goroutine observes cancellation and closes the channel
	}
}
