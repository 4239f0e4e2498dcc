package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaLLM_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "Hello there!",
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test-model")
	resp, err := adapter.Complete(context.Background(), "Hi")

	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp != "Hello there!" {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestOllamaLLM_StreamComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Streaming response - newline delimited JSON
		w.Write([]byte(`{"response":"Hello","done":false}` + "\n"))
		w.Write([]byte(`{"response":" world","done":false}` + "\n"))
		w.Write([]byte(`{"response":"!","done":true}` + "\n"))
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test")
	ch, err := adapter.StreamComplete(context.Background(), "test")

	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	var tokens []string
	for delta := range ch {
		tokens = append(tokens, delta.Text)
		if delta.Done {
			break
		}
	}

	if len(tokens) < 2 {
		t.Errorf("expected multiple tokens, got %d", len(tokens))
	}
}

func TestOllamaLLM_StreamComplete_CancelStopsChannel(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"Hello","done":false}` + "\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-block
	}))
	defer server.Close()
	defer close(block)

	adapter := NewOllamaLLMAdapter(server.URL, "test")
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := adapter.StreamComplete(ctx, "test")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	<-ch // first token
	cancel()

	for range ch {
		// drain until the goroutine observes cancellation and closes the channel
	}
}

func TestOllamaLLM_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test")
	_, err := adapter.Complete(context.Background(), "test")

	if err == nil {
		t.Error("should error on 404")
	}
}

func TestOllamaLLM_DefaultValues(t *testing.T) {
	adapter := NewOllamaLLMAdapter("", "")
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "llama3.2" {
		t.Error("should default to llama3.2")
	}
}
