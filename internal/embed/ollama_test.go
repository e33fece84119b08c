package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func ollamaTestServer(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOllamaProvider(OllamaConfig{
		URL:           srv.URL,
		Dimensions:    4,
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
	})
}

func TestOllamaProvider_EmbedBatch(t *testing.T) {
	var mu sync.Mutex
	var prompts []string

	p := ollamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)

		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()

		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{
			Embedding: []float64{0.1, 0.2, 0.3, 0.4},
		})
	})

	vectors, err := p.EmbedBatch(context.Background(), []string{"alpha", "beta"}, TaskDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 4 {
			t.Errorf("vector %d: expected 4 dimensions, got %d", i, len(v))
		}
	}

	// Document prompts carry the nomic document role prefix.
	found := map[string]bool{}
	mu.Lock()
	for _, prompt := range prompts {
		found[prompt] = true
	}
	mu.Unlock()
	if !found["search_document: alpha"] || !found["search_document: beta"] {
		t.Errorf("prompts missing document prefix: %v", prompts)
	}
}

func TestOllamaProvider_QueryPrefix(t *testing.T) {
	var gotPrompt string
	p := ollamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{
			Embedding: []float64{1, 2, 3, 4},
		})
	})

	if _, err := p.EmbedBatch(context.Background(), []string{"find it"}, TaskQuery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPrompt != "search_query: find it" {
		t.Errorf("expected query prefix, got %q", gotPrompt)
	}
}

func TestOllamaProvider_ModelNotFound(t *testing.T) {
	p := ollamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaErrorResponse{Error: "model \"nomic-embed-text\" not found"})
	})

	_, err := p.EmbedBatch(context.Background(), []string{"x"}, TaskDocument)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOllamaProvider_DimensionMismatch(t *testing.T) {
	p := ollamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{
			Embedding: []float64{1, 2}, // wrong size
		})
	})

	if _, err := p.EmbedBatch(context.Background(), []string{"x"}, TaskDocument); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOllamaProvider_Ping(t *testing.T) {
	p := ollamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestOllamaProvider_PingUnavailable(t *testing.T) {
	p := NewOllamaProvider(OllamaConfig{
		URL:     "http://127.0.0.1:1",
		Timeout: 100 * time.Millisecond,
	})

	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error for unreachable server")
	}
}
