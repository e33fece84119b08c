package session

import (
	"context"
	"testing"

	"github.com/abdul-hamid-achik/gpal/internal/config"
	"github.com/abdul-hamid-achik/gpal/internal/embed"
)

type stubProvider struct{ dims int }

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string, task embed.TaskType) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, s.dims)
	}
	return vectors, nil
}

func (s *stubProvider) Model() string              { return "stub" }
func (s *stubProvider) Dimensions() int            { return s.dims }
func (s *stubProvider) Ping(context.Context) error { return nil }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataHome = t.TempDir()
	return NewRegistry(cfg, &stubProvider{dims: 8})
}

func TestGet_OpensOnce(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Shutdown()
	root := t.TempDir()

	idx1, err := r.Get("s1", root)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	idx2, err := r.Get("s1", root)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	if idx1 != idx2 {
		t.Error("same session id should return the same index")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 open session, got %d", r.Len())
	}
}

func TestGet_SeparateSessions(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Shutdown()

	idx1, err := r.Get("s1", t.TempDir())
	if err != nil {
		t.Fatalf("get s1: %v", err)
	}
	idx2, err := r.Get("s2", t.TempDir())
	if err != nil {
		t.Fatalf("get s2: %v", err)
	}

	if idx1 == idx2 {
		t.Error("different sessions should get different indexes")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 open sessions, got %d", r.Len())
	}
}

func TestGet_BadRoot(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Shutdown()

	if _, err := r.Get("s1", "/does/not/exist"); err == nil {
		t.Fatal("expected error for missing root")
	}
	if r.Len() != 0 {
		t.Errorf("failed open should not be registered, got %d sessions", r.Len())
	}
}

func TestClose(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Shutdown()

	if _, err := r.Get("s1", t.TempDir()); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := r.Close("s1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected 0 sessions after close, got %d", r.Len())
	}

	// Closing an unknown session is a no-op.
	if err := r.Close("missing"); err != nil {
		t.Errorf("close unknown: %v", err)
	}
}

func TestLookup(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Shutdown()

	if _, ok := r.Lookup("s1"); ok {
		t.Error("lookup before open should miss")
	}

	idx, err := r.Get("s1", t.TempDir())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	got, ok := r.Lookup("s1")
	if !ok || got != idx {
		t.Error("lookup should return the open index")
	}
}

func TestShutdown(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Get("s1", t.TempDir()); err != nil {
		t.Fatalf("get s1: %v", err)
	}
	if _, err := r.Get("s2", t.TempDir()); err != nil {
		t.Fatalf("get s2: %v", err)
	}

	if err := r.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected 0 sessions after shutdown, got %d", r.Len())
	}
}
