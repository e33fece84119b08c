package embed

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeProvider returns deterministic vectors and records calls.
type fakeProvider struct {
	dims    int
	calls   [][]string
	tasks   []TaskType
	failOn  int // 1-based call number to fail on, 0 = never
	failErr error
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.tasks = append(f.tasks, task)

	if f.failOn > 0 && len(f.calls) == f.failOn {
		err := f.failErr
		if err == nil {
			err = errors.New("provider failure")
		}
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dims)
		vec[0] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}

func (f *fakeProvider) Model() string            { return "fake-model" }
func (f *fakeProvider) Dimensions() int          { return f.dims }
func (f *fakeProvider) Ping(context.Context) error { return nil }

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%d", i)
	}
	return out
}

func TestGateway_EmptyInputSkipsProvider(t *testing.T) {
	p := &fakeProvider{dims: 4}
	g := NewGateway(p, 10)

	vectors, err := g.Embed(context.Background(), nil, TaskDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors, got %d", len(vectors))
	}
	if len(p.calls) != 0 {
		t.Errorf("provider should not be called for empty input, got %d calls", len(p.calls))
	}
}

func TestGateway_SingleBatch(t *testing.T) {
	p := &fakeProvider{dims: 4}
	g := NewGateway(p, 10)

	vectors, err := g.Embed(context.Background(), texts(7), TaskDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 7 {
		t.Errorf("expected 7 vectors, got %d", len(vectors))
	}
	if len(p.calls) != 1 {
		t.Errorf("expected 1 provider call, got %d", len(p.calls))
	}
	if p.tasks[0] != TaskDocument {
		t.Errorf("expected task %q, got %q", TaskDocument, p.tasks[0])
	}
}

func TestGateway_SplitsIntoConsecutiveBatches(t *testing.T) {
	p := &fakeProvider{dims: 4}
	g := NewGateway(p, 10)

	vectors, err := g.Embed(context.Background(), texts(25), TaskQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 25 {
		t.Errorf("expected 25 vectors, got %d", len(vectors))
	}
	if len(p.calls) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(p.calls))
	}

	wantSizes := []int{10, 10, 5}
	for i, want := range wantSizes {
		if len(p.calls[i]) != want {
			t.Errorf("batch %d: expected %d texts, got %d", i, want, len(p.calls[i]))
		}
	}

	// Order must be preserved across batch boundaries.
	if p.calls[1][0] != "text-10" || p.calls[2][0] != "text-20" {
		t.Errorf("batches out of order: %q, %q", p.calls[1][0], p.calls[2][0])
	}
}

func TestGateway_BatchFailureAbortsWholeCall(t *testing.T) {
	p := &fakeProvider{dims: 4, failOn: 2}
	g := NewGateway(p, 10)

	vectors, err := g.Embed(context.Background(), texts(25), TaskDocument)
	if err == nil {
		t.Fatal("expected error")
	}
	if vectors != nil {
		t.Error("no partial results should be returned on batch failure")
	}

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if batchErr.Batch != 1 {
		t.Errorf("expected failing batch index 1, got %d", batchErr.Batch)
	}
}

func TestGateway_DefaultBatchSize(t *testing.T) {
	g := NewGateway(&fakeProvider{dims: 4}, 0)
	if g.BatchSize() != DefaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", DefaultBatchSize, g.BatchSize())
	}
}
