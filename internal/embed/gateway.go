package embed

import (
	"context"
)

// DefaultBatchSize is the maximum number of texts sent in one provider request.
const DefaultBatchSize = 100

// Gateway batches texts to an embedding provider. It guarantees that the
// returned vectors line up index-for-index with the input texts, and that a
// failed batch aborts the whole call instead of yielding a partial result.
type Gateway struct {
	provider  Provider
	batchSize int
}

// NewGateway creates a Gateway around the given provider.
func NewGateway(provider Provider, batchSize int) *Gateway {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Gateway{
		provider:  provider,
		batchSize: batchSize,
	}
}

// Embed converts texts into vectors, splitting the input into consecutive
// batches no larger than the configured ceiling. Empty input returns an empty
// result without touching the provider. Batch failures are reported as a
// *BatchError carrying the zero-based batch index.
func (g *Gateway) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for i, batchIdx := 0, 0; i < len(texts); i, batchIdx = i+g.batchSize, batchIdx+1 {
		end := i + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := g.provider.EmbedBatch(ctx, texts[i:end], task)
		if err != nil {
			return nil, &BatchError{Batch: batchIdx, Err: err}
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// Model returns the underlying provider's model name.
func (g *Gateway) Model() string {
	return g.provider.Model()
}

// Dimensions returns the underlying provider's vector dimensions.
func (g *Gateway) Dimensions() int {
	return g.provider.Dimensions()
}

// Ping checks the underlying provider.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.provider.Ping(ctx)
}

// BatchSize returns the configured batch ceiling.
func (g *Gateway) BatchSize() int {
	return g.batchSize
}
