package embed

import (
	"context"
	"time"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 30 * time.Minute
)

// CachedProvider wraps a Provider with an embedding cache. Cache hits skip the
// backend entirely; a batch with any miss embeds only the missing texts and
// splices the results back into input order.
type CachedProvider struct {
	provider Provider
	cache    *EmbeddingCache
}

// NewCachedProvider wraps provider with a cache of maxSize entries and the
// given ttl. Zero values select the defaults.
func NewCachedProvider(provider Provider, maxSize int, ttl time.Duration) *CachedProvider {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProvider{
		provider: provider,
		cache:    NewEmbeddingCache(maxSize, ttl),
	}
}

// EmbedBatch returns cached vectors where available and delegates the rest to
// the wrapped provider in a single call.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := p.cache.Get(text, task); ok {
			results[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	vectors, err := p.provider.EmbedBatch(ctx, missing, task)
	if err != nil {
		return nil, err
	}

	for j, idx := range missingIdx {
		results[idx] = vectors[j]
		p.cache.Set(texts[idx], task, vectors[j])
	}

	return results, nil
}

// Model returns the wrapped provider's model name.
func (p *CachedProvider) Model() string {
	return p.provider.Model()
}

// Dimensions returns the wrapped provider's vector dimensions.
func (p *CachedProvider) Dimensions() int {
	return p.provider.Dimensions()
}

// Ping checks the wrapped provider.
func (p *CachedProvider) Ping(ctx context.Context) error {
	return p.provider.Ping(ctx)
}

// CacheSize returns the number of cached embeddings.
func (p *CachedProvider) CacheSize() int {
	return p.cache.Size()
}

var _ Provider = (*CachedProvider)(nil)
