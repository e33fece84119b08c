// Package session tracks open project indexes keyed by session id, so server
// front-ends can reuse one index per project instead of reopening the store
// on every call.
package session

import (
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/gpal/internal/config"
	"github.com/abdul-hamid-achik/gpal/internal/embed"
	"github.com/abdul-hamid-achik/gpal/internal/index"
)

// Registry holds open indexes keyed by session id. All methods are safe for
// concurrent use.
type Registry struct {
	cfg      *config.Config
	provider embed.Provider

	mu      sync.Mutex
	indexes map[string]*index.Index
}

// NewRegistry creates a registry that opens indexes with the given
// configuration and embedding provider.
func NewRegistry(cfg *config.Config, provider embed.Provider) *Registry {
	return &Registry{
		cfg:      cfg,
		provider: provider,
		indexes:  make(map[string]*index.Index),
	}
}

// Get returns the index for a session, opening it for root on first use.
// Subsequent calls with the same id return the existing index regardless of
// root.
func (r *Registry) Get(id, root string) (*index.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.indexes[id]; ok {
		return idx, nil
	}

	idx, err := index.Open(root, r.cfg, r.provider)
	if err != nil {
		return nil, fmt.Errorf("open index for %s: %w", root, err)
	}
	r.indexes[id] = idx
	return idx, nil
}

// Lookup returns the index for a session if one is open.
func (r *Registry) Lookup(id string) (*index.Index, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.indexes[id]
	return idx, ok
}

// Close closes and forgets the index for a session. Unknown ids are a no-op.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	idx, ok := r.indexes[id]
	delete(r.indexes, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return idx.Close()
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indexes)
}

// Shutdown closes every open index, returning the first error encountered.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	indexes := r.indexes
	r.indexes = make(map[string]*index.Index)
	r.mu.Unlock()

	var firstErr error
	for id, idx := range indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %s: %w", id, err)
		}
	}
	return firstErr
}
