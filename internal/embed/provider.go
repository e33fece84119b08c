// Package embed provides embedding generation for the semantic code index.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// TaskType distinguishes document-indexing embeddings from query embeddings.
// Providers may embed the two roles differently; mixing them degrades ranking.
type TaskType string

const (
	// TaskDocument marks texts being indexed.
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"
	// TaskQuery marks search queries.
	TaskQuery TaskType = "RETRIEVAL_QUERY"
)

// Common errors for embedding providers.
var (
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	ErrModelNotFound       = errors.New("embedding model not found")
	ErrEmptyBatch          = errors.New("cannot embed empty batch")
	ErrContextCanceled     = errors.New("embedding operation canceled")
	ErrRateLimited         = errors.New("rate limited by embedding provider")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
)

// Provider defines the interface for embedding backends.
type Provider interface {
	// EmbedBatch generates embedding vectors for the given texts, one vector
	// per input, in input order. The task type must be honored so document
	// and query vectors are never produced under the wrong role.
	EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimensions returns the dimensionality of the embedding vectors.
	Dimensions() int

	// Ping checks if the provider is available and the model is loaded.
	Ping(ctx context.Context) error
}

// ProviderError wraps errors with provider context.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, op string, err error) error {
	return &ProviderError{
		Provider: provider,
		Op:       op,
		Err:      err,
	}
}

// BatchError reports which batch of a gateway call failed. The whole call is
// aborted; no partial vector list is ever returned.
type BatchError struct {
	Batch int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embed batch %d: %v", e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
