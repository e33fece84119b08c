// Package store persists code-chunk embeddings in an embedded VecLite
// database, one collection per project index.
package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/abdul-hamid-achik/veclite"
)

const collectionName = "code"

// ChunkMeta is the metadata stored alongside each chunk vector.
type ChunkMeta struct {
	File      string
	StartLine int
	EndLine   int
}

// Hit is a single result of a similarity query.
type Hit struct {
	ID       string
	Text     string
	Meta     ChunkMeta
	Distance float32
}

// Store wraps a VecLite database holding the chunk collection for one project.
// The underlying collection is not safe for a reader concurrent with a writer,
// and Recreate swaps the collection pointer, so reads hold the read lock and
// every mutation holds the write lock.
type Store struct {
	db   *veclite.DB
	coll *veclite.Collection
	path string
	dims int

	mu sync.RWMutex
}

// Open opens (or creates) the store at dir, ensuring the chunk collection
// exists with the given vector dimensions.
func Open(dir string, dims int) (*Store, error) {
	db, err := veclite.Open(filepath.Join(dir, "vectors.veclite"))
	if err != nil {
		return nil, fmt.Errorf("open veclite database: %w", err)
	}

	coll, err := db.CreateCollection(collectionName,
		veclite.WithDimension(dims),
		veclite.WithDistanceType(veclite.DistanceCosine),
		veclite.WithHNSW(16, 200), // M=16, efConstruction=200
	)
	if err != nil {
		// Collection might already exist, try to get it
		coll, err = db.GetCollection(collectionName)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create/get collection: %w", err)
		}
	}

	return &Store{
		db:   db,
		coll: coll,
		path: dir,
		dims: dims,
	}, nil
}

// Recreate drops and recreates the chunk collection, discarding every stored
// vector. Dropping rather than deleting record-by-record also resets the HNSW
// index, which veclite does not rebuild after bulk deletes.
func (s *Store) Recreate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropCollection(collectionName); err != nil {
		// Collection might not exist, ignore error
		_ = err
	}

	coll, err := s.db.CreateCollection(collectionName,
		veclite.WithDimension(s.dims),
		veclite.WithDistanceType(veclite.DistanceCosine),
		veclite.WithHNSW(16, 200),
	)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.coll = coll

	return nil
}

// Upsert stores vectors for the given chunk ids, replacing any records that
// already carry those ids. All four slices must have equal length.
func (s *Store) Upsert(ids []string, vectors [][]float32, texts []string, metas []ChunkMeta) error {
	if len(ids) != len(vectors) || len(ids) != len(texts) || len(ids) != len(metas) {
		return fmt.Errorf("upsert length mismatch: %d ids, %d vectors, %d texts, %d metas",
			len(ids), len(vectors), len(texts), len(metas))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range ids {
		if len(vectors[i]) != s.dims {
			return fmt.Errorf("vector dimension mismatch at %q: got %d, expected %d", id, len(vectors[i]), s.dims)
		}

		if _, err := s.coll.DeleteWhere(veclite.Equal("chunk_id", id)); err != nil {
			return fmt.Errorf("delete existing chunk %q: %w", id, err)
		}

		payload := map[string]any{
			"chunk_id":   id,
			"file":       metas[i].File,
			"start_line": metas[i].StartLine,
			"end_line":   metas[i].EndLine,
			"text":       texts[i],
		}
		if _, err := s.coll.Insert(vectors[i], payload); err != nil {
			return fmt.Errorf("insert chunk %q: %w", id, err)
		}
	}

	return nil
}

// DeleteFile removes every chunk belonging to the given root-relative path.
// It returns the number of records removed; a path with no chunks is a no-op.
func (s *Store) DeleteFile(relPath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.coll.DeleteWhere(veclite.Equal("file", relPath))
	if err != nil {
		return 0, fmt.Errorf("delete chunks for %q: %w", relPath, err)
	}
	return deleted, nil
}

// Query returns the limit nearest chunks to the given vector, closest first.
func (s *Store) Query(vector []float32, limit int) ([]Hit, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), s.dims)
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.coll.Search(vector, veclite.TopK(limit))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:   getStringPayload(r.Record.Payload, "chunk_id"),
			Text: getStringPayload(r.Record.Payload, "text"),
			Meta: ChunkMeta{
				File:      getStringPayload(r.Record.Payload, "file"),
				StartLine: getIntPayload(r.Record.Payload, "start_line"),
				EndLine:   getIntPayload(r.Record.Payload, "end_line"),
			},
			Distance: r.Score,
		})
	}

	return hits, nil
}

// Files returns the set of distinct root-relative paths with chunks stored.
func (s *Store) Files() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make(map[string]int)
	for _, r := range s.coll.All() {
		if f := getStringPayload(r.Payload, "file"); f != "" {
			files[f]++
		}
	}
	return files
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll.Count()
}

// Path returns the directory the store lives in.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the vector dimensionality of the collection.
func (s *Store) Dimensions() int {
	return s.dims
}

// Sync persists any pending changes.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Sync()
}

// Close syncs and closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Helper functions for payload extraction

func getStringPayload(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getIntPayload(payload map[string]any, key string) int {
	if v, ok := payload[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}
