// Package index implements the semantic code index: file discovery, line
// chunking, embedding, and ranked similarity search over a per-project
// vector store.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/gpal/internal/config"
	"github.com/abdul-hamid-achik/gpal/internal/embed"
	"github.com/abdul-hamid-achik/gpal/internal/store"
)

// DefaultSearchLimit is the number of matches returned when no limit is given.
const DefaultSearchLimit = 5

// Match is one search result, formatted for display.
type Match struct {
	File    string  `json:"file"`
	Lines   string  `json:"lines"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Status summarizes the state of a project index.
type Status struct {
	Root       string `json:"root"`
	Identity   string `json:"identity"`
	Path       string `json:"path"`
	Files      int    `json:"files"`
	Chunks     int    `json:"chunks"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Index is the semantic search index for one project root. Mutating
// operations are serialized; Search runs concurrently with them.
type Index struct {
	root     string
	identity string
	workers  int

	store   *store.Store
	gateway *embed.Gateway
	filter  *PathFilter
	chunker *Chunker

	mu sync.Mutex
}

// Open opens (or creates) the index for the given project root. The root is
// resolved to a canonical absolute path; its hash selects the storage
// directory under the data home, so the same project always maps to the same
// collection.
func Open(root string, cfg *config.Config, provider embed.Provider) (*Index, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	identity := pathIdentity(abs)
	dir := filepath.Join(config.IndexRoot(cfg.DataHome), identity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	st, err := store.Open(dir, provider.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := config.RegisterProject(cfg.DataHome, identity, abs); err != nil {
		log.Printf("register project %s: %v", abs, err)
	}

	workers := cfg.Indexing.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Index{
		root:     abs,
		identity: identity,
		workers:  workers,
		store:    st,
		gateway:  embed.NewGateway(provider, cfg.Embedding.BatchSize),
		filter:   NewPathFilter(abs),
		chunker:  NewChunker(),
	}, nil
}

// pathIdentity derives the stable storage identity for a canonical root.
func pathIdentity(root string) string {
	sum := sha256.Sum256([]byte(root))
	return hex.EncodeToString(sum[:6])
}

// Root returns the canonical project root.
func (idx *Index) Root() string {
	return idx.root
}

// Identity returns the storage identity derived from the root.
func (idx *Index) Identity() string {
	return idx.identity
}

// IndexFile indexes or re-indexes a single file. Existing chunks for the file
// are always removed first, so a file that became ineligible or empty ends up
// fully deleted from the index. Paths outside the root are a silent no-op.
func (idx *Index) IndexFile(ctx context.Context, path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.indexFile(ctx, path); err != nil {
		return err
	}
	return idx.store.Sync()
}

// indexFile is IndexFile without the lock, shared with Rebuild's workers.
func (idx *Index) indexFile(ctx context.Context, path string) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(idx.root, abs)
	}

	rel, ok := idx.filter.Rel(abs)
	if !ok {
		return nil
	}

	if _, err := idx.store.DeleteFile(rel); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", rel, err)
	}

	if !idx.filter.Eligible(abs) {
		return nil
	}

	chunks := idx.chunker.ChunkFile(abs, rel)
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metas := make([]store.ChunkMeta, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
		metas[i] = store.ChunkMeta{
			File:      c.File,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
		}
	}

	vectors, err := idx.gateway.Embed(ctx, texts, embed.TaskDocument)
	if err != nil {
		return fmt.Errorf("embed %s: %w", rel, err)
	}

	if err := idx.store.Upsert(ids, vectors, texts, metas); err != nil {
		return fmt.Errorf("store %s: %w", rel, err)
	}

	return nil
}

// Rebuild clears the index and re-indexes every eligible file under the root.
// Files are embedded concurrently by a bounded worker group; the first error
// aborts the rebuild. It returns the number of eligible files indexed.
func (idx *Index) Rebuild(ctx context.Context) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.store.Recreate(); err != nil {
		return 0, fmt.Errorf("reset collection: %w", err)
	}

	var files []string
	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		if idx.filter.Eligible(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", idx.root, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, path := range files {
		g.Go(func() error {
			return idx.indexFile(gctx, path)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := idx.store.Sync(); err != nil {
		return 0, fmt.Errorf("sync store: %w", err)
	}

	return len(files), nil
}

// Search embeds the query and returns up to limit matches, best first. A
// limit of zero or below selects the default. The query is always embedded,
// even when empty, so ranking stays consistent with how documents were
// embedded.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vectors, err := idx.gateway.Embed(ctx, []string{query}, embed.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := idx.store.Query(vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, Match{
			File:    orUnknown(h.Meta.File),
			Lines:   formatLines(h.Meta.StartLine, h.Meta.EndLine),
			Score:   similarityScore(h.Distance),
			Snippet: truncateSnippet(h.Text),
		})
	}

	return matches, nil
}

// Status reports index statistics.
func (idx *Index) Status() Status {
	return Status{
		Root:       idx.root,
		Identity:   idx.identity,
		Path:       idx.store.Path(),
		Files:      len(idx.store.Files()),
		Chunks:     idx.store.Count(),
		Model:      idx.gateway.Model(),
		Dimensions: idx.gateway.Dimensions(),
	}
}

// Ping checks the embedding provider.
func (idx *Index) Ping(ctx context.Context) error {
	return idx.gateway.Ping(ctx)
}

// Close syncs and closes the underlying store.
func (idx *Index) Close() error {
	if err := idx.store.Sync(); err != nil {
		return err
	}
	return idx.store.Close()
}

// similarityScore converts a cosine distance to a similarity rounded to
// three decimals.
func similarityScore(distance float32) float64 {
	return math.Round((1-float64(distance))*1000) / 1000
}

// truncateSnippet trims a chunk text for display.
func truncateSnippet(text string) string {
	const maxSnippet = 200
	runes := []rune(text)
	if len(runes) <= maxSnippet {
		return text
	}
	return string(runes[:maxSnippet]) + "..."
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// formatLines renders a line range, with "?" for missing bounds.
func formatLines(start, end int) string {
	s, e := "?", "?"
	if start > 0 {
		s = fmt.Sprintf("%d", start)
	}
	if end > 0 {
		e = fmt.Sprintf("%d", end)
	}
	return s + "-" + e
}
