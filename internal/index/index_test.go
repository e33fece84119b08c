package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/gpal/internal/config"
	"github.com/abdul-hamid-achik/gpal/internal/embed"
)

// stubProvider returns deterministic vectors derived from text length.
type stubProvider struct {
	dims  int
	calls int
	tasks []embed.TaskType
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string, task embed.TaskType) ([][]float32, error) {
	s.calls++
	s.tasks = append(s.tasks, task)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.dims)
		for j := range vec {
			vec[j] = float32((len(text)+j)%17) + 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (s *stubProvider) Model() string              { return "stub-model" }
func (s *stubProvider) Dimensions() int            { return s.dims }
func (s *stubProvider) Ping(context.Context) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataHome = t.TempDir()
	cfg.Embedding.Dimensions = 8
	cfg.Indexing.Workers = 2
	return cfg
}

func openTestIndex(t *testing.T, root string) *Index {
	t.Helper()
	idx, err := Open(root, testConfig(t), &stubProvider{dims: 8})
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestOpen_StableIdentity(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t)

	idx1, err := Open(root, cfg, &stubProvider{dims: 8})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	identity := idx1.Identity()
	idx1.Close()

	idx2, err := Open(root, cfg, &stubProvider{dims: 8})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()

	if idx2.Identity() != identity {
		t.Errorf("identity changed across opens: %q vs %q", identity, idx2.Identity())
	}
	if len(identity) != 12 {
		t.Errorf("expected 12-char identity, got %q", identity)
	}
}

func TestOpen_MissingRoot(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope"), testConfig(t), &stubProvider{dims: 8}); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestIndexFile_AddsChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", numberedLines(30))
	idx := openTestIndex(t, root)

	if err := idx.IndexFile(context.Background(), "main.go"); err != nil {
		t.Fatalf("index file: %v", err)
	}

	st := idx.Status()
	if st.Files != 1 {
		t.Errorf("expected 1 file, got %d", st.Files)
	}
	if st.Chunks != 1 {
		t.Errorf("expected 1 chunk, got %d", st.Chunks)
	}
}

func TestIndexFile_ReindexReplacesChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", numberedLines(100))
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if err := idx.IndexFile(ctx, "main.go"); err != nil {
		t.Fatalf("index file: %v", err)
	}
	before := idx.Status().Chunks

	// Re-indexing the unchanged file must not accumulate chunks.
	if err := idx.IndexFile(ctx, "main.go"); err != nil {
		t.Fatalf("reindex file: %v", err)
	}
	if after := idx.Status().Chunks; after != before {
		t.Errorf("chunk count changed on reindex: %d -> %d", before, after)
	}

	// Shrinking the file drops the extra chunks.
	writeFile(t, root, "main.go", numberedLines(10))
	if err := idx.IndexFile(ctx, "main.go"); err != nil {
		t.Fatalf("reindex shrunk file: %v", err)
	}
	if got := idx.Status().Chunks; got != 1 {
		t.Errorf("expected 1 chunk after shrink, got %d", got)
	}
}

func TestIndexFile_DeletedFileRemoved(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "gone.go", numberedLines(20))
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if err := idx.IndexFile(ctx, "gone.go"); err != nil {
		t.Fatalf("index file: %v", err)
	}
	if idx.Status().Chunks == 0 {
		t.Fatal("expected chunks before delete")
	}

	os.Remove(path)

	// Indexing a missing file reduces to removing its chunks.
	if err := idx.IndexFile(ctx, "gone.go"); err != nil {
		t.Fatalf("index deleted file: %v", err)
	}
	if got := idx.Status().Chunks; got != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", got)
	}
}

func TestIndexFile_IneligibleFileRemoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data.txt", numberedLines(20))
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if err := idx.IndexFile(ctx, "data.txt"); err != nil {
		t.Fatalf("index file: %v", err)
	}
	if idx.Status().Chunks == 0 {
		t.Fatal("expected chunks before ignore")
	}

	// Once .gitignore covers the file, reindexing purges it.
	writeFile(t, root, ".gitignore", "data.txt\n")
	idx.filter = NewPathFilter(root)

	if err := idx.IndexFile(ctx, "data.txt"); err != nil {
		t.Fatalf("reindex ignored file: %v", err)
	}
	if got := idx.Status().Chunks; got != 0 {
		t.Errorf("expected 0 chunks for ignored file, got %d", got)
	}
}

func TestIndexFile_OutsideRootNoOp(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	path := writeFile(t, other, "outside.go", numberedLines(20))
	idx := openTestIndex(t, root)

	if err := idx.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if got := idx.Status().Chunks; got != 0 {
		t.Errorf("expected 0 chunks, got %d", got)
	}
}

func TestRebuild_CountsEligibleFiles(t *testing.T) {
	root := t.TempDir()

	for i := 0; i < 10; i++ {
		writeFile(t, root, fmt.Sprintf("src/file%d.go", i), numberedLines(20))
	}
	// Ineligible: hidden, binary suffix, gitignored.
	writeFile(t, root, ".hidden/secret.go", numberedLines(5))
	writeFile(t, root, "logo.png", "not really an image")
	writeFile(t, root, "bundle.min.js", "minified")
	writeFile(t, root, ".gitignore", "skipped/\n")
	writeFile(t, root, "skipped/ignored.go", numberedLines(5))

	idx := openTestIndex(t, root)

	count, err := idx.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10 eligible files, got %d", count)
	}

	st := idx.Status()
	if st.Files != 10 {
		t.Errorf("expected 10 files in index, got %d", st.Files)
	}
	if st.Chunks != 10 {
		t.Errorf("expected 10 chunks, got %d", st.Chunks)
	}
}

func TestRebuild_ClearsPreviousContents(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "old.go", numberedLines(20))
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}

	os.Remove(path)
	writeFile(t, root, "new.go", numberedLines(20))

	count, err := idx.Rebuild(ctx)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 file, got %d", count)
	}

	matches, err := idx.Search(ctx, "line", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, m := range matches {
		if m.File == "old.go" {
			t.Error("stale file survived rebuild")
		}
	}
}

func TestSearch_Formatting(t *testing.T) {
	root := t.TempDir()
	long := strings.Repeat("x", 300)
	writeFile(t, root, "long.go", long+"\n")
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	matches, err := idx.Search(ctx, "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	m := matches[0]
	if m.File != "long.go" {
		t.Errorf("unexpected file %q", m.File)
	}
	if m.Lines != "1-1" {
		t.Errorf("unexpected lines %q", m.Lines)
	}
	if !strings.HasSuffix(m.Snippet, "...") {
		t.Errorf("long snippet should be truncated with ellipsis: %q", m.Snippet)
	}
	if got := len([]rune(m.Snippet)); got != 203 {
		t.Errorf("expected 203-rune snippet, got %d", got)
	}
}

func TestSearch_ShortSnippetNotTruncated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "short.go", "tiny content\n")
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	matches, err := idx.Search(ctx, "tiny", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Snippet != "tiny content" {
		t.Errorf("short snippet should be returned verbatim, got %q", matches[0].Snippet)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())

	matches, err := idx.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestSearch_EmptyQueryStillEmbedded(t *testing.T) {
	root := t.TempDir()
	provider := &stubProvider{dims: 8}
	idx, err := Open(root, testConfig(t), provider)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	// Blank queries go through the provider like any other: exactly one
	// query-mode embedding call each.
	for _, query := range []string{"", "   "} {
		before := provider.calls
		if _, err := idx.Search(context.Background(), query, 5); err != nil {
			t.Fatalf("search %q: %v", query, err)
		}
		if got := provider.calls - before; got != 1 {
			t.Errorf("search %q: expected 1 embedding call, got %d", query, got)
		}
	}
	for i, task := range provider.tasks {
		if task != embed.TaskQuery {
			t.Errorf("call %d: expected %q task, got %q", i, embed.TaskQuery, task)
		}
	}
}

func TestSearch_LimitDefaults(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 8; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.go", i), numberedLines(5))
	}
	idx := openTestIndex(t, root)
	ctx := context.Background()

	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	matches, err := idx.Search(ctx, "line", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) > DefaultSearchLimit {
		t.Errorf("expected at most %d matches with default limit, got %d",
			DefaultSearchLimit, len(matches))
	}
}

func TestSimilarityScore(t *testing.T) {
	tests := []struct {
		distance float32
		want     float64
	}{
		{0, 1},
		{1, 0},
		{0.25, 0.75},
		{0.1234, 0.877},
	}
	for _, tt := range tests {
		if got := similarityScore(tt.distance); got != tt.want {
			t.Errorf("similarityScore(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestFormatLines(t *testing.T) {
	if got := formatLines(3, 17); got != "3-17" {
		t.Errorf("formatLines(3, 17) = %q", got)
	}
	if got := formatLines(0, 0); got != "?-?" {
		t.Errorf("formatLines(0, 0) = %q", got)
	}
}
