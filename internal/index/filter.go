package index

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// maxFileSize is the largest file the indexer will consider.
const maxFileSize = 10 * 1024 * 1024 // 10 MB

// binaryExtensions are binary or generated filename suffixes to skip. Matched
// against the lowercased full filename so multi-part suffixes like .min.js
// are caught.
var binaryExtensions = []string{
	".pyc", ".pyo", ".so", ".o", ".obj", ".bin", ".exe", ".dll",
	".class", ".jar", ".war", ".ear",
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".bmp", ".webp",
	".mp3", ".mp4", ".avi", ".mov", ".mkv", ".wav", ".flac",
	".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".whl", ".egg",
	".min.js", ".min.css",
}

// PathFilter decides which files under a project root are worth indexing.
type PathFilter struct {
	root       string
	ignore     *gitignore.GitIgnore
	maxSize    int64
	extensions []string
}

// NewPathFilter creates a filter for the given absolute project root, loading
// .gitignore patterns from the root if present. An unreadable .gitignore is
// treated as absent.
func NewPathFilter(root string) *PathFilter {
	f := &PathFilter{
		root:       root,
		maxSize:    maxFileSize,
		extensions: binaryExtensions,
	}

	gitignorePath := filepath.Join(root, ".gitignore")
	if data, err := os.ReadFile(gitignorePath); err == nil {
		f.ignore = gitignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
	}

	return f
}

// Eligible reports whether the file at path should be indexed. It rejects
// paths outside the root, hidden files and directories, binary or generated
// files, files over the size cap, and files matched by .gitignore.
func (f *PathFilter) Eligible(path string) bool {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}

	name := strings.ToLower(filepath.Base(path))
	for _, ext := range f.extensions {
		if strings.HasSuffix(name, ext) {
			return false
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Size() > f.maxSize {
		return false
	}

	if f.ignore != nil && f.ignore.MatchesPath(filepath.ToSlash(rel)) {
		return false
	}

	return true
}

// Rel returns the root-relative path for an absolute path, or ok=false when
// the path lies outside the root.
func (f *PathFilter) Rel(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
