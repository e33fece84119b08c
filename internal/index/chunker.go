package index

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	// chunkSize is the number of lines per chunk.
	chunkSize = 50
	// chunkOverlap is the number of lines shared between adjacent chunks.
	chunkOverlap = 10
)

// Chunk is one overlapping line window of a file, the unit that gets embedded.
type Chunk struct {
	ID        string
	Text      string
	File      string
	StartLine int
	EndLine   int
}

// Chunker splits files into fixed-size overlapping line windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the default window geometry.
func NewChunker() *Chunker {
	return &Chunker{
		size:    chunkSize,
		overlap: chunkOverlap,
	}
}

// ChunkFile reads the file at path and splits it into chunks tagged with the
// given root-relative path. Unreadable, non-UTF-8, and empty files yield no
// chunks.
func (c *Chunker) ChunkFile(path, relPath string) []Chunk {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if !utf8.Valid(data) {
		return nil
	}

	lines := splitLines(string(data))
	return c.chunkLines(lines, relPath)
}

// chunkLines windows lines into chunks. Line numbers are 1-based and
// inclusive; each chunk after the first starts size-overlap lines past its
// predecessor, so adjacent chunks share overlap lines.
func (c *Chunker) chunkLines(lines []string, relPath string) []Chunk {
	if len(lines) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []Chunk

	for i := 0; i < len(lines); i += step {
		end := i + c.size
		if end > len(lines) {
			end = len(lines)
		}

		startLine := i + 1
		endLine := end

		chunks = append(chunks, Chunk{
			ID:        fmt.Sprintf("%s:%d-%d", relPath, startLine, endLine),
			Text:      strings.Join(lines[i:end], "\n"),
			File:      relPath,
			StartLine: startLine,
			EndLine:   endLine,
		})

		// Once a chunk reaches the last line, a further window would add
		// nothing but overlap.
		if end == len(lines) {
			break
		}
	}

	return chunks
}

// splitLines splits content on \n, \r\n, and lone \r, without line
// terminators. A trailing terminator does not produce an empty final line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}

	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\n':
			lines = append(lines, content[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, content[start:i])
			if i+1 < len(content) && content[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
