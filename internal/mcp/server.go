// Package mcp exposes the semantic code index over the Model Context
// Protocol using the official SDK.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/abdul-hamid-achik/gpal/internal/index"
	"github.com/abdul-hamid-achik/gpal/internal/session"
	"github.com/abdul-hamid-achik/gpal/internal/version"
)

// Input types for tools

// SearchInput is the input for gpal_search.
type SearchInput struct {
	Root  string `json:"root" jsonschema:"REQUIRED - Absolute path to the project root to search."`
	Query string `json:"query" jsonschema:"Natural language description of the code to find."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return. Defaults to 5."`
}

// IndexFileInput is the input for gpal_index_file.
type IndexFileInput struct {
	Root string `json:"root" jsonschema:"REQUIRED - Absolute path to the project root."`
	Path string `json:"path" jsonschema:"REQUIRED - Path of the file to reindex, absolute or relative to the root."`
}

// RebuildInput is the input for gpal_rebuild.
type RebuildInput struct {
	Root string `json:"root" jsonschema:"REQUIRED - Absolute path to the project root to rebuild."`
}

// StatusInput is the input for gpal_status.
type StatusInput struct {
	Root string `json:"root" jsonschema:"REQUIRED - Absolute path to the project root."`
}

// Server wraps the MCP SDK server around a session registry, keeping one open
// index per project root across tool calls.
type Server struct {
	server   *sdkmcp.Server
	registry *session.Registry
}

// NewServer creates the MCP server with all tools registered.
func NewServer(registry *session.Registry) *Server {
	s := &Server{registry: registry}

	s.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "gpal",
		Version: version.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: "gpal provides semantic code search over a persistent per-project index. " +
			"Pass the project root with every call; the first call for a root opens its index. " +
			"Use gpal_rebuild to (re)index a project, gpal_search to find code by meaning, " +
			"gpal_index_file to refresh a single changed file, and gpal_status for index statistics.",
	})

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "gpal_search",
		Description: "Search the indexed codebase by meaning rather than exact text. Returns ranked matches with file, line range, score, and snippet.",
	}, s.handleSearch)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "gpal_index_file",
		Description: "Index or re-index a single file. Deleted or ineligible files are removed from the index.",
	}, s.handleIndexFile)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "gpal_rebuild",
		Description: "Rebuild the whole index for a project from scratch. Returns the number of files indexed.",
	}, s.handleRebuild)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "gpal_status",
		Description: "Get statistics about a project index: file and chunk counts, embedding model, and storage path.",
	}, s.handleStatus)

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

func errorResult(format string, args ...any) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}

// openIndex resolves the root and returns its index, opening it on first use.
func (s *Server) openIndex(root string) (*index.Index, *sdkmcp.CallToolResult) {
	if root == "" {
		return nil, errorResult("Error: 'root' parameter is required.\n\nPass the absolute path of the project directory.")
	}

	if strings.HasPrefix(root, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, root[2:])
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errorResult("Failed to resolve path: %v", err)
	}

	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, errorResult("Directory does not exist: %s", abs)
	}

	idx, err := s.registry.Get(abs, abs)
	if err != nil {
		return nil, errorResult("Failed to open index: %v", err)
	}
	return idx, nil
}

// handleSearch handles the gpal_search tool.
func (s *Server) handleSearch(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchInput) (*sdkmcp.CallToolResult, any, error) {
	idx, errResult := s.openIndex(input.Root)
	if errResult != nil {
		return errResult, nil, nil
	}

	matches, err := idx.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return errorResult("Search error: %v", err), nil, nil
	}

	if len(matches) == 0 {
		return textResult("No results found."), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results:\n\n", len(matches)))
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("### Result %d (score: %.3f)\n", i+1, m.Score))
		sb.WriteString(fmt.Sprintf("**File:** %s (lines %s)\n\n", m.File, m.Lines))
		sb.WriteString("```\n")
		sb.WriteString(m.Snippet)
		sb.WriteString("\n```\n\n")
	}

	return textResult(sb.String()), nil, nil
}

// handleIndexFile handles the gpal_index_file tool.
func (s *Server) handleIndexFile(ctx context.Context, req *sdkmcp.CallToolRequest, input IndexFileInput) (*sdkmcp.CallToolResult, any, error) {
	idx, errResult := s.openIndex(input.Root)
	if errResult != nil {
		return errResult, nil, nil
	}

	if input.Path == "" {
		return errorResult("Error: 'path' parameter is required."), nil, nil
	}

	if err := idx.IndexFile(ctx, input.Path); err != nil {
		return errorResult("Indexing error: %v", err), nil, nil
	}

	return textResult(fmt.Sprintf("Indexed %s", input.Path)), nil, nil
}

// handleRebuild handles the gpal_rebuild tool.
func (s *Server) handleRebuild(ctx context.Context, req *sdkmcp.CallToolRequest, input RebuildInput) (*sdkmcp.CallToolResult, any, error) {
	idx, errResult := s.openIndex(input.Root)
	if errResult != nil {
		return errResult, nil, nil
	}

	count, err := idx.Rebuild(ctx)
	if err != nil {
		return errorResult("Rebuild error: %v", err), nil, nil
	}

	status := idx.Status()
	return textResult(fmt.Sprintf("Rebuild complete: %d files indexed, %d chunks stored.", count, status.Chunks)), nil, nil
}

// handleStatus handles the gpal_status tool.
func (s *Server) handleStatus(ctx context.Context, req *sdkmcp.CallToolRequest, input StatusInput) (*sdkmcp.CallToolResult, any, error) {
	idx, errResult := s.openIndex(input.Root)
	if errResult != nil {
		return errResult, nil, nil
	}

	st := idx.Status()

	var sb strings.Builder
	sb.WriteString("Index Statistics:\n\n")
	sb.WriteString(fmt.Sprintf("Root: %s\n", st.Root))
	sb.WriteString(fmt.Sprintf("Storage: %s\n", st.Path))
	sb.WriteString(fmt.Sprintf("Files: %d\n", st.Files))
	sb.WriteString(fmt.Sprintf("Chunks: %d\n", st.Chunks))
	sb.WriteString(fmt.Sprintf("Model: %s (%d dimensions)\n", st.Model, st.Dimensions))

	return textResult(sb.String()), nil, nil
}
