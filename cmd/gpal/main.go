package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/gpal/internal/config"
	"github.com/abdul-hamid-achik/gpal/internal/embed"
	"github.com/abdul-hamid-achik/gpal/internal/index"
	"github.com/abdul-hamid-achik/gpal/internal/mcp"
	"github.com/abdul-hamid-achik/gpal/internal/session"
	"github.com/abdul-hamid-achik/gpal/internal/version"
	"github.com/abdul-hamid-achik/gpal/internal/web"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "gpal",
	Short:   "Semantic code search over a persistent per-project index",
	Version: version.Full(),
	Long: `gpal indexes a codebase into a local vector store and searches it by
meaning rather than exact text. Each project root gets its own persistent
index under the data home, keyed by a hash of the canonical path.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gpal %s\n", version.Version)
		fmt.Printf("  commit:  %s\n", version.Commit)
		fmt.Printf("  built:   %s\n", version.Date)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index for the current project",
	Long: `Clear the project index and re-index every eligible file under the
project root. Hidden files, binary files, oversized files, and files matched
by .gitignore are skipped.`,
	RunE: runRebuild,
}

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Index or re-index a single file",
	Long: `Index a single file, replacing any chunks it already has in the index.
A file that was deleted or is no longer eligible is removed from the index.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexFile,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the codebase by meaning",
	Long: `Search the indexed codebase using a natural language query. Returns the
most relevant chunks ranked by similarity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP or web server",
	Long: `Start the Model Context Protocol (MCP) server on stdio, or the HTTP
JSON API, for integration with AI assistants and other tools.`,
	RunE: runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status and statistics",
	RunE:  runStatus,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project and keep the index current",
	Long: `Watch the project root for file changes and re-index changed files
automatically. Runs until interrupted.`,
	RunE: runWatch,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage registered project indexes",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects with an index",
	RunE:  runProjectsList,
}

func init() {
	rootCmd.SetVersionTemplate("gpal version {{.Version}}\n")

	rootCmd.PersistentFlags().StringP("root", "r", ".", "project root directory")

	searchCmd.Flags().IntP("limit", "n", index.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().StringP("format", "f", "default", "output format (default, json)")

	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().Bool("mcp", false, "start MCP server (stdio)")
	serveCmd.Flags().Bool("web", false, "start HTTP API server")

	statusCmd.Flags().StringP("format", "f", "default", "output format (default, json)")

	projectsCmd.AddCommand(projectsListCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(projectsCmd)
}

// createProvider builds the configured embedding provider, wrapped in an
// embedding cache.
func createProvider(cfg *config.Config) (embed.Provider, error) {
	var provider embed.Provider

	switch cfg.Embedding.Provider {
	case "", "gemini":
		provider = embed.NewGeminiProvider(embed.GeminiConfig{
			APIKey:     cfg.Embedding.GeminiAPIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			BaseURL:    cfg.Embedding.GeminiBaseURL,
		})
	case "ollama":
		provider = embed.NewOllamaProvider(embed.OllamaConfig{
			URL:        cfg.Embedding.OllamaURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	return embed.NewCachedProvider(provider, 0, 0), nil
}

// openIndex loads config for the root flag and opens its index.
func openIndex(cmd *cobra.Command) (*index.Index, *config.Config, error) {
	root, _ := cmd.Flags().GetString("root")

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	provider, err := createProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	idx, err := index.Open(root, cfg, provider)
	if err != nil {
		return nil, nil, err
	}
	return idx, cfg, nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	idx, _, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer idx.Close()

	fmt.Printf("Rebuilding index for %s ...\n", idx.Root())

	count, err := idx.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	st := idx.Status()
	fmt.Printf("Indexed %d files (%d chunks).\n", count, st.Chunks)
	return nil
}

func runIndexFile(cmd *cobra.Command, args []string) error {
	idx, _, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.IndexFile(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("index %s: %w", args[0], err)
	}

	fmt.Printf("Indexed %s\n", args[0])
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	idx, _, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer idx.Close()

	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	matches, err := idx.Search(cmd.Context(), query, limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if format == "json" {
		out, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%d. %s:%s (score: %.3f)\n", i+1, m.File, m.Lines, m.Score)
		for _, line := range strings.Split(m.Snippet, "\n") {
			fmt.Printf("   %s\n", line)
		}
		fmt.Println()
	}

	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	mcpMode, _ := cmd.Flags().GetBool("mcp")
	webMode, _ := cmd.Flags().GetBool("web")

	if !mcpMode && !webMode {
		webMode = true
	}

	root, _ := cmd.Flags().GetString("root")
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := createProvider(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if mcpMode {
		registry := session.NewRegistry(cfg, provider)
		defer registry.Shutdown()

		return mcp.NewServer(registry).Run(ctx)
	}

	idx, err := index.Open(root, cfg, provider)
	if err != nil {
		return err
	}
	defer idx.Close()

	server := web.NewServer(web.ServerConfig{Host: host, Port: port}, idx)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	idx, cfg, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer idx.Close()

	st := idx.Status()

	if format == "json" {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("gpal status\n")
	fmt.Printf("  Project root: %s\n", st.Root)
	fmt.Printf("  Storage: %s\n", st.Path)
	fmt.Printf("  Embedding model: %s (%s, %d dimensions)\n",
		st.Model, cfg.Embedding.Provider, st.Dimensions)
	fmt.Printf("\nIndex statistics:\n")
	fmt.Printf("  Files:  %d\n", st.Files)
	fmt.Printf("  Chunks: %d\n", st.Chunks)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	idx, _, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer idx.Close()

	watcher, err := index.NewWatcher(idx)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	fmt.Printf("Watching %s for changes. Press Ctrl-C to stop.\n", idx.Root())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	return watcher.Stop()
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	dataHome := config.DataHome()

	ids, entries, err := config.ListProjects(dataHome)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		fmt.Println("No projects registered.")
		return nil
	}

	for _, id := range ids {
		entry := entries[id]
		fmt.Printf("%s  %s", id, entry.Root)
		if !entry.LastIndexed.IsZero() {
			fmt.Printf("  (last indexed %s)", entry.LastIndexed.Format("2006-01-02 15:04"))
		}
		fmt.Println()
	}
	return nil
}
