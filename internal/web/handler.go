package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/gpal/internal/index"
	"github.com/abdul-hamid-achik/gpal/internal/version"
)

// Searcher is the slice of the index the handlers need.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]index.Match, error)
	IndexFile(ctx context.Context, path string) error
	Rebuild(ctx context.Context) (int, error)
	Status() index.Status
}

// Handler serves the JSON API over a single project index.
type Handler struct {
	idx Searcher
}

// NewHandler creates a handler for the given index.
func NewHandler(idx Searcher) *Handler {
	return &Handler{idx: idx}
}

// APISearch handles JSON API search requests.
func (h *Handler) APISearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.jsonError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	matches, err := h.idx.Search(ctx, query, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	})
}

// APIIndexFile re-indexes a single file named by the "path" query parameter.
func (h *Handler) APIIndexFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.jsonError(w, "query parameter 'path' is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := h.idx.IndexFile(ctx, path); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]string{
		"status": "indexed",
		"path":   path,
	})
}

// APIRebuild rebuilds the whole index.
func (h *Handler) APIRebuild(w http.ResponseWriter, r *http.Request) {
	count, err := h.idx.Rebuild(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"status": "rebuilt",
		"files":  count,
	})
}

// APIStatus returns index status as JSON.
func (h *Handler) APIStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.idx.Status())
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
	})
}

// jsonResponse writes a JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// jsonError writes a JSON error response.
func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
