// Package web provides the HTTP JSON API for the semantic code index.
package web

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ServerConfig holds configuration for the web server.
type ServerConfig struct {
	Host string
	Port int
}

// Server is the HTTP server exposing the index API.
type Server struct {
	config  ServerConfig
	router  *chi.Mux
	handler *Handler
}

// NewServer creates a new web server around the given index.
func NewServer(cfg ServerConfig, idx Searcher) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		handler: NewHandler(idx),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the server.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handler.APISearch)
		r.Get("/status", s.handler.APIStatus)
		r.Get("/health", s.handler.Health)
		r.Post("/index", s.handler.APIIndexFile)
		r.Post("/rebuild", s.handler.APIRebuild)
	})
}

// Router returns the chi router for external use.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Printf("Starting API server on http://%s", addr)
	return http.ListenAndServe(addr, s.router)
}
