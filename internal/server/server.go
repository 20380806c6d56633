package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jacochat/jaco-rag/internal/index"
	"github.com/jacochat/jaco-rag/internal/ingest"
	"github.com/jacochat/jaco-rag/internal/retriever"
	"github.com/jacochat/jaco-rag/internal/splitter"
)

// Retriever is the query-time surface the server needs.
type Retriever interface {
	Matches(ctx context.Context, query string, opts retriever.Options) ([]index.Scored, error)
	ContextBlock(ctx context.Context, query string, opts retriever.Options) (string, error)
}

// Ingestor runs a full crawl-and-index pass.
type Ingestor interface {
	Run(ctx context.Context, seedURL string, opts ingest.Options) (*ingest.Result, error)
}

// Config holds server configuration.
type Config struct {
	Port      int
	AllowAll  bool // allow all CORS origins (dev mode)
	Namespace string
	IndexSpec index.Spec
}

// Server exposes the retrieval pipeline over HTTP.
type Server struct {
	cfg        Config
	retriever  Retriever
	ingestor   Ingestor
	index      index.Index
	router     chi.Router
	httpServer *http.Server
}

func New(cfg Config, ret Retriever, ing Ingestor, idx index.Index) (*Server, error) {
	if ret == nil {
		return nil, fmt.Errorf("server: retriever is required")
	}
	if ing == nil {
		return nil, fmt.Errorf("server: ingestor is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("server: index is required")
	}

	s := &Server{
		cfg:       cfg,
		retriever: ret,
		ingestor:  ing,
		index:     idx,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute)) // crawls take a while

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/context", s.handleContext)
	r.Post("/api/crawl", s.handleCrawl)
	r.Post("/api/clearIndex", s.handleClearIndex)

	return r
}

// Router returns the configured router, mostly for tests.
func (s *Server) Router() http.Handler { return s.router }

type contextRequest struct {
	Query     string  `json:"query"`
	Namespace string  `json:"namespace,omitempty"`
	TopK      int     `json:"topK,omitempty"`
	MinScore  float32 `json:"minScore,omitempty"`
}

// handleContext returns the scored matches for a query. Callers that
// want an assembled text block do their own joining; this endpoint
// keeps scores and metadata visible for debugging retrieval quality.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = s.cfg.Namespace
	}

	matches, err := s.retriever.Matches(r.Context(), req.Query, retriever.Options{
		Namespace: namespace,
		TopK:      req.TopK,
		MinScore:  req.MinScore,
	})
	if err != nil {
		slog.Error("context retrieval failed", "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve context")
		return
	}

	if matches == nil {
		matches = []index.Scored{}
	}
	writeJSON(w, http.StatusOK, matches)
}

type crawlRequest struct {
	SeedURL         string `json:"seedUrl"`
	MaxPages        int    `json:"maxPages,omitempty"`
	SplittingMethod string `json:"splittingMethod,omitempty"`
	ChunkSize       int    `json:"chunkSize,omitempty"`
	ChunkOverlap    int    `json:"chunkOverlap,omitempty"`
	Namespace       string `json:"namespace,omitempty"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SeedURL == "" {
		writeError(w, http.StatusBadRequest, "seedUrl is required")
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = s.cfg.Namespace
	}

	result, err := s.ingestor.Run(r.Context(), req.SeedURL, ingest.Options{
		Namespace: namespace,
		IndexSpec: s.cfg.IndexSpec,
		MaxPages:  req.MaxPages,
		Splitter: splitter.Options{
			Method:       splitter.Method(req.SplittingMethod),
			ChunkSize:    req.ChunkSize,
			ChunkOverlap: req.ChunkOverlap,
		},
	})
	if err != nil {
		slog.Error("ingestion failed", "seed_url", req.SeedURL, "error", err)
		writeError(w, http.StatusInternalServerError, "crawling failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClearIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string `json:"namespace,omitempty"`
	}
	// An empty body means "clear the default namespace".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = s.cfg.Namespace
	}

	if err := s.index.ClearNamespace(r.Context(), namespace); err != nil {
		slog.Error("clear index failed", "namespace", namespace, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to clear index",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "index cleared",
	})
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      6 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	slog.Info("server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
