// Package server provides the HTTP API for pagesplit.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/pagesplit/internal/config"
	"github.com/hyperjump/pagesplit/internal/models"
	"github.com/hyperjump/pagesplit/internal/splitter"
	"github.com/hyperjump/pagesplit/internal/storage"
	"go.uber.org/zap"
)

// Runner runs one split job. *splitter.Splitter implements it.
type Runner interface {
	Run(ctx context.Context, inputPath string, overrides ...splitter.RunOption) (*models.RunResult, error)
}

// WatchService manages inbox directories at runtime. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, scanExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the pagesplit API.
type Server struct {
	runner     Runner
	storage    storage.Storage // nil when run history is disabled
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithWatch enables the watch directory endpoints. When configPath is set, directory changes
// are saved back to that config file.
func WithWatch(ws WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = ws
		s.configPath = configPath
	}
}

// NewServer creates a server that runs splits with runner and reads history from store.
func NewServer(runner Runner, store storage.Storage, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		storage: store,
		config:  cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.Compress(5, "application/json"))

	r.Post("/api/v1/split", s.handleSplit)
	r.Get("/api/v1/runs", s.handleListRuns)
	r.Get("/api/v1/runs/{id}", s.handleGetRun)
	r.Get("/api/v1/runs/{id}/bundle", s.handleGetBundle)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
