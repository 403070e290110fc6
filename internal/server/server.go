// Package server provides the HTTP dashboard and JSON API for EMMA.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/conceptindex"
	"github.com/hyperjump/emma/internal/config"
	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/format"
	"github.com/hyperjump/emma/internal/storage"
)

// Server is the HTTP server for the EMMA dashboard.
type Server struct {
	storage    storage.Storage
	controller *controller.Controller
	formatter  *format.Formatter
	concepts   *conceptindex.Index
	metrics    *Metrics
	config     *config.Config
	logger     *zap.Logger
	templates  *template.Template
	server     *http.Server

	mu           sync.Mutex
	dbChanged    bool
	dbChangedAt  time.Time
	dbChangedOps string
	startedAt    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithConceptIndex enables concept-name search and uses idx for the table filter.
func WithConceptIndex(idx *conceptindex.Index) Option {
	return func(s *Server) { s.concepts = idx }
}

// WithMetrics records request metrics and serves them at the configured path.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a server with the given dependencies.
func NewServer(store storage.Storage, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		storage:   store,
		formatter: format.NewFormatter(store),
		config:    cfg,
		logger:    logger,
		templates: tmpl,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	var ctrlOpts []controller.Option
	if s.concepts != nil {
		ctrlOpts = append(ctrlOpts, controller.WithConceptMatcher(s.concepts))
	}
	s.controller = controller.New(store, ctrlOpts...)
	return s, nil
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/", s.handleDashboard)
	r.Get("/export/terms.xlsx", s.handleExportTerms)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil && s.config.Metrics.Enabled {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/queries", s.handleQueries)
		r.Get("/queries/{id}", s.handleQuery)
		r.Get("/options", s.handleOptions)
		r.Get("/terms", s.handleTerms)
		r.Get("/terms/lookup", s.handleTermLookup)
		r.Get("/terms/find", s.handleTermFind)
		r.Get("/concepts/search", s.handleConceptSearch)
		r.Get("/concepts/{id}", s.handleConcept)
		r.Get("/concepts/{id}/pmids", s.handleConceptPMIDs)
		r.Get("/concepts/{id}/abstracts", s.handleConceptAbstracts)
		r.Get("/abstracts/{pmid}", s.handleAbstract)
		r.Get("/abstracts/{pmid}/locations", s.handleAbstractLocations)
		r.Get("/abstracts/{pmid}/annotated", s.handleAnnotatedAbstract)
		r.Get("/view", s.handleView)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
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

// DatabaseChanged records that the database file changed on disk. Cached rankings
// are kept, so the change is logged, counted and reported by /health.
func (s *Server) DatabaseChanged(path string, op fsnotify.Op) {
	s.mu.Lock()
	s.dbChanged = true
	s.dbChangedAt = time.Now()
	s.dbChangedOps = op.String()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DatabaseChangesTotal.Inc()
	}
	s.logger.Warn("database file changed; cached results may be stale until restart",
		zap.String("path", path), zap.String("op", op.String()))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
