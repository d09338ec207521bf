// Package server exposes LabelDrop over HTTP: batch upload, label browsing,
// regeneration, exports and signed download links.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/export"
	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
	"github.com/dharsanguruparan/LabelDrop/internal/signing"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Presigner is implemented by blob stores that can hand out their own
// time-limited download URLs.
type Presigner interface {
	Presign(ctx context.Context, path string, ttl time.Duration, filename string) (string, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Repo       storage.Repository
	Blobs      storage.Blobs
	Dispatcher Dispatcher
	Exporter   *export.Exporter
	Signer     *signing.Signer
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg        *config.Config
	repo       storage.Repository
	blobs      storage.Blobs
	dispatcher Dispatcher
	exporter   *export.Exporter
	signer     *signing.Signer
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	results map[string]*ingest.Result

	once    sync.Once
	handler http.Handler
}

// New creates a configured server.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		repo:       deps.Repo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		exporter:   deps.Exporter,
		signer:     deps.Signer,
		gatherer:   deps.Gatherer,
		logger:     logger.Named("http"),
		now:        time.Now,
		results:    make(map[string]*ingest.Result),
	}
}

// Handler returns the routed handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		s.handler = LoggingMiddleware(s.logger, s.routes())
	})
	return s.handler
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return ListenAndServe(ctx, s.cfg.Address, s.Handler(), s.logger)
}

// ListenAndServe runs h on addr and shuts it down gracefully when ctx ends.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /batches", s.handleUpload)
	mux.HandleFunc("GET /batches", s.handleListBatches)
	mux.HandleFunc("GET /batches/{id}", s.handleBatch)
	mux.HandleFunc("DELETE /batches/{id}", s.handleDeleteBatch)
	mux.HandleFunc("POST /batches/{id}/regenerate", s.handleRegenerate)
	mux.HandleFunc("GET /batches/{id}/labels/{label}/image", s.handleLabelImage)
	mux.HandleFunc("GET /batches/{id}/export/{kind}", s.handleExport)
	mux.HandleFunc("POST /batches/{id}/export/{kind}/signed-url", s.handleSignedURL)
	mux.HandleFunc("GET /download", s.handleDownload)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) rememberResult(res *ingest.Result) {
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.BatchID] = res
}

func (s *Server) lastResult(batchID string) *ingest.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[batchID]
}

func (s *Server) forgetResult(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, batchID)
}
