// Package api is the queue-backed HTTP front end: uploads are stored and a
// render task is enqueued for the worker.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/export"
	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/queue"
	"github.com/dharsanguruparan/LabelDrop/internal/server"
	"github.com/dharsanguruparan/LabelDrop/internal/signing"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Server exposes the LabelDrop routes with renders handed to the queue.
type Server struct {
	cfg    *config.Config
	inner  *server.Server
	logger *zap.Logger
}

// New constructs a Server. Exports are still produced in-process on demand.
func New(cfg *config.Config, repo storage.Repository, blobs storage.Blobs, client queue.Enqueuer,
	reg *prometheus.Registry, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	var gatherer prometheus.Gatherer
	if reg != nil {
		gatherer = reg
	}
	inner := server.New(cfg, server.Deps{
		Repo:       repo,
		Blobs:      blobs,
		Dispatcher: queue.Dispatcher{Client: client},
		Exporter:   export.New(repo, blobs, "", m, logger),
		Signer:     signing.NewSigner(cfg.SigningSecret),
		Gatherer:   gatherer,
		Logger:     logger,
	})
	return &Server{cfg: cfg, inner: inner, logger: logger}
}

// Handler returns the routes wrapped for cross-origin browser clients.
func (s *Server) Handler() http.Handler {
	return server.CORSMiddleware(s.inner.Handler())
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return server.ListenAndServe(ctx, s.cfg.Address, s.Handler(), s.logger)
}
