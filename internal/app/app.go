// Package app assembles the collaborators shared by the LabelDrop binaries
// from a loaded configuration.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/barcode"
	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/fonts"
	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
	"github.com/dharsanguruparan/LabelDrop/internal/logger"
	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/render"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Logger builds the process logger from cfg.
func Logger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
}

// Registry returns a registry with the Go and process collectors plus the
// LabelDrop metrics.
func Registry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

// Renderer loads the label fonts and ink colour.
func Renderer(cfg *config.Config, log *zap.Logger) (*render.Renderer, error) {
	ink, err := render.ParseColor(cfg.LabelColor)
	if err != nil {
		return nil, fmt.Errorf("label colour: %w", err)
	}
	set := fonts.Load(cfg.FontDir, render.DefaultPixelSize(), log)
	return render.New(set, ink, log), nil
}

// Service wires an ingestion service over repo and blobs.
func Service(cfg *config.Config, repo storage.Repository, blobs storage.Blobs,
	m *metrics.Metrics, log *zap.Logger) (*ingest.Service, error) {
	r, err := Renderer(cfg, log)
	if err != nil {
		return nil, err
	}
	gen := barcode.NewGenerator(nil, log)
	return ingest.NewService(repo, blobs, r, gen, ingest.OptionsFromConfig(cfg), m, log), nil
}
