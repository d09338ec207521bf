// Command server runs LabelDrop as a single process: batches are rendered
// in-request and state lives in memory with blobs under the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/app"
	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/export"
	"github.com/dharsanguruparan/LabelDrop/internal/server"
	"github.com/dharsanguruparan/LabelDrop/internal/signing"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := app.Logger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	repo := storage.NewMemoryStore()
	blobs, err := storage.NewLocalBlobs(cfg.DataDir, log)
	if err != nil {
		return fmt.Errorf("init blobs: %w", err)
	}
	reg, m := app.Registry()
	svc, err := app.Service(cfg, repo, blobs, m, log)
	if err != nil {
		return err
	}

	srv := server.New(cfg, server.Deps{
		Repo:       repo,
		Blobs:      blobs,
		Dispatcher: server.Inline{Service: svc},
		Exporter:   export.New(repo, blobs, "", m, log),
		Signer:     signing.NewSigner(cfg.SigningSecret),
		Gatherer:   reg,
		Logger:     log,
	})
	log.Info("LabelDrop listening", zap.String("addr", cfg.Address), zap.String("data", cfg.DataDir))
	return srv.Serve(ctx)
}
