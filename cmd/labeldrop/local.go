package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/app"
	"github.com/dharsanguruparan/LabelDrop/internal/barcode"
	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/export"
	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	pdfutil "github.com/dharsanguruparan/LabelDrop/internal/pdf"
	"github.com/dharsanguruparan/LabelDrop/internal/processing"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// localFlags are the options shared by the offline commands.
type localFlags struct {
	barcodes    string
	barcodeMode string
	encodings   []string
	verbose     bool
}

func (f *localFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.barcodes, "barcodes", "", "Directory of ean_<code>.png barcode artwork")
	cmd.Flags().StringVar(&f.barcodeMode, "barcode-mode", "", "Barcode source: auto, generate or lookup")
	cmd.Flags().StringSliceVar(&f.encodings, "encoding", nil, "Dataset encodings to try, in order")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log every processing step")
}

// workspace is an in-memory LabelDrop instance whose blobs live in a
// scratch directory for the duration of one command.
type workspace struct {
	cfg   *config.Config
	repo  *storage.MemoryStore
	blobs *storage.LocalBlobs
	svc   *ingest.Service
	log   *zap.Logger
	dir   string
}

func newWorkspace(f *localFlags) (*workspace, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.LogOutput = "stderr"
	cfg.LogFormat = "console"
	if !f.verbose {
		cfg.LogLevel = "warn"
	}
	switch mode := strings.ToLower(f.barcodeMode); mode {
	case "":
	case config.BarcodeAuto, config.BarcodeGenerate, config.BarcodeLookup:
		cfg.BarcodeMode = mode
	default:
		return nil, fmt.Errorf("unknown barcode mode %q", f.barcodeMode)
	}
	if len(f.encodings) > 0 {
		cfg.Encodings = f.encodings
	}
	log, err := app.Logger(cfg)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "labeldrop-*")
	if err != nil {
		return nil, err
	}
	blobs, err := storage.NewLocalBlobs(dir, log)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	repo := storage.NewMemoryStore()
	svc, err := app.Service(cfg, repo, blobs, nil, log)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return &workspace{cfg: cfg, repo: repo, blobs: blobs, svc: svc, log: log, dir: dir}, nil
}

func (w *workspace) Close() error {
	_ = w.log.Sync()
	return os.RemoveAll(w.dir)
}

// stage creates a batch from a dataset file plus any artwork in barcodesDir.
func (w *workspace) stage(ctx context.Context, csvPath, barcodesDir string) (*model.Batch, error) {
	data, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(csvPath)
	batch := &model.Batch{ID: uuid.NewString(), DatasetName: name}
	batch.DatasetPath = storage.DatasetPath(batch.ID, name)
	if err := w.blobs.Put(ctx, batch.DatasetPath, data); err != nil {
		return nil, err
	}
	if err := w.repo.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	if barcodesDir == "" {
		return batch, nil
	}

	entries, err := os.ReadDir(barcodesDir)
	if err != nil {
		return nil, fmt.Errorf("read barcodes: %w", err)
	}
	for _, e := range entries {
		code, ok := barcode.CodeFromFilename(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		art, err := os.ReadFile(filepath.Join(barcodesDir, e.Name()))
		if err != nil {
			return nil, err
		}
		a := &model.BarcodeArtifact{
			ID:       uuid.NewString(),
			BatchID:  batch.ID,
			Filename: e.Name(),
			Code:     code,
			Path:     storage.ArtifactPath(batch.ID, e.Name()),
		}
		if err := w.blobs.Put(ctx, a.Path, art); err != nil {
			return nil, err
		}
		if _, err := w.repo.AddArtifact(ctx, a); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func reportResult(cmd *cobra.Command, name string, res *ingest.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d rendered, %d failed (%s)\n", name, res.Rendered, res.Failed, res.Encoding)
	for _, f := range res.Failures() {
		fmt.Fprintf(out, "  line %d %s: %s\n", f.Line, f.ProductCode, f.Message)
	}
}

func newRenderCmd() *cobra.Command {
	var flags localFlags
	var csvFiles []string
	var outDir string
	var workers int
	cmd := &cobra.Command{
		Use:   "render --csv FILE [--csv FILE...] --out DIR",
		Short: "Render label PNGs for one or more datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(csvFiles) == 0 {
				return errors.New("at least one --csv is required")
			}
			ws, err := newWorkspace(&flags)
			if err != nil {
				return err
			}
			defer ws.Close()

			batches := make([]*model.Batch, 0, len(csvFiles))
			ids := make([]string, 0, len(csvFiles))
			for _, f := range csvFiles {
				b, err := ws.stage(ctx, f, flags.barcodes)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				batches = append(batches, b)
				ids = append(ids, b.ID)
			}

			var failed int
			for i, out := range processing.Run(ctx, ws.svc, workers, ids, ws.log) {
				if out.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", csvFiles[i], out.Err)
					continue
				}
				reportResult(cmd, csvFiles[i], out.Result)
				if err := ws.copyLabels(ctx, batches[i], outDir); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d datasets could not be read", failed, len(csvFiles))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&csvFiles, "csv", nil, "Dataset file (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "labels", "Output directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 2, "Datasets processed concurrently")
	return cmd
}

var codeReplacer = strings.NewReplacer("/", "-", "\\", "-")

// copyLabels writes a batch's images to outDir/<dataset>/NNN_<code>.png.
func (w *workspace) copyLabels(ctx context.Context, batch *model.Batch, outDir string) error {
	labels, err := w.repo.ListLabels(ctx, batch.ID)
	if err != nil {
		return err
	}
	dir := filepath.Join(outDir, strings.TrimSuffix(batch.DatasetName, filepath.Ext(batch.DatasetName)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, l := range labels {
		if !l.HasImage() {
			continue
		}
		data, err := w.blobs.Get(ctx, l.ImagePath)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%03d_%s.png", l.Position+1, codeReplacer.Replace(l.ProductCode))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newExportCmd() *cobra.Command {
	var flags localFlags
	var csvFile string
	var outFile string
	cmd := &cobra.Command{
		Use:   "export zip|pdf --csv FILE --out FILE",
		Short: "Render a dataset and package the labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := export.ParseKind(args[0])
			if err != nil {
				return err
			}
			if csvFile == "" {
				return errors.New("--csv is required")
			}
			ws, err := newWorkspace(&flags)
			if err != nil {
				return err
			}
			defer ws.Close()

			batch, err := ws.stage(ctx, csvFile, flags.barcodes)
			if err != nil {
				return err
			}
			res, err := ws.svc.Process(ctx, batch.ID)
			if err != nil {
				return err
			}
			reportResult(cmd, csvFile, res)

			artifact, err := export.New(ws.repo, ws.blobs, "", nil, ws.log).Export(ctx, kind, batch.ID)
			if err != nil {
				return err
			}
			data, err := ws.blobs.Get(ctx, artifact.Path)
			if err != nil {
				return err
			}
			if outFile == "" {
				outFile = strings.TrimSuffix(filepath.Base(csvFile), filepath.Ext(csvFile)) + "." + string(kind)
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return err
			}
			unit := "entries"
			if kind == export.KindSheet {
				unit = "pages"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d %s)\n", outFile, artifact.Items, unit)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&csvFile, "csv", "", "Dataset file")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output file (defaults to the dataset name)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "inspect FILE.pdf",
		Short: "Print the page count of a PDF sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pages, err := pdfutil.PageCountBytes(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages\n", args[0], pages)
			if !text {
				return nil
			}
			content, err := pdfutil.ExtractText(data)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "Also print extracted text")
	return cmd
}
