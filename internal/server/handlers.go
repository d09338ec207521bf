package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/barcode"
	"github.com/dharsanguruparan/LabelDrop/internal/export"
	"github.com/dharsanguruparan/LabelDrop/internal/ingest"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/signing"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

const multipartMemory = 8 << 20

type labelView struct {
	model.LabelRecord
	ImageURL string `json:"imageUrl,omitempty"`
}

type batchView struct {
	Batch   *model.Batch   `json:"batch"`
	Labels  []labelView    `json:"labels"`
	LastRun *ingest.Result `json:"lastRun,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload+1024)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload exceeds limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	datasets := r.MultipartForm.File["dataset"]
	if len(datasets) == 0 {
		http.Error(w, "missing dataset part", http.StatusBadRequest)
		return
	}
	data, err := readFile(datasets[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := datasets[0].Filename
	if name == "" {
		name = "dataset.csv"
	}
	batch := &model.Batch{ID: uuid.NewString(), DatasetName: name}
	batch.DatasetPath = storage.DatasetPath(batch.ID, name)
	if err := s.blobs.Put(ctx, batch.DatasetPath, data); err != nil {
		s.logger.Error("store dataset", zap.Error(err))
		http.Error(w, "failed to store dataset", http.StatusInternalServerError)
		return
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		s.logger.Error("create batch", zap.Error(err))
		http.Error(w, "failed to store metadata", http.StatusInternalServerError)
		return
	}
	if err := s.storeArtifacts(r, batch.ID, r.MultipartForm.File["barcodes"]); err != nil {
		s.logger.Error("store barcodes", zap.String("batch", batch.ID), zap.Error(err))
		http.Error(w, "failed to store barcodes", http.StatusInternalServerError)
		return
	}

	res, err := s.dispatcher.Dispatch(ctx, batch.ID)
	s.respondDispatch(w, r, batch.ID, res, err)
}

// storeArtifacts saves the supplied barcode images. Files whose name does not
// carry an identifier code are ignored. A later file for a code already seen
// replaces the earlier one.
func (s *Server) storeArtifacts(r *http.Request, batchID string, files []*multipart.FileHeader) error {
	ctx := r.Context()
	for _, fh := range files {
		code, ok := barcode.CodeFromFilename(fh.Filename)
		if !ok {
			s.logger.Warn("barcode file ignored", zap.String("batch", batchID), zap.String("filename", fh.Filename))
			continue
		}
		data, err := readFile(fh)
		if err != nil {
			s.logger.Warn("barcode file unreadable", zap.String("filename", fh.Filename), zap.Error(err))
			continue
		}
		artifact := &model.BarcodeArtifact{
			ID:       uuid.NewString(),
			BatchID:  batchID,
			Filename: fh.Filename,
			Code:     code,
			Path:     storage.ArtifactPath(batchID, fh.Filename),
		}
		if err := s.blobs.Put(ctx, artifact.Path, data); err != nil {
			return err
		}
		replaced, err := s.repo.AddArtifact(ctx, artifact)
		if err != nil {
			return err
		}
		if replaced != nil && replaced.Path != artifact.Path {
			if err := s.blobs.Delete(ctx, replaced.Path); err != nil {
				s.logger.Warn("remove replaced barcode", zap.String("path", replaced.Path), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *Server) respondDispatch(w http.ResponseWriter, r *http.Request, batchID string, res *ingest.Result, err error) {
	var ingestErr *ingest.IngestionError
	switch {
	case errors.As(err, &ingestErr):
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"id":    batchID,
			"error": ingestErr.Error(),
		})
	case err != nil:
		s.logger.Error("dispatch batch", zap.String("batch", batchID), zap.Error(err))
		http.Error(w, "failed to process batch", http.StatusInternalServerError)
	case res == nil:
		s.respondJSON(w, http.StatusAccepted, map[string]string{"id": batchID, "status": "queued"})
	default:
		s.rememberResult(res)
		http.Redirect(w, r, "/batches/"+batchID, http.StatusSeeOther)
	}
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.repo.ListBatches(r.Context())
	if err != nil {
		s.logger.Error("list batches", zap.Error(err))
		http.Error(w, "failed to list batches", http.StatusInternalServerError)
		return
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	s.respondJSON(w, http.StatusOK, batches)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	batch, err := s.repo.GetBatch(r.Context(), id)
	if err != nil {
		s.notFoundOr500(w, "batch", err)
		return
	}
	labels, err := s.repo.ListLabels(r.Context(), id)
	if err != nil {
		s.notFoundOr500(w, "labels", err)
		return
	}
	view := batchView{Batch: batch, Labels: make([]labelView, 0, len(labels)), LastRun: s.lastResult(id)}
	for _, l := range labels {
		lv := labelView{LabelRecord: l}
		if l.HasImage() {
			lv.ImageURL = fmt.Sprintf("/batches/%s/labels/%s/image", id, l.ID)
		}
		view.Labels = append(view.Labels, lv)
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	paths, err := s.repo.DeleteBatch(ctx, id)
	if err != nil {
		s.notFoundOr500(w, "batch", err)
		return
	}
	paths = append(paths, storage.ExportPath(id, string(export.KindArchive)), storage.ExportPath(id, string(export.KindSheet)))
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.Warn("remove blob of deleted batch", zap.String("path", p), zap.Error(err))
		}
	}
	s.forgetResult(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.repo.GetBatch(r.Context(), id); err != nil {
		s.notFoundOr500(w, "batch", err)
		return
	}
	res, err := s.dispatcher.Dispatch(r.Context(), id)
	s.respondDispatch(w, r, id, res, err)
}

func (s *Server) handleLabelImage(w http.ResponseWriter, r *http.Request) {
	label, err := s.repo.GetLabel(r.Context(), r.PathValue("id"), r.PathValue("label"))
	if err != nil {
		s.notFoundOr500(w, "label", err)
		return
	}
	if !label.HasImage() {
		http.Error(w, "label has no image", http.StatusNotFound)
		return
	}
	data, err := s.blobs.Get(r.Context(), label.ImagePath)
	if err != nil {
		s.notFoundOr500(w, "label image", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, "", label.CreatedAt, bytes.NewReader(data))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, r.PathValue("id"), r.PathValue("kind"))
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	kind, err := export.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, err := s.repo.GetBatch(ctx, id); err != nil {
		s.notFoundOr500(w, "batch", err)
		return
	}
	expires := s.now().Add(s.cfg.SignedURLTTL)

	var link string
	if presigner, ok := s.blobs.(Presigner); ok {
		art, err := s.exporter.Export(ctx, kind, id)
		if err != nil {
			s.exportFailed(w, err)
			return
		}
		link, err = presigner.Presign(ctx, art.Path, s.cfg.SignedURLTTL, kind.Filename(id))
		if err != nil {
			s.logger.Error("presign export", zap.Error(err))
			http.Error(w, "failed to generate url", http.StatusInternalServerError)
			return
		}
	} else {
		link = s.signer.URL("/download", id+"/"+string(kind), expires)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"url":     link,
		"expires": expires.Unix(),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	resource, err := s.signer.Verify(r.URL.Query(), s.now())
	switch {
	case errors.Is(err, signing.ErrExpired):
		http.Error(w, "url expired", http.StatusUnauthorized)
		return
	case err != nil:
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	id, kind, ok := strings.Cut(resource, "/")
	if !ok {
		http.Error(w, "invalid resource", http.StatusBadRequest)
		return
	}
	s.serveExport(w, r, id, kind)
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, id, kindName string) {
	kind, err := export.ParseKind(kindName)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	art, err := s.exporter.Export(r.Context(), kind, id)
	if err != nil {
		s.exportFailed(w, err)
		return
	}
	data, err := s.blobs.Get(r.Context(), art.Path)
	if err != nil {
		s.notFoundOr500(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.Filename(id)))
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

func (s *Server) exportFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	http.Error(w, "export failed", http.StatusInternalServerError)
}

func (s *Server) notFoundOr500(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	s.logger.Error("load "+what, zap.Error(err))
	http.Error(w, "failed to load "+what, http.StatusInternalServerError)
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", fh.Filename)
	}
	return data, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		s.logger.Warn("encode json failed", zap.Error(err))
	}
}
