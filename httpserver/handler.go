package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/pgp-seed-backup/api"
	"github.com/ruteri/pgp-seed-backup/backup"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// maxMemory is the part of a multipart form kept in memory; the rest spills to disk.
const maxMemory = 8 << 20

// Handler processes backup API requests.
type Handler struct {
	acceptor *backup.Acceptor
	store    interfaces.BlobStore
	cids     interfaces.ContentIDMap
	limiter  *UploadLimiter
	metrics  *Metrics
	maxBody  int64
	log      *slog.Logger
}

// NewHandler creates a backup API handler. Accepted bundles are written to
// store through acceptor, and content identifiers are read from cids.
// A nil limiter disables rate limiting.
func NewHandler(acceptor *backup.Acceptor, store interfaces.BlobStore, cids interfaces.ContentIDMap, limiter *UploadLimiter, log *slog.Logger) *Handler {
	return &Handler{
		acceptor: acceptor,
		store:    store,
		cids:     cids,
		limiter:  limiter,
		metrics:  NewMetrics(),
		maxBody:  api.MaxUploadSize,
		log:      log,
	}
}

// SetMaxUploadBytes overrides the upload body limit.
func (h *Handler) SetMaxUploadBytes(n int64) {
	if n > 0 {
		h.maxBody = n
	}
}

// Metrics returns the collectors updated by the handler.
func (h *Handler) Metrics() *Metrics {
	return h.metrics
}

// HandleUpload accepts a backup bundle.
//
// URL format: POST /api/backup
// Request body: multipart form with three "file" parts {fp}.pub, {fp}.sig, {fp}.backup
//
// Response: 201 with UploadResponse, 400 for a malformed request, 403 when
// the bundle is not allowed, 429 when the client or the fingerprint exceeds
// its upload rate.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.AllowClient(clientAddr(r), time.Now()) {
		h.metrics.upload(decisionRateLimited)
		writeError(w, http.StatusTooManyRequests, "upload rate exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.metrics.upload(decisionMalformed)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[api.FilePartName]
	if len(headers) == 0 {
		h.metrics.upload(decisionMalformed)
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	files, err := readFiles(headers)
	if err != nil {
		h.log.Warn("Failed to read uploaded files", "err", err)
		h.metrics.upload(decisionMalformed)
		writeError(w, http.StatusBadRequest, "could not read uploaded files")
		return
	}

	bundle, ok := backup.ResolveBundle(files)
	if !ok {
		h.metrics.upload(decisionRejected)
		writeError(w, http.StatusForbidden, backup.ErrNotAllowed.Error())
		return
	}

	if !h.limiter.AllowFingerprint(bundle.Fingerprint, time.Now()) {
		h.metrics.upload(decisionRateLimited)
		writeError(w, http.StatusTooManyRequests, "upload rate exceeded")
		return
	}

	cid, err := h.acceptor.Accept(r.Context(), files)
	switch {
	case err == nil:
	case errors.Is(err, backup.ErrNotAllowed):
		h.log.Info("Backup upload rejected", slog.String("fingerprint", bundle.Fingerprint))
		h.metrics.upload(decisionRejected)
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, interfaces.ErrMalformedInput):
		h.metrics.upload(decisionMalformed)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.log.Error("Backup upload failed", "err", err, slog.String("fingerprint", bundle.Fingerprint))
		h.metrics.upload(decisionFailed)
		writeError(w, http.StatusInternalServerError, "could not store backup")
		return
	}

	h.metrics.upload(decisionAccepted)
	writeJSON(w, http.StatusCreated, api.UploadResponse{
		Fingerprint: bundle.Fingerprint,
		CID:         cid.String(),
	})
}

// HandleDownload returns one stored bundle file.
//
// URL format: GET /api/backup/{name}
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !backup.ValidObjectName(name) {
		h.metrics.download("invalid")
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	data, err := h.store.Download(r.Context(), name)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		h.metrics.download("not_found")
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.log.Error("Backup download failed", "err", err, slog.String("name", name))
		h.metrics.download("failed")
		writeError(w, http.StatusInternalServerError, "could not read backup")
		return
	}

	h.metrics.download("ok")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleGetCID returns the content identifier of the latest accepted backup.
//
// URL format: GET /api/backup/{fingerprint}/cid
func (h *Handler) HandleGetCID(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "name")
	if !backup.ValidFingerprint(fingerprint) {
		writeError(w, http.StatusBadRequest, "invalid fingerprint")
		return
	}

	cid, err := h.cids.GetFileCid(r.Context(), fingerprint)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.log.Error("Content identifier lookup failed", "err", err, slog.String("fingerprint", fingerprint))
		writeError(w, http.StatusInternalServerError, "could not read content identifier")
		return
	}

	writeJSON(w, http.StatusOK, api.CIDResponse{Fingerprint: fingerprint, CID: cid.String()})
}

func readFiles(headers []*multipart.FileHeader) ([]backup.File, error) {
	files := make([]backup.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, backup.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
