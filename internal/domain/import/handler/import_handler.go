package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/httputil"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

const (
	maxUploadMemory       = 32 << 20
	defaultMaxUploadBytes = 32 << 20
)

// ImportService is the part of the import service used over HTTP.
type ImportService interface {
	Submit(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (*repository.ImportJob, error)
	GetJob(ctx context.Context, ownerID, jobID string) (*repository.ImportJob, error)
}

// ImportHandler serves statement uploads and job polling.
type ImportHandler struct {
	importSvc      ImportService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:      importSvc,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger,
	}
}

// WithMaxUploadBytes caps the request body of an upload, multipart framing included.
func (h *ImportHandler) WithMaxUploadBytes(n int64) *ImportHandler {
	if n > 0 {
		h.maxUploadBytes = n
	}
	return h
}

// Routes mounts the import endpoints under /api/import.
func (h *ImportHandler) Routes(r chi.Router) {
	r.Post("/api/import", h.Upload)
	r.Get("/api/import/status", h.Status)
}

type uploadResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"jobId"`
}

// Upload handles POST /api/import. The import runs in the background;
// clients poll /api/import/status with the returned job ID.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		httputil.WriteError(w, http.StatusBadRequest, "content type must be multipart/form-data")
		return
	}

	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			httputil.WriteError(w, http.StatusBadRequest, "file is required")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/csv"
	}

	job, err := h.importSvc.Submit(r.Context(), userID, header.Filename, contentType, file)
	if err != nil {
		h.logger.Error("failed to start import",
			slog.String("user_id", userID),
			slog.String("filename", header.Filename),
			slog.Any("error", err),
		)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start import")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, uploadResponse{OK: true, JobID: job.JobID})
}

// Status handles GET /api/import/status?jobId=.
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "jobId is required")
		return
	}

	job, err := h.importSvc.GetJob(r.Context(), userID, jobID)
	if err != nil {
		status := httputil.StatusFor(err)
		if status == http.StatusNotFound {
			httputil.WriteError(w, status, "job not found")
			return
		}
		h.logger.Error("failed to load import job", slog.String("job_id", jobID), slog.Any("error", err))
		httputil.WriteError(w, status, "failed to load job")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, job)
}
