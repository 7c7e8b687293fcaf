package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/service"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
	"github.com/veridoc/veridoc-backend/pkg/httputil"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// AuditLister reads back recorded analyses
type AuditLister interface {
	List(ctx context.Context, limit int) ([]*domain.AnalysisAudit, error)
}

// Handler handles HTTP requests for document analysis
type Handler struct {
	service   *service.Service
	audit     AuditLister
	uploadDir string
	maxUpload int64
	log       *logger.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(svc *service.Service, audit AuditLister, uploadDir string, maxUpload int64, log *logger.Logger) *Handler {
	return &Handler{
		service:   svc,
		audit:     audit,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Upload handles POST /api/v1/documents.
// Accepts a multipart form with a single "file" field and returns the task
// ID the client then opens a websocket session against.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.Error(w, apperrors.BadRequest("file too large or invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, apperrors.BadRequest("missing file in request"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		httputil.Error(w, apperrors.BadRequest("missing filename"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	task, err := h.service.CreateTask(r.Context(), header.Filename, mimeType, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create analysis task")
		httputil.Error(w, apperrors.Internal("failed to store uploaded document"))
		return
	}

	httputil.Created(w, map[string]string{
		"task_id":      task.Request.TaskID,
		"filename":     task.Request.Filename,
		"content_type": task.Request.MIMEType,
	})
}

// GetTask handles GET /api/v1/tasks/{taskID}.
// Returns the task status and, once completed, the full result.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task := h.service.GetTask(taskID)
	if task == nil {
		httputil.Error(w, apperrors.NotFound("analysis task"))
		return
	}
	httputil.JSON(w, http.StatusOK, task)
}

// GetArtifact handles GET /api/v1/artifacts/{name}.
// Serves a generated artifact (difference image, heatmap, noise map) from
// the upload directory. The name is sanitized to its base component so the
// handler can never be walked out of the directory.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	base := filepath.Base(name)
	if base == "." || base == ".." || strings.ContainsAny(base, "/\\") {
		httputil.Error(w, apperrors.BadRequest("invalid artifact name"))
		return
	}

	http.ServeFile(w, r, filepath.Join(h.uploadDir, base))
}

// ListAudits handles GET /api/v1/audits
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			httputil.Error(w, apperrors.BadRequest("limit must be an integer between 1 and 500"))
			return
		}
		limit = parsed
	}

	audits, err := h.audit.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list audit rows")
		httputil.Error(w, apperrors.Internal("failed to list analyses"))
		return
	}
	if audits == nil {
		audits = []*domain.AnalysisAudit{}
	}
	httputil.JSON(w, http.StatusOK, audits)
}

