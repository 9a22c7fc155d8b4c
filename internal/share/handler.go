// Package share stores disease-analysis snapshots behind public links that
// expire after thirty days.
package share

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/cropcare/backend/internal/httpx"
	"github.com/ayush/cropcare/backend/internal/models"
	"github.com/ayush/cropcare/backend/internal/store"
)

// Store defines the interface for shared report persistence.
type Store interface {
	InsertReport(ctx context.Context, r *models.ShareableReport) (string, error)
	GetReport(ctx context.Context, id string) (*models.ShareableReport, error)
}

// Handler holds share HTTP handlers.
type Handler struct {
	reports Store
	baseURL string
	log     *slog.Logger
	now     func() time.Time
}

func NewHandler(reports Store, baseURL string, log *slog.Logger) *Handler {
	return &Handler{reports: reports, baseURL: baseURL, log: log, now: time.Now}
}

// Create stores a snapshot and returns its public link.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ShareRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !complete(&req) {
		httpx.Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	now := h.now().UTC()
	report := &models.ShareableReport{
		Disease:    *req.Disease,
		Confidence: *req.Confidence,
		Severity:   *req.Severity,
		Treatment:  *req.Treatment,
		Prevention: *req.Prevention,
		ImageURL:   *req.ImageURL,
		CreatedAt:  now,
		ExpiresAt:  now.Add(models.ReportTTL),
	}

	id, err := h.reports.InsertReport(r.Context(), report)
	if err != nil {
		httpx.Internal(w, r, h.log, "failed to store shared report", err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, models.ShareResponse{
		ShareID:  id,
		ShareURL: h.baseURL + "/shared/" + id,
	})
}

// Get returns a stored snapshot unless it has expired.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.reports.GetReport(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		httpx.Internal(w, r, h.log, "failed to load shared report", err)
		return
	}

	if report.Expired(h.now()) {
		httpx.Error(w, http.StatusGone, "Report has expired")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

// complete reports whether every field is present. Confidence may be zero;
// text fields must be non-blank.
func complete(req *models.ShareRequest) bool {
	if req.Confidence == nil {
		return false
	}
	for _, s := range []*string{req.Disease, req.Severity, req.Treatment, req.Prevention, req.ImageURL} {
		if s == nil || strings.TrimSpace(*s) == "" {
			return false
		}
	}
	return true
}
