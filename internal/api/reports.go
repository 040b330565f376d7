package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/firstprinciples/internal/domain"
	"github.com/ashureev/firstprinciples/internal/identity"
	"github.com/ashureev/firstprinciples/internal/store"
	"github.com/go-chi/chi/v5"
)

// ReportsHandler serves the caller's archive of emitted reports.
type ReportsHandler struct {
	repo store.Repository
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(repo store.Repository) *ReportsHandler {
	return &ReportsHandler{repo: repo}
}

// RegisterRoutes registers report archive routes.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/reports", h.List)
	r.Get("/api/reports/{id}", h.Download)
}

// List returns the caller's reports, newest first.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	reports, err := h.repo.ListReports(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to list reports", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []*domain.Report{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// Download sends one archived report as an attachment.
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	report, err := h.repo.GetReport(r.Context(), userID, id)
	if err != nil {
		slog.Error("Failed to load report", "error", err, "user_id", userID, "report_id", id)
		Error(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		Error(w, http.StatusNotFound, "report not found")
		return
	}

	Attachment(w, report.Filename, report.Content)
}
