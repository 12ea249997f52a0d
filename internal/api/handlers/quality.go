package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wliao/retaildw/internal/warehouse"
	"github.com/wliao/retaildw/pkg/database"
	"github.com/wliao/retaildw/pkg/logger"
)

// QualityHandler serves the read-only quality and status endpoints.
type QualityHandler struct {
	store  *warehouse.Postgres
	db     *database.DB
	logger *logger.Logger
}

// NewQualityHandler creates a new quality handler.
func NewQualityHandler(store *warehouse.Postgres, db *database.DB, log *logger.Logger) *QualityHandler {
	return &QualityHandler{
		store:  store,
		db:     db,
		logger: log,
	}
}

// Health returns service and warehouse connection health.
// GET /health
func (h *QualityHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.HealthCheck(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "degraded",
			"service":  "retaildw-api",
			"database": status,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"service":  "retaildw-api",
		"database": status,
	})
}

// GetLatest returns the most recent quality report.
// GET /api/quality/latest
func (h *QualityHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.LatestReport(r.Context())
	if err != nil {
		if errors.Is(err, warehouse.ErrNoReport) {
			respondError(w, http.StatusNotFound, "No quality report available yet")
			return
		}
		h.logger.WithError(err).Error("Failed to load latest report")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve quality report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ListRuns returns stored report metadata, most recent first.
// GET /api/quality/runs?limit=N
func (h *QualityHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListReports(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		respondError(w, http.StatusInternalServerError, "Failed to list quality runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetSummary returns warehouse-wide row counts and totals.
// GET /api/summary
func (h *QualityHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summarize(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize warehouse")
		respondError(w, http.StatusInternalServerError, "Failed to summarize warehouse")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
