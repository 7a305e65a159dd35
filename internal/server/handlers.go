package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/quota"
	"github.com/painscout/painscout/internal/reports"
	"github.com/painscout/painscout/internal/search"
	"github.com/painscout/painscout/internal/storage"
)

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		logrus.Errorf("Identity resolution failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp, err := h.search.Run(r.Context(), req, caller)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type reportRequest struct {
	ReportType      string                `json:"report_type"`
	SearchID        string                `json:"search_id,omitempty"`
	SelectedResults []models.SearchResult `json:"selected_results"`
}

func (h *Handler) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report generation is not configured")
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		logrus.Errorf("Identity resolution failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if caller.UserID == "" {
		writeError(w, http.StatusUnauthorized, "report generation requires an account")
		return
	}

	report, err := h.reports.Generate(r.Context(), caller,
		models.ReportType(req.ReportType), req.SearchID, req.SelectedResults)
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report generation is not configured")
		return
	}

	caller, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		logrus.Errorf("Identity resolution failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if caller.UserID == "" {
		writeError(w, http.StatusUnauthorized, "reports require an account")
		return
	}

	report, err := h.reports.Get(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		// Another user's report answers the same as a missing one.
		var perm *reports.PermissionError
		if errors.Is(err, storage.ErrNotFound) || errors.As(err, &perm) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		logrus.Errorf("Report lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeSearchError maps pipeline errors to HTTP statuses. Quota exhaustion,
// whether caught up front or lost in a counter race, answers 429.
func writeSearchError(w http.ResponseWriter, err error) {
	var validation *search.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Reason)
		return
	}

	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":     exceeded.Error(),
			"remaining": exceeded.Remaining,
		})
		return
	}
	var race *quota.RaceError
	if errors.As(err, &race) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":     race.Error(),
			"remaining": 0,
		})
		return
	}

	logrus.Errorf("Search failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeReportError(w http.ResponseWriter, err error) {
	var validation *reports.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Reason)
		return
	}
	var perm *reports.PermissionError
	if errors.As(err, &perm) {
		writeError(w, http.StatusForbidden, perm.Error())
		return
	}
	var gen *reports.GenerationError
	if errors.As(err, &gen) {
		logrus.Errorf("Report generation failed: %v", err)
		writeError(w, http.StatusBadGateway, "report generation failed")
		return
	}

	logrus.Errorf("Report request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
