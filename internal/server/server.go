// Package server wires the HTTP surface: search, reports, health, metrics.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/painscout/painscout/internal/identity"
	"github.com/painscout/painscout/internal/reports"
	"github.com/painscout/painscout/internal/search"
)

// Handler bundles the services behind the HTTP endpoints.
type Handler struct {
	resolver identity.Resolver
	search   *search.Service
	reports  *reports.Service
}

// NewHandler creates the HTTP handler set. reports may be nil when no LLM key
// is configured; the report endpoints then answer 503.
func NewHandler(resolver identity.Resolver, searchService *search.Service, reportService *reports.Service) *Handler {
	return &Handler{
		resolver: resolver,
		search:   searchService,
		reports:  reportService,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", h.handleMetrics).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.handleSearch).Methods("POST")
	api.HandleFunc("/reports", h.handleGenerateReport).Methods("POST")
	api.HandleFunc("/reports/{id}", h.handleGetReport).Methods("GET")

	return router
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.search.GetMetrics()))
}
