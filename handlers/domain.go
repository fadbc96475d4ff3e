package handlers

import (
	"context"
	"errors"
	"net/http"

	"truthlens/database"
	"truthlens/services"
)

type DomainReader interface {
	Get(ctx context.Context, domain string) (database.DomainStats, error)
	Top(ctx context.Context, limit int) ([]database.DomainStats, error)
}

type DomainHandler struct {
	store DomainReader
}

func NewDomainHandler(store DomainReader) *DomainHandler { return &DomainHandler{store: store} }

// GetDomain: GET /api/domain/{domain}
func (h *DomainHandler) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain := services.NormalizeDomain(r.PathValue("domain"))
	if domain == "" {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}
	s, err := h.store.Get(r.Context(), domain)
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrUnavailable):
		writeError(w, http.StatusNotFound, "domain not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "db error")
	default:
		writeJSON(w, http.StatusOK, s)
	}
}

// GetTopDomains: GET /api/domains/top
func (h *DomainHandler) GetTopDomains(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Top(r.Context(), queryInt(r.URL.Query().Get("limit"), 20))
	switch {
	case errors.Is(err, database.ErrUnavailable):
		writeJSON(w, http.StatusOK, []database.DomainStats{})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "db error")
	default:
		writeJSON(w, http.StatusOK, list)
	}
}
