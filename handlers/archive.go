package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"truthlens/database"
)

type ArchiveReader interface {
	Get(ctx context.Context, id string) (database.ArchiveRecord, error)
	List(ctx context.Context, f database.ArchiveFilter) ([]database.ArchiveRecord, error)
	Stats(ctx context.Context, since time.Time) (database.ArchiveStats, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, u database.ArchiveUpdate) error
	Export(ctx context.Context, f database.ArchiveFilter) ([]database.ArchiveRecord, error)
	Trends(ctx context.Context, since time.Time, granularity string) ([]database.TrendPoint, error)
	Suggestions(ctx context.Context, query string, limit int) ([]string, error)
}

type ArchiveHandler struct {
	store ArchiveReader
	log   *zap.Logger
}

func NewArchiveHandler(store ArchiveReader, log *zap.Logger) *ArchiveHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ArchiveHandler{store: store, log: log.Named("archive")}
}

// List: GET /api/archive?search=&risk_level=&verdict=&analysis_type=&date_from=&date_to=&limit=&offset=
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := archiveFilter{
		Search:      q.Get("search"),
		RiskLevel:   q.Get("risk_level"),
		Verdict:     q.Get("verdict"),
		ContentType: q.Get("analysis_type"),
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
	}.filter()
	f.Limit = queryInt(q.Get("limit"), 50)
	f.Offset = queryInt(q.Get("offset"), 0)

	list, err := h.store.List(r.Context(), f)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Stats: GET /api/archive/stats?time_range=7d
func (h *ArchiveHandler) Stats(w http.ResponseWriter, r *http.Request) {
	rng := r.URL.Query().Get("time_range")
	if rng == "" {
		rng = "7d"
	}
	stats, err := h.store.Stats(r.Context(), database.StatsWindow(time.Now().UTC(), rng))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Get: GET /api/archive/{id}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete: DELETE /api/archive/{id}
func (h *ArchiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Analysis deleted", "id": id})
}

// Update: PUT /api/archive/{id} with {"title", "notes", "tags"}
func (h *ArchiveHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u database.ArchiveUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if u.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	id := r.PathValue("id")
	if err := h.store.Update(r.Context(), id, u); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Analysis updated", "id": id})
}

// Export: GET /api/archive/export?format=json|csv&filters={...}
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, "unsupported export format")
		return
	}
	var af archiveFilter
	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &af); err != nil {
			writeError(w, http.StatusBadRequest, "invalid filters format")
			return
		}
	}

	recs, err := h.store.Export(r.Context(), af.filter())
	if err != nil {
		h.storeError(w, err)
		return
	}
	if format == "json" {
		writeJSON(w, http.StatusOK, map[string]any{"analyses": recs})
		return
	}
	var buf strings.Builder
	if err := database.WriteCSV(&buf, recs); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csv_data": buf.String()})
}

// Trends: GET /api/archive/trends?time_range=30d&granularity=day
func (h *ArchiveHandler) Trends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, gran := q.Get("time_range"), q.Get("granularity")
	if rng == "" {
		rng = "30d"
	}
	if gran == "" {
		gran = "day"
	}
	if !database.ValidGranularity(gran) {
		writeError(w, http.StatusBadRequest, "granularity must be hour, day or week")
		return
	}
	points, err := h.store.Trends(r.Context(), database.StatsWindow(time.Now().UTC(), rng), gran)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"time_range":  rng,
		"granularity": gran,
		"data_points": points,
	})
}

// Suggestions: GET /api/archive/search/suggestions?query=&limit=10
func (h *ArchiveHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	list, err := h.store.Suggestions(r.Context(), query, queryInt(q.Get("limit"), 10))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": list})
}

// archiveFilter is the wire form of an archive filter, shared by the list
// query string and the export filters document.
type archiveFilter struct {
	Search      string `json:"search"`
	RiskLevel   string `json:"risk_level"`
	Verdict     string `json:"verdict"`
	ContentType string `json:"analysis_type"`
	DateFrom    string `json:"date_from"`
	DateTo      string `json:"date_to"`
}

func (a archiveFilter) filter() database.ArchiveFilter {
	f := database.ArchiveFilter{
		Search:      a.Search,
		RiskLevel:   a.RiskLevel,
		Verdict:     a.Verdict,
		ContentType: a.ContentType,
	}
	if t, err := time.Parse(time.DateOnly, a.DateFrom); err == nil {
		f.From = t
	}
	if t, err := time.Parse(time.DateOnly, a.DateTo); err == nil {
		f.To = t.AddDate(0, 0, 1)
	}
	return f
}

func (h *ArchiveHandler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "analysis not found")
	case errors.Is(err, database.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "archive unavailable")
	default:
		h.log.Error("archive query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive error")
	}
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
