package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthlens/database"
	"truthlens/models"
	"truthlens/services"
)

type stubReports struct {
	mu      sync.Mutex
	reports map[string]models.Report
	filter  database.ReportFilter
	err     error
}

func newStubReports() *stubReports {
	return &stubReports{reports: map[string]models.Report{}}
}

func (s *stubReports) Create(_ context.Context, r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports[r.ID] = r
	return nil
}

func (s *stubReports) Get(_ context.Context, id string) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.Report{}, s.err
	}
	r, ok := s.reports[id]
	if !ok {
		return models.Report{}, database.ErrNotFound
	}
	return r, nil
}

func (s *stubReports) List(_ context.Context, f database.ReportFilter) ([]models.Report, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	out := []models.Report{}
	for _, r := range s.reports {
		if f.Status == "" || r.Status == f.Status {
			out = append(out, r)
		}
	}
	return out, len(out), s.err
}

func (s *stubReports) Update(_ context.Context, id string, u database.ReportUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return database.ErrNotFound
	}
	r.Status = u.Status
	if u.Resolution != "" {
		r.Resolution = u.Resolution
	}
	if u.AssignedTo != "" {
		r.AssignedTo = u.AssignedTo
	}
	s.reports[id] = r
	return nil
}

func (s *stubReports) Assign(ctx context.Context, id, assignee string) error {
	return s.Update(ctx, id, database.ReportUpdate{Status: models.ReportAssigned, AssignedTo: assignee})
}

func (s *stubReports) Escalate(_ context.Context, id, reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return "", database.ErrNotFound
	}
	r.Priority = models.NextPriority(r.Priority)
	r.Status = models.ReportEscalated
	r.EscalationReason = reason
	s.reports[id] = r
	return r.Priority, nil
}

func (s *stubReports) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

func (s *stubReports) Stats(context.Context) (database.ReportStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := database.ReportStats{ByStatus: map[string]int{}, ByPriority: map[string]int{}}
	for _, r := range s.reports {
		stats.TotalReports++
		stats.ByStatus[r.Status]++
		stats.ByPriority[r.Priority]++
	}
	return stats, s.err
}

func (s *stubReports) get(id string) models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[id]
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []models.Report
	err  error
}

func (n *stubNotifier) NotifyReport(_ context.Context, r models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, r)
	return n.err
}

func newReportRouter(t *testing.T, reports *stubReports, notify services.ReportNotifier) (http.Handler, *ReportHandler) {
	t.Helper()
	store := &stubStore{}
	analyzer := newTestAnalyzerHandler(t, &stubAnalyzer{res: falseResult()}, store)
	h := NewReportHandler(reports, notify, nil)
	h.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	h.notified = make(chan struct{}, 4)
	return NewRouter(Routes{
		Analyzer: analyzer,
		Archive:  NewArchiveHandler(store, nil),
		Reports:  h,
		Domains:  NewDomainHandler(database.NewDomainStore(nil, nil)),
		Admin:    NewAdminHandler("secret", analyzer, store, nil, nil),
	}), h
}

func waitNotified(t *testing.T, h *ReportHandler) {
	t.Helper()
	select {
	case <-h.notified:
	case <-time.After(2 * time.Second):
		t.Fatal("notification did not finish")
	}
}

func do(router http.Handler, method, path, body string, admin bool) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if admin {
		r.Header.Set("X-Admin-Token", "secret")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestSubmitReport(t *testing.T) {
	reports := newStubReports()
	notify := &stubNotifier{}
	router, h := newReportRouter(t, reports, notify)

	rec := do(router, http.MethodPost, "/api/report", `{
		"content_id": "analysis-42",
		"content_type": "url",
		"report_type": "misinformation",
		"priority": "HIGH",
		"reporter_email": "dana@example.org",
		"evidence": ["https://example.org/shot.png"]
	}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	var out struct {
		ReportID            string    `json:"report_id"`
		Status              string    `json:"status"`
		CreatedAt           time.Time `json:"created_at"`
		EstimatedResolution string    `json:"estimated_resolution"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Regexp(t, regexp.MustCompile(`^report_1775034000_[0-9a-f]{8}$`), out.ReportID)
	assert.Equal(t, models.ReportSubmitted, out.Status)
	assert.Equal(t, "24-48 hours", out.EstimatedResolution)

	stored := reports.get(out.ReportID)
	assert.Equal(t, "high", stored.Priority)
	assert.Equal(t, []string{"https://example.org/shot.png"}, stored.Evidence)

	waitNotified(t, h)
	notify.mu.Lock()
	defer notify.mu.Unlock()
	require.Len(t, notify.sent, 1)
	assert.Equal(t, out.ReportID, notify.sent[0].ID)
}

func TestSubmitReportDefaultsAndValidation(t *testing.T) {
	reports := newStubReports()
	router, h := newReportRouter(t, reports, &stubNotifier{err: errors.New("smtp down")})

	rec := do(router, http.MethodPost, "/api/report",
		`{"content_id": "a", "content_type": "text", "report_type": "spam"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"estimated_resolution":"1-3 business days"`)
	waitNotified(t, h)

	for _, r := range reports.reports {
		assert.Equal(t, models.DefaultReportPriority, r.Priority)
		assert.NotNil(t, r.Evidence)
	}

	rec = do(router, http.MethodPost, "/api/report", `{"content_id": "a", "content_type": "text"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/report",
		`{"content_id": "a", "content_type": "text", "report_type": "spam", "priority": "urgent"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/report", `{broken`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportWorkflow(t *testing.T) {
	reports := newStubReports()
	reports.reports["r1"] = models.Report{ID: "r1", Priority: "high", Status: models.ReportSubmitted}
	router, _ := newReportRouter(t, reports, nil)

	rec := do(router, http.MethodGet, "/api/report/r1", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"report_id":"r1"`)

	rec = do(router, http.MethodPost, "/api/report/r1/assign", `{"assignee": "moderator-7"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReportAssigned, reports.get("r1").Status)
	assert.Equal(t, "moderator-7", reports.get("r1").AssignedTo)

	rec = do(router, http.MethodPost, "/api/report/r1/escalate", `{"reason": "spreading fast"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"new_priority":"critical"`)
	assert.Equal(t, models.ReportEscalated, reports.get("r1").Status)
	assert.Equal(t, "spreading fast", reports.get("r1").EscalationReason)

	rec = do(router, http.MethodPatch, "/api/report/r1", `{"status": "Resolved", "resolution": "removed"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReportResolved, reports.get("r1").Status)
	assert.Equal(t, "removed", reports.get("r1").Resolution)
	assert.Equal(t, "moderator-7", reports.get("r1").AssignedTo)

	rec = do(router, http.MethodPatch, "/api/report/r1", `{"status": "closed"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/report/r1/escalate", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/report/stats", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_reports":1`)

	rec = do(router, http.MethodGet, "/api/reports?status=resolved&limit=5", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Contains(t, rec.Body.String(), `"limit":5`)
	assert.Equal(t, "resolved", reports.filter.Status)

	rec = do(router, http.MethodDelete, "/api/report/r1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/api/report/r1", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodPost, "/api/report/missing/escalate", `{"reason": "x"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportAdminRoutesNeedToken(t *testing.T) {
	reports := newStubReports()
	reports.reports["r1"] = models.Report{ID: "r1", Priority: "low", Status: models.ReportSubmitted}
	router, _ := newReportRouter(t, reports, nil)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/reports", ""},
		{http.MethodGet, "/api/report/stats", ""},
		{http.MethodPatch, "/api/report/r1", `{"status": "resolved"}`},
		{http.MethodPost, "/api/report/r1/escalate", `{"reason": "x"}`},
		{http.MethodPost, "/api/report/r1/assign", `{"assignee": "x"}`},
		{http.MethodDelete, "/api/report/r1", ""},
	} {
		rec := do(router, tc.method, tc.path, tc.body, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.method+" "+tc.path)
	}
	assert.Equal(t, models.ReportSubmitted, reports.get("r1").Status)
}

func TestReportsUnavailable(t *testing.T) {
	reports := newStubReports()
	reports.err = database.ErrUnavailable
	router, _ := newReportRouter(t, reports, nil)

	rec := do(router, http.MethodPost, "/api/report",
		`{"content_id": "a", "content_type": "text", "report_type": "spam"}`, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(router, http.MethodGet, "/api/report/stats", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestArchiveExport(t *testing.T) {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	store := &stubStore{records: map[string]database.ArchiveRecord{
		"abc": {ID: "abc", Title: "Analysis", Verdict: models.VerdictFalse, RiskScore: 90,
			ContentType: models.ContentText, Tags: []string{"health"}, CreatedAt: ts, UpdatedAt: ts},
	}}
	router := newTestRouter(t, store)

	rec := do(router, http.MethodGet, "/api/archive/export", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"analyses":[{"id":"abc"`)

	rec = do(router, http.MethodGet,
		`/api/archive/export?format=csv&filters=%7B%22risk_level%22%3A%22high%22%2C%22date_to%22%3A%222026-02-03%22%7D`, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, strings.HasPrefix(out["csv_data"], "id,title,content,verdict"))
	assert.Contains(t, out["csv_data"], "abc,Analysis,,FALSE INFORMATION,90,0.00,text,,,health,2026-02-03T04:05:06Z")
	assert.Equal(t, "high", store.exported.RiskLevel)
	assert.Equal(t, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), store.exported.To)

	rec = do(router, http.MethodGet, "/api/archive/export?format=xlsx", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/archive/export?filters=notjson", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveTrendsAndSuggestions(t *testing.T) {
	period := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	store := &stubStore{trends: []database.TrendPoint{
		{Period: period, Total: 4, FalseInformation: 2, Misleading: 1, AverageRiskScore: 71.5},
	}}
	router := newTestRouter(t, store)

	rec := do(router, http.MethodGet, "/api/archive/trends?granularity=week&time_range=7d", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"time_range": "7d",
		"granularity": "week",
		"data_points": [{"period": "2026-02-03T00:00:00Z", "total": 4, "false_information": 2, "misleading": 1, "average_risk_score": 71.5}]
	}`, rec.Body.String())
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -7), store.trendSince, time.Minute)

	rec = do(router, http.MethodGet, "/api/archive/trends?granularity=month", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/archive/search/suggestions?query=vaccine&limit=3", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions": ["vaccines"]}`, rec.Body.String())
	assert.Equal(t, []any{"vaccine", 3}, store.suggestArgs)

	rec = do(router, http.MethodGet, "/api/archive/search/suggestions", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveUpdate(t *testing.T) {
	store := &stubStore{records: map[string]database.ArchiveRecord{"abc": {ID: "abc", Title: "Old"}}}
	router := newTestRouter(t, store)

	rec := do(router, http.MethodPut, "/api/archive/abc", `{"title": "Vaccine rumour", "tags": ["health", "viral"]}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Vaccine rumour", store.records["abc"].Title)
	assert.Equal(t, []string{"health", "viral"}, store.records["abc"].Tags)
	assert.Empty(t, store.records["abc"].Notes)

	rec = do(router, http.MethodPut, "/api/archive/abc", `{}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPut, "/api/archive/missing", `{"notes": "x"}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
