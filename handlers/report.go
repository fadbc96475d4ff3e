package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"truthlens/database"
	"truthlens/models"
	"truthlens/services"
)

type ReportStore interface {
	Create(ctx context.Context, r models.Report) error
	Get(ctx context.Context, id string) (models.Report, error)
	List(ctx context.Context, f database.ReportFilter) ([]models.Report, int, error)
	Update(ctx context.Context, id string, u database.ReportUpdate) error
	Assign(ctx context.Context, id, assignee string) error
	Escalate(ctx context.Context, id, reason string) (string, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (database.ReportStats, error)
}

const notifyTimeout = 30 * time.Second

type ReportHandler struct {
	store  ReportStore
	notify services.ReportNotifier
	log    *zap.Logger
	now    func() time.Time

	// notified receives one value per finished notification, when set.
	notified chan struct{}
}

func NewReportHandler(store ReportStore, notify services.ReportNotifier, log *zap.Logger) *ReportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportHandler{store: store, notify: notify, log: log.Named("reports"), now: time.Now}
}

type submitReportRequest struct {
	ContentID      string   `json:"content_id"`
	ContentType    string   `json:"content_type"`
	ReportType     string   `json:"report_type"`
	Priority       string   `json:"priority"`
	ReporterName   string   `json:"reporter_name"`
	ReporterEmail  string   `json:"reporter_email"`
	AdditionalInfo string   `json:"additional_info"`
	Evidence       []string `json:"evidence"`
}

// Submit: POST /api/report
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ContentID) == "" || strings.TrimSpace(req.ContentType) == "" || strings.TrimSpace(req.ReportType) == "" {
		writeError(w, http.StatusBadRequest, "content_id, content_type and report_type are required")
		return
	}
	priority := strings.ToLower(req.Priority)
	if priority == "" {
		priority = models.DefaultReportPriority
	}
	if !models.ValidReportPriority(priority) {
		writeError(w, http.StatusBadRequest, "priority must be low, medium, high or critical")
		return
	}

	now := h.now().UTC()
	report := models.Report{
		ID:             models.NewReportID(now),
		ContentID:      req.ContentID,
		ContentType:    req.ContentType,
		ReportType:     req.ReportType,
		Priority:       priority,
		Status:         models.ReportSubmitted,
		ReporterName:   req.ReporterName,
		ReporterEmail:  req.ReporterEmail,
		AdditionalInfo: req.AdditionalInfo,
		Evidence:       req.Evidence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if report.Evidence == nil {
		report.Evidence = []string{}
	}
	if err := h.store.Create(r.Context(), report); err != nil {
		h.storeError(w, err)
		return
	}
	h.notifyAsync(report)

	writeJSON(w, http.StatusCreated, map[string]any{
		"report_id":            report.ID,
		"status":               report.Status,
		"created_at":           report.CreatedAt,
		"estimated_resolution": models.EstimatedResolution(report.Priority),
	})
}

// notifyAsync mails moderators without holding up the response. Failures are
// logged only.
func (h *ReportHandler) notifyAsync(report models.Report) {
	if h.notify == nil {
		return
	}
	go func() {
		defer func() {
			if h.notified != nil {
				h.notified <- struct{}{}
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		err := h.notify.NotifyReport(ctx, report)
		switch {
		case errors.Is(err, services.ErrCollaboratorUnavailable):
			h.log.Debug("report notification skipped, smtp not configured", zap.String("report_id", report.ID))
		case err != nil:
			h.log.Warn("report notification failed", zap.String("report_id", report.ID), zap.Error(err))
		}
	}()
}

// Get: GET /api/report/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// List: GET /api/reports?status=&priority=&limit=&offset=
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.ReportFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Limit:    queryInt(q.Get("limit"), 50),
		Offset:   queryInt(q.Get("offset"), 0),
	}
	list, total, err := h.store.List(r.Context(), f)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": list,
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

// UpdateStatus: PATCH /api/report/{id} with {"status", "resolution", "assigned_to"}
func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status     string `json:"status"`
		Resolution string `json:"resolution"`
		AssignedTo string `json:"assigned_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status := strings.ToLower(body.Status)
	if !models.ValidReportStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown report status")
		return
	}
	id := r.PathValue("id")
	err := h.store.Update(r.Context(), id, database.ReportUpdate{
		Status:     status,
		Resolution: body.Resolution,
		AssignedTo: body.AssignedTo,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Report updated", "report_id": id, "status": status})
}

// Escalate: POST /api/report/{id}/escalate with {"reason"}
func (h *ReportHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	id := r.PathValue("id")
	next, err := h.store.Escalate(r.Context(), id, body.Reason)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":      "Report escalated",
		"report_id":    id,
		"status":       models.ReportEscalated,
		"new_priority": next,
	})
}

// Assign: POST /api/report/{id}/assign with {"assignee"}
func (h *ReportHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignee string `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Assignee) == "" {
		writeError(w, http.StatusBadRequest, "assignee is required")
		return
	}
	id := r.PathValue("id")
	if err := h.store.Assign(r.Context(), id, body.Assignee); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Report assigned",
		"report_id":   id,
		"status":      models.ReportAssigned,
		"assigned_to": body.Assignee,
	})
}

// Delete: DELETE /api/report/{id}
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Report deleted", "report_id": id})
}

// Stats: GET /api/report/stats
func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ReportHandler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case errors.Is(err, database.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "reports unavailable")
	default:
		h.log.Error("report query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report error")
	}
}
