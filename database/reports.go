package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"truthlens/models"
)

type ReportFilter struct {
	Status   string
	Priority string
	Limit    int
	Offset   int
}

func (f ReportFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, strings.ToLower(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, strings.ToLower(f.Priority))
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ReportUpdate changes the status; empty Resolution and AssignedTo keep the
// stored values.
type ReportUpdate struct {
	Status     string
	Resolution string
	AssignedTo string
}

type ReportStats struct {
	TotalReports int            `json:"total_reports"`
	ByStatus     map[string]int `json:"by_status"`
	ByPriority   map[string]int `json:"by_priority"`
}

// ReportStore keeps user reports in the reports table.
type ReportStore struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

func NewReportStore(db *sql.DB, log *zap.Logger) *ReportStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportStore{db: db, log: log.Named("reports"), now: time.Now}
}

func (s *ReportStore) Available() bool {
	return s != nil && s.db != nil
}

func (s *ReportStore) Create(ctx context.Context, r models.Report) error {
	if !s.Available() {
		return ErrUnavailable
	}
	evidence := r.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, content_id, content_type, report_type, priority, status,
			reporter_name, reporter_email, additional_info, evidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.ID, r.ContentID, r.ContentType, r.ReportType, r.Priority, r.Status,
		r.ReporterName, r.ReporterEmail, r.AdditionalInfo, pq.Array(evidence), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create report %s: %w", r.ID, err)
	}
	s.log.Info("report submitted",
		zap.String("id", r.ID),
		zap.String("report_type", r.ReportType),
		zap.String("priority", r.Priority))
	return nil
}

const reportColumns = `id, content_id, content_type, report_type, priority, status, reporter_name,
	reporter_email, additional_info, evidence, resolution, assigned_to, escalation_reason, created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (models.Report, error) {
	var r models.Report
	err := row.Scan(&r.ID, &r.ContentID, &r.ContentType, &r.ReportType, &r.Priority, &r.Status,
		&r.ReporterName, &r.ReporterEmail, &r.AdditionalInfo, pq.Array(&r.Evidence),
		&r.Resolution, &r.AssignedTo, &r.EscalationReason, &r.CreatedAt, &r.UpdatedAt)
	if r.Evidence == nil {
		r.Evidence = []string{}
	}
	return r, err
}

func (s *ReportStore) Get(ctx context.Context, id string) (models.Report, error) {
	if !s.Available() {
		return models.Report{}, ErrUnavailable
	}
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return r, nil
}

// List returns one page of matching reports, newest first, and the total
// number of matches.
func (s *ReportStore) List(ctx context.Context, f ReportFilter) ([]models.Report, int, error) {
	if !s.Available() {
		return nil, 0, ErrUnavailable
	}
	where, args := f.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	limit, offset := ArchiveFilter{Limit: f.Limit, Offset: f.Offset}.page()
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM reports%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reportColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *ReportStore) Update(ctx context.Context, id string, u ReportUpdate) error {
	if !s.Available() {
		return ErrUnavailable
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports SET
			status      = $2,
			resolution  = COALESCE(NULLIF($3, ''), resolution),
			assigned_to = COALESCE(NULLIF($4, ''), assigned_to),
			updated_at  = $5
		WHERE id = $1
	`, id, u.Status, u.Resolution, u.AssignedTo, s.now().UTC())
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	return affected(res)
}

func (s *ReportStore) Assign(ctx context.Context, id, assignee string) error {
	return s.Update(ctx, id, ReportUpdate{Status: models.ReportAssigned, AssignedTo: assignee})
}

// Escalate raises the priority one level, marks the report escalated and
// returns the new priority.
func (s *ReportStore) Escalate(ctx context.Context, id, reason string) (string, error) {
	if !s.Available() {
		return "", ErrUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("escalate report %s: %w", id, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT priority FROM reports WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("escalate report %s: %w", id, err)
	}

	next := models.NextPriority(current)
	_, err = tx.ExecContext(ctx, `
		UPDATE reports SET priority = $2, status = $3, escalation_reason = $4, updated_at = $5
		WHERE id = $1
	`, id, next, models.ReportEscalated, reason, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("escalate report %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("escalate report %s: %w", id, err)
	}
	s.log.Info("report escalated", zap.String("id", id), zap.String("from", current), zap.String("to", next))
	return next, nil
}

func (s *ReportStore) Delete(ctx context.Context, id string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	return affected(res)
}

// Stats counts reports per status and priority. Every known status and
// priority is present, with zero when unused.
func (s *ReportStore) Stats(ctx context.Context) (ReportStats, error) {
	if !s.Available() {
		return ReportStats{}, ErrUnavailable
	}
	stats := newReportStats()

	rows, err := s.db.QueryContext(ctx, `SELECT status, priority, COUNT(*) FROM reports GROUP BY status, priority`)
	if err != nil {
		return ReportStats{}, fmt.Errorf("report stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status, priority string
			n                int
		)
		if err := rows.Scan(&status, &priority, &n); err != nil {
			return ReportStats{}, fmt.Errorf("scan report stats: %w", err)
		}
		stats.add(status, priority, n)
	}
	return stats, rows.Err()
}

func newReportStats() ReportStats {
	stats := ReportStats{ByStatus: map[string]int{}, ByPriority: map[string]int{}}
	for _, st := range models.ReportStatuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range models.ReportPriorities {
		stats.ByPriority[p] = 0
	}
	return stats
}

func (s *ReportStats) add(status, priority string, n int) {
	s.TotalReports += n
	s.ByStatus[status] += n
	s.ByPriority[priority] += n
}

func affected(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
