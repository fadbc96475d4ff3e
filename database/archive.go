package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"truthlens/models"
)

const (
	contentExcerpt   = 500
	defaultListLimit = 50
	maxListLimit     = 200
)

// RiskLevel buckets a risk score: 80 and above is high, 60 and above medium.
func RiskLevel(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 60:
		return "medium"
	default:
		return "low"
	}
}

type ArchiveRecord struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	Verdict     models.Verdict      `json:"verdict"`
	RiskScore   int                 `json:"risk_score"`
	Confidence  float64             `json:"confidence"`
	ContentType models.ContentType  `json:"analysis_type"`
	Narrative   string              `json:"ai_analysis"`
	Result      jsoniter.RawMessage `json:"result,omitempty"`
	Notes       string              `json:"notes"`
	Tags        []string            `json:"tags"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewRecord snapshots a finished analysis. content is the analysed subject
// (text, URL or file name) and is cut to an excerpt.
func NewRecord(res *models.AnalysisResult, content string) (ArchiveRecord, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return ArchiveRecord{}, fmt.Errorf("encode result: %w", err)
	}
	ts := res.Metadata.TimestampUTC
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ArchiveRecord{
		ID:          uuid.NewString(),
		Title:       "Analysis " + ts.Format("2006-01-02 15:04:05"),
		Content:     excerpt(content, contentExcerpt),
		Verdict:     res.Verdict,
		RiskScore:   res.RiskScore,
		Confidence:  res.Confidence,
		ContentType: res.Metadata.ContentType,
		Narrative:   res.Narrative,
		Result:      payload,
		Tags:        []string{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

type ArchiveFilter struct {
	Search      string
	RiskLevel   string
	Verdict     string
	ContentType string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// where renders the filter as a SQL condition with positional arguments.
func (f ArchiveFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		add("(narrative ILIKE $%[1]d OR content ILIKE $%[1]d)", "%"+s+"%")
	}
	switch strings.ToLower(f.RiskLevel) {
	case "high":
		conds = append(conds, "risk_score >= 80")
	case "medium":
		conds = append(conds, "risk_score >= 60 AND risk_score < 80")
	case "low":
		conds = append(conds, "risk_score < 60")
	}
	if f.Verdict != "" {
		v := f.Verdict
		if parsed, ok := models.ParseVerdict(v); ok {
			v = string(parsed)
		}
		add("verdict = $%d", v)
	}
	if f.ContentType != "" {
		add("analysis_type = $%d", strings.ToLower(f.ContentType))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f ArchiveFilter) page() (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, max(f.Offset, 0)
}

type ArchiveStats struct {
	TotalAnalyses         int            `json:"total_analyses"`
	HighRiskCount         int            `json:"high_risk_count"`
	MediumRiskCount       int            `json:"medium_risk_count"`
	LowRiskCount          int            `json:"low_risk_count"`
	FalseInformationCount int            `json:"false_information_count"`
	MisleadingCount       int            `json:"misleading_count"`
	TrueCount             int            `json:"true_count"`
	UnverifiedCount       int            `json:"unverified_count"`
	AverageRiskScore      float64        `json:"average_risk_score"`
	AnalysisTypes         map[string]int `json:"analysis_types"`
}

// ArchiveStore persists analyses. A store without a database returns
// ErrUnavailable from every method.
type ArchiveStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewArchiveStore(db *sql.DB, log *zap.Logger) *ArchiveStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &ArchiveStore{db: db, log: log.Named("archive")}
}

func (s *ArchiveStore) Available() bool {
	return s != nil && s.db != nil
}

func (s *ArchiveStore) Save(ctx context.Context, rec ArchiveRecord) error {
	if !s.Available() {
		return ErrUnavailable
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, title, content, verdict, risk_score, confidence, analysis_type, narrative, result, notes, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			result     = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
	`, rec.ID, rec.Title, rec.Content, string(rec.Verdict), rec.RiskScore, rec.Confidence,
		string(rec.ContentType), rec.Narrative, []byte(rec.Result), rec.Notes, pq.Array(tags), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	s.log.Debug("analysis archived", zap.String("id", rec.ID), zap.String("verdict", string(rec.Verdict)))
	return nil
}

const recordColumns = `id, title, content, verdict, risk_score, confidence, analysis_type, narrative, result, notes, tags, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (ArchiveRecord, error) {
	var (
		rec     ArchiveRecord
		verdict string
		ct      string
		result  []byte
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Content, &verdict, &rec.RiskScore, &rec.Confidence,
		&ct, &rec.Narrative, &result, &rec.Notes, pq.Array(&rec.Tags), &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return ArchiveRecord{}, err
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	rec.Verdict = models.Verdict(verdict)
	rec.ContentType = models.ContentType(ct)
	rec.Result = result
	return rec, nil
}

func (s *ArchiveStore) Get(ctx context.Context, id string) (ArchiveRecord, error) {
	if !s.Available() {
		return ArchiveRecord{}, ErrUnavailable
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM analyses WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ArchiveRecord{}, ErrNotFound
	}
	if err != nil {
		return ArchiveRecord{}, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return rec, nil
}

// List returns matching records newest first, without the result payload.
func (s *ArchiveStore) List(ctx context.Context, f ArchiveFilter) ([]ArchiveRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	where, args := f.where()
	limit, offset := f.page()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM analyses%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []ArchiveRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.Result = nil
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats aggregates analyses created at or after since; a zero since means all.
func (s *ArchiveStore) Stats(ctx context.Context, since time.Time) (ArchiveStats, error) {
	if !s.Available() {
		return ArchiveStats{}, ErrUnavailable
	}
	stats := ArchiveStats{AnalysisTypes: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE risk_score >= 80),
			COUNT(*) FILTER (WHERE risk_score >= 60 AND risk_score < 80),
			COUNT(*) FILTER (WHERE risk_score < 60),
			COUNT(*) FILTER (WHERE verdict = $2),
			COUNT(*) FILTER (WHERE verdict = $3),
			COUNT(*) FILTER (WHERE verdict = $4),
			COUNT(*) FILTER (WHERE verdict = $5),
			COALESCE(AVG(risk_score), 0)
		FROM analyses WHERE created_at >= $1
	`, since, string(models.VerdictFalse), string(models.VerdictMisleading),
		string(models.VerdictTrue), string(models.VerdictUnverified)).Scan(
		&stats.TotalAnalyses, &stats.HighRiskCount, &stats.MediumRiskCount, &stats.LowRiskCount,
		&stats.FalseInformationCount, &stats.MisleadingCount, &stats.TrueCount, &stats.UnverifiedCount,
		&stats.AverageRiskScore)
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("archive stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis_type, COUNT(*) FROM analyses WHERE created_at >= $1 GROUP BY analysis_type`, since)
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("archive type stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ct string
			n  int
		)
		if err := rows.Scan(&ct, &n); err != nil {
			return ArchiveStats{}, fmt.Errorf("scan type stats: %w", err)
		}
		stats.AnalysisTypes[ct] = n
	}
	return stats, rows.Err()
}

func (s *ArchiveStore) Delete(ctx context.Context, id string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	return affected(res)
}

// StatsWindow maps the dashboard ranges 1d, 7d, 30d, 90d and 1y to a start
// time. Anything else means all time.
func StatsWindow(now time.Time, rng string) time.Time {
	switch rng {
	case "1d":
		return now.AddDate(0, 0, -1)
	case "7d":
		return now.AddDate(0, 0, -7)
	case "30d":
		return now.AddDate(0, 0, -30)
	case "90d":
		return now.AddDate(0, 0, -90)
	case "1y":
		return now.AddDate(-1, 0, 0)
	}
	return time.Time{}
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
