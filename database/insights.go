package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"truthlens/models"
)

const (
	exportLimit       = 10000
	defaultSuggestion = 10
	suggestionScan    = 200
	minSuggestWord    = 4
)

// ArchiveUpdate edits the user-owned fields of a record; nil leaves a field
// unchanged.
type ArchiveUpdate struct {
	Title *string   `json:"title"`
	Notes *string   `json:"notes"`
	Tags  *[]string `json:"tags"`
}

func (u ArchiveUpdate) Empty() bool {
	return u.Title == nil && u.Notes == nil && u.Tags == nil
}

func (s *ArchiveStore) Update(ctx context.Context, id string, u ArchiveUpdate) error {
	if !s.Available() {
		return ErrUnavailable
	}
	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}
	if u.Title != nil {
		args = append(args, *u.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if u.Notes != nil {
		args = append(args, *u.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if u.Tags != nil {
		tags := *u.Tags
		if tags == nil {
			tags = []string{}
		}
		args = append(args, pq.Array(tags))
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)))
	}
	res, err := s.db.ExecContext(ctx, `UPDATE analyses SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update analysis %s: %w", id, err)
	}
	return affected(res)
}

// Export returns up to 10000 matching records, newest first, ignoring the
// filter's paging.
func (s *ArchiveStore) Export(ctx context.Context, f ArchiveFilter) ([]ArchiveRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	where, args := f.where()
	args = append(args, exportLimit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM analyses%s ORDER BY created_at DESC LIMIT $%d`, recordColumns, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("export analyses: %w", err)
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

var csvHeader = []string{
	"id", "title", "content", "verdict", "risk_score", "confidence",
	"analysis_type", "ai_analysis", "notes", "tags", "created_at", "updated_at",
}

// WriteCSV writes recs with a header row. Tags are joined with ';'. An empty
// slice writes nothing.
func WriteCSV(w io.Writer, recs []ArchiveRecord) error {
	if len(recs) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		err := cw.Write([]string{
			r.ID,
			r.Title,
			r.Content,
			string(r.Verdict),
			strconv.Itoa(r.RiskScore),
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			string(r.ContentType),
			r.Narrative,
			r.Notes,
			strings.Join(r.Tags, ";"),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type TrendPoint struct {
	Period           time.Time `json:"period"`
	Total            int       `json:"total"`
	FalseInformation int       `json:"false_information"`
	Misleading       int       `json:"misleading"`
	AverageRiskScore float64   `json:"average_risk_score"`
}

// ValidGranularity reports whether g is a supported trend bucket.
func ValidGranularity(g string) bool {
	switch g {
	case "hour", "day", "week":
		return true
	}
	return false
}

// Trends buckets analyses created at or after since by hour, day or week.
func (s *ArchiveStore) Trends(ctx context.Context, since time.Time, granularity string) ([]TrendPoint, error) {
	if !ValidGranularity(granularity) {
		return nil, fmt.Errorf("unsupported granularity %q", granularity)
	}
	if !s.Available() {
		return nil, ErrUnavailable
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			date_trunc($1, created_at) AS period,
			COUNT(*),
			COUNT(*) FILTER (WHERE verdict = $3),
			COUNT(*) FILTER (WHERE verdict = $4),
			COALESCE(AVG(risk_score), 0)
		FROM analyses WHERE created_at >= $2
		GROUP BY period ORDER BY period
	`, granularity, since, string(models.VerdictFalse), string(models.VerdictMisleading))
	if err != nil {
		return nil, fmt.Errorf("archive trends: %w", err)
	}
	defer rows.Close()

	out := []TrendPoint{}
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Period, &p.Total, &p.FalseInformation, &p.Misleading, &p.AverageRiskScore); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		p.Period = p.Period.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// Suggestions offers search completions for query drawn from recent titles
// and content.
func (s *ArchiveStore) Suggestions(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	if !s.Available() {
		return nil, ErrUnavailable
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, content FROM analyses
		WHERE title ILIKE $1 OR content ILIKE $1
		ORDER BY created_at DESC LIMIT $2
	`, "%"+query+"%", suggestionScan)
	if err != nil {
		return nil, fmt.Errorf("search suggestions: %w", err)
	}
	defer rows.Close()

	var docs [][2]string
	for rows.Next() {
		var title, content string
		if err := rows.Scan(&title, &content); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		docs = append(docs, [2]string{title, content})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suggest(query, docs, limit), nil
}

// suggest collects titles containing query and content words of at least
// four characters containing it, case-insensitively and without repeats.
func suggest(query string, docs [][2]string, limit int) []string {
	if limit <= 0 {
		limit = defaultSuggestion
	}
	q := strings.ToLower(query)
	seen := map[string]bool{}
	out := []string{}
	add := func(s string) bool {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
		return len(out) >= limit
	}
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d[0]), q) && add(d[0]) {
			return out
		}
		for _, w := range strings.Fields(strings.ToLower(d[1])) {
			w = strings.Trim(w, `.,;:!?"'()[]`)
			if len(w) >= minSuggestWord && strings.Contains(w, q) && add(w) {
				return out
			}
		}
	}
	return out
}
