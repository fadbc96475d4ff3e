package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type DomainStats struct {
	Domain         string    `json:"domain"`
	TotalAnalyses  int       `json:"total_analyses"`
	AvgScore       float64   `json:"avg_score"`
	Reputation     string    `json:"verdict"`
	LastAnalyzedAt time.Time `json:"last_analyzed_at"`
}

// Reputation reads an average risk score: low risk is reliable.
func Reputation(avgRisk float64) string {
	switch RiskLevel(int(avgRisk + 0.5)) {
	case "high":
		return "unreliable"
	case "medium":
		return "questionable"
	default:
		return "reliable"
	}
}

// DomainStore keeps a running risk average per source domain.
type DomainStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewDomainStore(db *sql.DB, log *zap.Logger) *DomainStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DomainStore{db: db, log: log.Named("domains")}
}

func (s *DomainStore) Available() bool {
	return s != nil && s.db != nil
}

// Record adds one analysis of domain with the given risk score.
func (s *DomainStore) Record(ctx context.Context, domain string, score int) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if domain == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO domain_stats (domain, total_analyses, sum_scores, avg_score, last_analyzed_at)
		VALUES ($1, 1, $2::INTEGER, $2::FLOAT, NOW())
		ON CONFLICT (domain) DO UPDATE SET
			total_analyses   = domain_stats.total_analyses + 1,
			sum_scores       = domain_stats.sum_scores + $2::INTEGER,
			avg_score        = (domain_stats.sum_scores + $2)::float / (domain_stats.total_analyses + 1),
			last_analyzed_at = NOW()
	`, domain, score)
	if err != nil {
		return fmt.Errorf("update stats for %s: %w", domain, err)
	}
	s.log.Debug("domain stats updated", zap.String("domain", domain), zap.Int("score", score))
	return nil
}

func (s *DomainStore) Get(ctx context.Context, domain string) (DomainStats, error) {
	if !s.Available() {
		return DomainStats{}, ErrUnavailable
	}
	var d DomainStats
	err := s.db.QueryRowContext(ctx, `
		SELECT domain, total_analyses, avg_score, last_analyzed_at
		FROM domain_stats WHERE domain = $1
	`, domain).Scan(&d.Domain, &d.TotalAnalyses, &d.AvgScore, &d.LastAnalyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DomainStats{}, ErrNotFound
	}
	if err != nil {
		return DomainStats{}, fmt.Errorf("get domain %s: %w", domain, err)
	}
	d.Reputation = Reputation(d.AvgScore)
	return d, nil
}

// Top returns the most analysed domains.
func (s *DomainStore) Top(ctx context.Context, limit int) ([]DomainStats, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, total_analyses, avg_score, last_analyzed_at
		FROM domain_stats
		ORDER BY total_analyses DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	list := []DomainStats{}
	for rows.Next() {
		var d DomainStats
		if err := rows.Scan(&d.Domain, &d.TotalAnalyses, &d.AvgScore, &d.LastAnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		d.Reputation = Reputation(d.AvgScore)
		list = append(list, d)
	}
	return list, rows.Err()
}
