package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable is returned by stores opened without a database.
	ErrUnavailable = errors.New("database not configured")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		content       TEXT NOT NULL DEFAULT '',
		verdict       TEXT NOT NULL,
		risk_score    INTEGER NOT NULL DEFAULT 0,
		confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
		analysis_type TEXT NOT NULL,
		narrative     TEXT NOT NULL DEFAULT '',
		result        JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS domain_stats (
		domain           TEXT PRIMARY KEY,
		total_analyses   INTEGER DEFAULT 0,
		sum_scores       INTEGER DEFAULT 0,
		avg_score        FLOAT   DEFAULT 0,
		last_analyzed_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`ALTER TABLE analyses ADD COLUMN IF NOT EXISTS notes TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE analyses ADD COLUMN IF NOT EXISTS tags TEXT[] NOT NULL DEFAULT '{}'`,
	`CREATE TABLE IF NOT EXISTS reports (
		id                TEXT PRIMARY KEY,
		content_id        TEXT NOT NULL,
		content_type      TEXT NOT NULL,
		report_type       TEXT NOT NULL,
		priority          TEXT NOT NULL DEFAULT 'medium',
		status            TEXT NOT NULL DEFAULT 'submitted',
		reporter_name     TEXT NOT NULL DEFAULT '',
		reporter_email    TEXT NOT NULL DEFAULT '',
		additional_info   TEXT NOT NULL DEFAULT '',
		evidence          TEXT[] NOT NULL DEFAULT '{}',
		resolution        TEXT NOT NULL DEFAULT '',
		assigned_to       TEXT NOT NULL DEFAULT '',
		escalation_reason TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS reports_status_priority_idx ON reports (status, priority)`,
}

// Open connects to PostgreSQL and creates the tables. An empty url yields
// (nil, nil); the stores then answer ErrUnavailable.
func Open(ctx context.Context, url string, log *zap.Logger) (*sql.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("database")
	if url == "" {
		log.Warn("DB_URL not set, running without database")
		return nil, nil
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("connected to postgres")
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
