package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthlens/models"
)

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, "high", RiskLevel(80))
	assert.Equal(t, "high", RiskLevel(100))
	assert.Equal(t, "medium", RiskLevel(60))
	assert.Equal(t, "medium", RiskLevel(79))
	assert.Equal(t, "low", RiskLevel(59))
	assert.Equal(t, "low", RiskLevel(0))
}

func TestNewRecord(t *testing.T) {
	ts := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	res := &models.AnalysisResult{
		Verdict:    models.VerdictFalse,
		RiskScore:  95,
		Confidence: 0.85,
		Narrative:  "Contains known false claims.",
		Metadata:   models.Metadata{ContentType: models.ContentText, TimestampUTC: ts},
	}

	rec, err := NewRecord(res, strings.Repeat("x", 600))
	require.NoError(t, err)

	_, err = uuid.Parse(rec.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Analysis 2026-05-04 10:30:00", rec.Title)
	assert.Equal(t, contentExcerpt+3, len(rec.Content))
	assert.Equal(t, models.VerdictFalse, rec.Verdict)
	assert.Equal(t, models.ContentText, rec.ContentType)
	assert.Equal(t, ts, rec.CreatedAt)
	assert.Contains(t, string(rec.Result), `"verdict":"FALSE INFORMATION"`)
}

func TestArchiveFilterWhere(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := ArchiveFilter{
		Search:      "vaccine",
		RiskLevel:   "HIGH",
		Verdict:     "false_information",
		ContentType: "URL",
		From:        from,
	}

	where, args := f.where()
	assert.Equal(t,
		" WHERE (narrative ILIKE $1 OR content ILIKE $1) AND risk_score >= 80 AND verdict = $2 AND analysis_type = $3 AND created_at >= $4",
		where)
	assert.Equal(t, []any{"%vaccine%", "FALSE INFORMATION", "url", from}, args)
}

func TestArchiveFilterEmpty(t *testing.T) {
	where, args := ArchiveFilter{}.where()
	assert.Empty(t, where)
	assert.Empty(t, args)

	limit, offset := ArchiveFilter{Limit: 1000, Offset: -3}.page()
	assert.Equal(t, maxListLimit, limit)
	assert.Equal(t, 0, offset)

	limit, _ = ArchiveFilter{}.page()
	assert.Equal(t, defaultListLimit, limit)
}

func TestStatsWindow(t *testing.T) {
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.AddDate(0, 0, -7), StatsWindow(now, "7d"))
	assert.Equal(t, now.AddDate(-1, 0, 0), StatsWindow(now, "1y"))
	assert.True(t, StatsWindow(now, "all").IsZero())
}

func TestStoresWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	archive := NewArchiveStore(nil, nil)
	assert.False(t, archive.Available())
	assert.True(t, errors.Is(archive.Save(ctx, ArchiveRecord{}), ErrUnavailable))
	_, err := archive.List(ctx, ArchiveFilter{})
	assert.True(t, errors.Is(err, ErrUnavailable))
	_, err = archive.Stats(ctx, time.Time{})
	assert.True(t, errors.Is(err, ErrUnavailable))

	domains := NewDomainStore(nil, nil)
	assert.True(t, errors.Is(domains.Record(ctx, "example.com", 50), ErrUnavailable))
	_, err = domains.Top(ctx, 5)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestReputation(t *testing.T) {
	assert.Equal(t, "unreliable", Reputation(85))
	assert.Equal(t, "questionable", Reputation(59.6))
	assert.Equal(t, "reliable", Reputation(30))
}

func TestOpenWithoutURL(t *testing.T) {
	db, err := Open(context.Background(), "", nil)
	assert.NoError(t, err)
	assert.Nil(t, db)
}
