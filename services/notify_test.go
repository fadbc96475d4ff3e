package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"truthlens/models"
)

func sampleReport() models.Report {
	return models.Report{
		ID:             "report_1700000000_ab12cd34",
		ContentID:      "analysis-42",
		ContentType:    "url",
		ReportType:     "misinformation",
		Priority:       "high",
		Status:         models.ReportSubmitted,
		ReporterName:   "Dana",
		ReporterEmail:  "dana@example.org",
		AdditionalInfo: "Shared widely on social media",
		Evidence:       []string{"https://example.org/screenshot.png"},
		CreatedAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestReportBody(t *testing.T) {
	body := ReportBody(sampleReport())
	assert.Contains(t, body, "Report ID: report_1700000000_ab12cd34\n")
	assert.Contains(t, body, "Content ID: analysis-42\n")
	assert.Contains(t, body, "Report Type: misinformation\n")
	assert.Contains(t, body, "Priority: high\n")
	assert.Contains(t, body, "Reporter: Dana (dana@example.org)\n")
	assert.Contains(t, body, "Additional Info: Shared widely on social media\n")
	assert.Contains(t, body, "Evidence:\n  - https://example.org/screenshot.png\n")
}

func TestReportBodyAnonymous(t *testing.T) {
	r := sampleReport()
	r.ReporterName, r.ReporterEmail, r.AdditionalInfo, r.Evidence = "", "", "", nil

	body := ReportBody(r)
	assert.Contains(t, body, "Reporter: -\n")
	assert.Contains(t, body, "Additional Info: -\n")
	assert.Contains(t, body, "Evidence: -\n")
}

func TestReportMessage(t *testing.T) {
	m, err := reportMessage("noreply@truthlens.com", "admin@truthlens.com", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{"New Report Submitted: report_1700000000_ab12cd34"}, m.GetGenHeader(mail.HeaderSubject))

	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@truthlens.com"}, rcpts)

	_, err = reportMessage("noreply@truthlens.com", "not an address", sampleReport())
	assert.Error(t, err)
}

func TestSMTPNotifierUnconfigured(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{To: "admin@truthlens.com"}, nil)
	assert.False(t, n.Configured())
	err := n.NotifyReport(context.Background(), sampleReport())
	assert.True(t, errors.Is(err, ErrCollaboratorUnavailable))

	n = NewSMTPNotifier(SMTPConfig{Host: "smtp.example.org", Username: "bot@example.org", To: "admin@truthlens.com"}, nil)
	assert.True(t, n.Configured())
	assert.Equal(t, 587, n.cfg.Port)
	assert.Equal(t, "bot@example.org", n.cfg.From)
}
