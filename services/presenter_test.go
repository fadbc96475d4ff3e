package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"truthlens/models"
)

func TestDisplayConfidence(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.856, 86},
		{0.5, 50},
		{1, 100},
		{1.4, 1},
		{73.6, 74},
		{250, 100},
		{-0.2, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DisplayConfidence(c.in), "confidence %v", c.in)
	}
}

func TestCapSentences(t *testing.T) {
	assert.Equal(t, "One. Two. Three.", CapSentences("One. Two. Three. Four. Five.", 3))
	assert.Equal(t, "One. Two. Three.", CapSentences("One. Two. Three.", 3))
	assert.Equal(t, "No full stop here", CapSentences("No full stop here", 3))
}

func TestPresent(t *testing.T) {
	res := &models.AnalysisResult{
		Verdict:    models.VerdictFalse,
		RiskScore:  140,
		Confidence: 0.85,
		Narrative:  "A. B. C. D",
		FactChecks: []models.FactCheck{
			{Rating: "False"},
			{},
		},
		SourceLinks: []models.SourceLink{
			{URL: "https://example.org"},
			{},
		},
		ReportingContacts: []models.ReportingContact{{Description: "Report to Facebook", Destination: "report@facebook.com"}},
	}

	out := Present(res)
	assert.Equal(t, 100, out.RiskScore)
	assert.Equal(t, 85, out.Confidence)
	assert.Equal(t, "A. B. C.", out.Narrative)
	assert.NotNil(t, out.Tactics)
	assert.Equal(t, []models.FactCheck{{Description: "False", Rating: "False"}}, out.FactChecks)
	assert.Equal(t, []models.SourceLink{{Name: "https://example.org", URL: "https://example.org"}}, out.SourceLinks)
	assert.Len(t, out.ReportingContacts, 1)
}
