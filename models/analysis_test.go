package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	cases := map[string]Verdict{
		"FALSE INFORMATION": VerdictFalse,
		"false_information": VerdictFalse,
		" misleading ":      VerdictMisleading,
		"TRUE":              VerdictTrue,
		"Unverified":        VerdictUnverified,
	}
	for in, want := range cases {
		got, ok := ParseVerdict(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseVerdict("PROBABLY")
	assert.False(t, ok)
}

func TestPayloadFollowsContentType(t *testing.T) {
	req := AnalysisRequest{ContentType: ContentURL, Text: "ignored", URL: "https://example.com"}
	assert.Equal(t, "https://example.com", req.Payload())

	req.ContentType = ContentDocument
	req.FilePath = "uploads/a.pdf"
	assert.Equal(t, "uploads/a.pdf", req.Payload())
}

func TestErrorResultIsZeroed(t *testing.T) {
	res := ErrorResult("boom")
	assert.Equal(t, VerdictError, res.Verdict)
	assert.Zero(t, res.RiskScore)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, "boom", res.Narrative)
	assert.Empty(t, res.Tactics)
}
