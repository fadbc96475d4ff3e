package services

import (
	"math"
	"strings"

	"truthlens/models"
)

const maxDisplaySentences = 3

// Present converts a result into the shape the frontend renders.
func Present(res *models.AnalysisResult) models.DisplayResult {
	out := models.DisplayResult{
		Verdict:              res.Verdict,
		RiskScore:            clampScore(res.RiskScore),
		Confidence:           DisplayConfidence(res.Confidence),
		Narrative:            CapSentences(res.Narrative, maxDisplaySentences),
		Tactics:              nonNilStrings(res.Tactics),
		FactChecks:           make([]models.FactCheck, 0, len(res.FactChecks)),
		SourceLinks:          make([]models.SourceLink, 0, len(res.SourceLinks)),
		ReportingContacts:    make([]models.ReportingContact, 0, len(res.ReportingContacts)),
		Metadata:             res.Metadata,
		ExtractedText:        res.ExtractedText,
		ManipulationDetected: res.ManipulationDetected,
		ReverseSearchResults: res.ReverseSearchResults,
	}

	for _, fc := range res.FactChecks {
		if fc.Description == "" {
			fc.Description = fc.Rating
		}
		if fc.Description != "" {
			out.FactChecks = append(out.FactChecks, fc)
		}
	}
	for _, s := range res.SourceLinks {
		if s.Name == "" {
			s.Name = s.URL
		}
		if s.Name == "" && s.Description == "" {
			continue
		}
		out.SourceLinks = append(out.SourceLinks, s)
	}
	out.ReportingContacts = append(out.ReportingContacts, res.ReportingContacts...)
	return out
}

// DisplayConfidence turns a fraction into a percentage. Values above 1 are
// taken as percentages already.
func DisplayConfidence(c float64) int {
	if math.IsNaN(c) {
		return 0
	}
	if c <= 1 {
		c *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, c))))
}

// CapSentences keeps the first n sentences, splitting on ". ".
func CapSentences(text string, n int) string {
	parts := strings.Split(text, ". ")
	if len(parts) <= n {
		return text
	}
	return strings.Join(parts[:n], ". ") + "."
}
