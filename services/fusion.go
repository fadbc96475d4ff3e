package services

import (
	"fmt"

	"truthlens/models"
)

// emptyTextSignal stands in for the text side of an image without OCR text.
func emptyTextSignal() models.TextSignal {
	return models.TextSignal{Verdict: models.VerdictUnverified, FactChecks: []models.FactCheck{}}
}

// FuseText passes the text signal through and attaches the detected tactics.
func FuseText(sig models.TextSignal, tactics models.TacticsReport) *models.AnalysisResult {
	return &models.AnalysisResult{
		Verdict:           sig.Verdict,
		RiskScore:         sig.RiskScore,
		Confidence:        sig.Confidence,
		Narrative:         sig.Narrative,
		Tactics:           nonNilStrings(tactics.Tactics),
		FactChecks:        nonNilFactChecks(sig.FactChecks),
		SourceLinks:       []models.SourceLink{},
		ReportingContacts: []models.ReportingContact{},
	}
}

// FuseImage takes the stronger of the image and OCR-text scores.
func FuseImage(img models.ImageAnalysis, sig models.TextSignal, tactics models.TacticsReport) *models.AnalysisResult {
	verdict := img.Verdict
	if verdict == "" {
		verdict = sig.Verdict
	}

	narrative := img.Narrative
	if sig.Narrative != "" {
		narrative = fmt.Sprintf("%s\n\nText Analysis: %s", img.Narrative, sig.Narrative)
	}

	res := &models.AnalysisResult{
		Verdict:              verdict,
		RiskScore:            max(img.RiskScore, sig.RiskScore),
		Confidence:           max(img.Confidence, sig.Confidence),
		Narrative:            narrative,
		Tactics:              unionStrings(img.Tactics, tactics.Tactics),
		FactChecks:           append(nonNilFactChecks(img.FactChecks), sig.FactChecks...),
		SourceLinks:          []models.SourceLink{},
		ReportingContacts:    []models.ReportingContact{},
		ExtractedText:        img.ExtractedText,
		ManipulationDetected: img.ManipulationDetected,
		ReverseSearchResults: img.ReverseSearchResults,
	}
	meta := img.Metadata
	res.ImageMetadata = &meta
	return res
}

// FuseURL is the text rule with the page URL and title leading the narrative.
func FuseURL(content models.URLContent, sig models.TextSignal, tactics models.TacticsReport) *models.AnalysisResult {
	res := FuseText(sig, tactics)
	res.Narrative = fmt.Sprintf("URL: %s\nTitle: %s\n\n%s", content.URL, content.Title, sig.Narrative)
	res.SourceTitle = content.Title
	return res
}

// EmptyURLResult is returned when nothing could be extracted from the page.
func EmptyURLResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Verdict:           models.VerdictUnverified,
		RiskScore:         0,
		Confidence:        0,
		Narrative:         "Unable to extract content from URL",
		Tactics:           []string{},
		FactChecks:        []models.FactCheck{},
		SourceLinks:       []models.SourceLink{},
		ReportingContacts: []models.ReportingContact{},
	}
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFactChecks(f []models.FactCheck) []models.FactCheck {
	out := make([]models.FactCheck, 0, len(f))
	return append(out, f...)
}
