package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"truthlens/metrics"
	"truthlens/models"
)

const (
	narrativeFalse      = "This content contains indicators of false information based on keyword analysis."
	narrativeMisleading = "This content may be misleading based on keyword analysis."
	narrativeUnverified = "Unable to determine accuracy with current analysis methods."
)

var baseRisk = map[models.Verdict]int{
	models.VerdictFalse:      85,
	models.VerdictMisleading: 65,
	models.VerdictUnverified: 40,
	models.VerdictTrue:       15,
	models.VerdictError:      0,
}

// TextSignalAnalyzer classifies text with the false/misleading lexicons and
// scores it, adjusted by whatever fact checks the corpus returns.
type TextSignalAnalyzer struct {
	lex     *Lexicon
	facts   FactChecker
	metrics *metrics.Recorder
	log     *zap.Logger
}

// NewTextSignalAnalyzer accepts a nil facts; the evidence list is then always empty.
func NewTextSignalAnalyzer(lex *Lexicon, facts FactChecker, rec *metrics.Recorder, log *zap.Logger) *TextSignalAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &TextSignalAnalyzer{lex: lex, facts: facts, metrics: rec, log: log.Named("text")}
}

func (a *TextSignalAnalyzer) Analyze(ctx context.Context, text, language string) models.TextSignal {
	verdict, confidence, narrative := a.classify(text)
	checks := a.factChecks(ctx, text, language)

	return models.TextSignal{
		Verdict:    verdict,
		RiskScore:  RiskScore(verdict, confidence, checks),
		Confidence: confidence,
		Narrative:  narrative,
		FactChecks: checks,
	}
}

// classify checks the false lexicon before the misleading one; first hit wins.
func (a *TextSignalAnalyzer) classify(text string) (models.Verdict, float64, string) {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, a.lex.falseMarkers):
		return models.VerdictFalse, 0.85, narrativeFalse
	case containsAny(lower, a.lex.misleadingMarkers):
		return models.VerdictMisleading, 0.70, narrativeMisleading
	default:
		return models.VerdictUnverified, 0.50, narrativeUnverified
	}
}

func (a *TextSignalAnalyzer) factChecks(ctx context.Context, text, language string) []models.FactCheck {
	if a.facts == nil {
		return []models.FactCheck{}
	}
	checks, err := a.facts.Search(ctx, text, language)
	if err != nil {
		if !errors.Is(err, ErrCollaboratorUnavailable) {
			a.log.Warn("fact check lookup failed", zap.Error(err))
			a.metrics.CollaboratorFailed("factcheck")
		}
		return []models.FactCheck{}
	}
	if checks == nil {
		return []models.FactCheck{}
	}
	return checks
}

// RiskScore maps a verdict to 0..100. The fact-check adjustment looks for the
// literal tokens "FALSE" then "TRUE" in the serialized evidence list; it is
// case sensitive and matches substrings anywhere in the payload.
func RiskScore(verdict models.Verdict, confidence float64, checks []models.FactCheck) int {
	score := baseRisk[verdict]

	if confidence > 0.8 {
		score += 10
	} else if confidence < 0.5 {
		score -= 10
	}

	if len(checks) > 0 {
		serialized, err := json.Marshal(checks)
		if err == nil {
			evidence := string(serialized)
			if strings.Contains(evidence, "FALSE") {
				score += 15
			} else if strings.Contains(evidence, "TRUE") {
				score -= 15
			}
		}
	}

	return clampScore(score)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
