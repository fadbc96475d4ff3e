package services

import (
	"go.uber.org/zap"

	"truthlens/models"
)

type TacticsDetector struct {
	lex *Lexicon
	log *zap.Logger
}

func NewTacticsDetector(lex *Lexicon, log *zap.Logger) *TacticsDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &TacticsDetector{lex: lex, log: log.Named("tactics")}
}

// Analyze reports which manipulation categories appear in text. A category is
// matched on its first hitting pattern. Failures yield an empty report.
func (d *TacticsDetector) Analyze(text string) (report models.TacticsReport) {
	report.Tactics = []string{}
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("tactic detection failed", zap.Any("panic", r))
			report = models.TacticsReport{Tactics: []string{}}
		}
	}()

	for _, category := range d.lex.tactics {
		for _, re := range category.matchers {
			if re.MatchString(text) {
				report.Tactics = append(report.Tactics, category.label)
				break
			}
		}
	}

	report.TacticCount = len(report.Tactics)
	if total := d.lex.TacticCategories(); total > 0 {
		report.ManipulationScore = float64(report.TacticCount) / float64(total)
	}
	return report
}
