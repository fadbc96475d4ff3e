package services

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"truthlens/models"
)

const (
	sentimentPositive = "positive"
	sentimentNegative = "negative"
	sentimentNeutral  = "neutral"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}'-]+`)

// ContextAnalyzer produces a supplementary trend and sentiment estimate.
// It never influences the verdict.
type ContextAnalyzer struct {
	lex *Lexicon
	log *zap.Logger
}

func NewContextAnalyzer(lex *Lexicon, log *zap.Logger) *ContextAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContextAnalyzer{lex: lex, log: log.Named("context")}
}

func NeutralContext() models.ContextSignal {
	return models.ContextSignal{Trends: []string{}, Sentiment: sentimentNeutral, ContextScore: 0.5}
}

func (a *ContextAnalyzer) Analyze(text, language string) (sig models.ContextSignal) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("context analysis failed", zap.Any("panic", r), zap.String("language", language))
			sig = NeutralContext()
		}
	}()

	lower := strings.ToLower(text)
	sig = NeutralContext()

	for _, topic := range a.lex.topics {
		if containsAny(lower, lowerAll(topic.Keywords)) {
			sig.Trends = append(sig.Trends, topic.Name)
		}
	}

	var pos, neg int
	for _, w := range wordRe.FindAllString(lower, -1) {
		if containsWord(a.lex.positive, w) {
			pos++
		}
		if containsWord(a.lex.negative, w) {
			neg++
		}
	}

	switch {
	case pos > neg:
		sig.Sentiment = sentimentPositive
		sig.ContextScore = 0.7
	case neg > pos:
		sig.Sentiment = sentimentNegative
		sig.ContextScore = 0.3
	}
	return sig
}

func containsWord(list []string, w string) bool {
	for _, item := range list {
		if item == w {
			return true
		}
	}
	return false
}
