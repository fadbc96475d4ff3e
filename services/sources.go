package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"truthlens/models"
)

const (
	maxWebSources       = 3
	defaultFetchTimeout = 10 * time.Second
)

// WebSearcher is the optional live search behind FindSources.
type WebSearcher interface {
	Search(ctx context.Context, text, language string) ([]SerperResult, error)
}

// SourceTracker extracts URL content and suggests authoritative references.
type SourceTracker struct {
	lex     *Lexicon
	fetcher *ContentFetcher
	search  WebSearcher
	log     *zap.Logger
}

// NewSourceTracker accepts a nil search; only curated sources are returned then.
// A nil fetcher is replaced by one with a 10s timeout.
func NewSourceTracker(lex *Lexicon, fetcher *ContentFetcher, search WebSearcher, log *zap.Logger) *SourceTracker {
	if log == nil {
		log = zap.NewNop()
	}
	if lex == nil {
		lex = MustDefaultLexicon()
	}
	if fetcher == nil {
		fetcher = NewContentFetcher(defaultFetchTimeout, log)
	}
	return &SourceTracker{lex: lex, fetcher: fetcher, search: search, log: log.Named("sources")}
}

// ExtractURLContent returns the page title and at most URLContentCap
// characters of visible text. Failures come back as title "Error" with
// empty content.
func (t *SourceTracker) ExtractURLContent(ctx context.Context, rawURL string) models.URLContent {
	return t.fetcher.ExtractURLContent(ctx, rawURL)
}

// FindSources returns curated entries whose keywords appear in text, or the
// default entries when none do, followed by a few live search hits.
func (t *SourceTracker) FindSources(ctx context.Context, text, language string) (links []models.SourceLink) {
	links = []models.SourceLink{}
	defer func() {
		if r := recover(); r != nil {
			t.log.Warn("source discovery failed", zap.Any("panic", r))
			links = []models.SourceLink{}
		}
	}()

	lower := strings.ToLower(text)
	for _, s := range t.lex.sources {
		if containsAny(lower, lowerAll(s.Keywords)) {
			links = append(links, sourceLink(s))
		}
	}
	if len(links) == 0 {
		for _, s := range t.lex.sources {
			if s.Default {
				links = append(links, sourceLink(s))
			}
		}
	}

	if t.search == nil {
		return links
	}
	results, err := t.search.Search(ctx, text, language)
	if err != nil {
		t.log.Debug("web search skipped", zap.Error(err))
		return links
	}
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		seen[l.URL] = true
	}
	added := 0
	for _, r := range results {
		if added == maxWebSources {
			break
		}
		if r.Link == "" || seen[r.Link] {
			continue
		}
		seen[r.Link] = true
		links = append(links, models.SourceLink{Name: r.Title, Description: r.Snippet, URL: r.Link})
		added++
	}
	return links
}

func sourceLink(s curatedSource) models.SourceLink {
	return models.SourceLink{Name: s.Name, Description: s.Description, URL: s.URL}
}
