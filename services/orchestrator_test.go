package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthlens/models"
)

type stubURLs struct {
	content models.URLContent
	calls   atomic.Int32
}

func (s *stubURLs) ExtractURLContent(_ context.Context, rawURL string) models.URLContent {
	s.calls.Add(1)
	c := s.content
	c.URL = rawURL
	return c
}

type panickingDocuments struct{}

func (panickingDocuments) ExtractText(context.Context, string, string) string {
	panic("reader exploded")
}

type orchestratorFixture struct {
	facts *stubFactChecker
	urls  *stubURLs
	ai    *stubInference
	deps  Dependencies
}

func newFixture() *orchestratorFixture {
	lex := MustDefaultLexicon()
	f := &orchestratorFixture{
		facts: &stubFactChecker{},
		urls:  &stubURLs{},
	}
	f.deps = Dependencies{
		Lexicon: lex,
		Text:    NewTextSignalAnalyzer(lex, f.facts, nil, nil),
		URLs:    f.urls,
		Images:  NewImageForensicsAnalyzer(nil, nil, nil, nil, nil, nil),
	}
	return f
}

func (f *orchestratorFixture) build() *Orchestrator {
	o := NewOrchestrator(f.deps)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }
	return o
}

func textRequest(text string) models.AnalysisRequest {
	return models.AnalysisRequest{
		ContentType:      models.ContentText,
		Text:             text,
		IncludeSources:   true,
		IncludeReporting: true,
	}
}

func TestAnalyzeTextFalseLexicon(t *testing.T) {
	f := newFixture()
	res, err := f.build().Analyze(context.Background(), textRequest("This is a hoax and a conspiracy"))
	require.NoError(t, err)

	assert.Equal(t, models.VerdictFalse, res.Verdict)
	assert.Equal(t, 95, res.RiskScore)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Contains(t, res.Tactics, "Conspiracy Theory")
	assert.Len(t, res.ReportingContacts, 5)
	assert.NotEmpty(t, res.SourceLinks)
	assert.EqualValues(t, 1, f.facts.calls.Load())

	assert.Equal(t, models.ContentText, res.Metadata.ContentType)
	assert.Equal(t, "en", res.Metadata.Language)
	assert.Equal(t, time.UTC, res.Metadata.TimestampUTC.Location())
	assert.False(t, res.Metadata.AIAssisted)
	require.NotNil(t, res.Context)
}

func TestAnalyzeTextCherryPicking(t *testing.T) {
	res, err := newFixture().build().Analyze(context.Background(), textRequest("According to studies show this works"))
	require.NoError(t, err)

	assert.Contains(t, res.Tactics, "Cherry Picking")
	assert.Equal(t, models.VerdictUnverified, res.Verdict)
	assert.Len(t, res.ReportingContacts, 2)
}

func TestAnalyzeFlagsOffLeaveListsEmpty(t *testing.T) {
	req := textRequest("This is fake news")
	req.IncludeSources = false
	req.IncludeReporting = false

	res, err := newFixture().build().Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, res.SourceLinks)
	assert.Empty(t, res.SourceLinks)
	assert.NotNil(t, res.ReportingContacts)
	assert.Empty(t, res.ReportingContacts)
}

func TestAnalyzeInputErrors(t *testing.T) {
	o := newFixture().build()
	reqs := []models.AnalysisRequest{
		{ContentType: models.ContentText},
		{ContentType: models.ContentURL, Text: "not a url field"},
		{ContentType: models.ContentImage},
		{ContentType: models.ContentDocument, Text: "   "},
		{ContentType: "video", Text: "x"},
	}
	for _, req := range reqs {
		res, err := o.Analyze(context.Background(), req)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, ErrInvalidRequest), "%+v", req)
	}
}

func TestAnalyzeURLFetchFailure(t *testing.T) {
	f := newFixture()
	f.urls.content = models.URLContent{Title: "Error", Err: errors.New("timeout")}

	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType:      models.ContentURL,
		URL:              "https://unreachable.example",
		IncludeSources:   true,
		IncludeReporting: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictUnverified, res.Verdict)
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, "Unable to extract content from URL", res.Narrative)
	assert.Empty(t, res.Tactics)
	assert.Empty(t, res.SourceLinks)
	assert.Nil(t, res.Context)
	assert.EqualValues(t, 0, f.facts.calls.Load(), "text analysis must not run")
	assert.Len(t, res.ReportingContacts, 2)
}

func TestAnalyzeURL(t *testing.T) {
	f := newFixture()
	f.urls.content = models.URLContent{Title: "Shock report", Content: "Breaking: the moon landing was a hoax"}

	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType:      models.ContentURL,
		URL:              "https://news.example/moon",
		IncludeReporting: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictFalse, res.Verdict)
	assert.True(t, strings.HasPrefix(res.Narrative, "URL: https://news.example/moon\nTitle: Shock report\n\n"))
	assert.Contains(t, res.Tactics, "False Urgency")
	assert.Equal(t, "Shock report", res.SourceTitle)
	assert.Len(t, res.ReportingContacts, 5)
}

func TestAnalyzeURLThroughDefaultTracker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>Clinic</title></head><body><p>Doctors call the cure a hoax.</p></body></html>"))
	}))
	defer srv.Close()

	f := newFixture()
	f.deps.URLs = nil
	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType: models.ContentURL,
		URL:         srv.URL,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictFalse, res.Verdict)
	assert.Equal(t, "Clinic", res.SourceTitle)
	assert.True(t, strings.HasPrefix(res.Narrative, "URL: "+srv.URL+"\nTitle: Clinic\n\n"))
}

func TestAnalyzeManipulatedImage(t *testing.T) {
	f := newFixture()
	f.deps.Images = NewImageForensicsAnalyzer(nil, stubSignals{signals: models.ManipulationSignals{
		DuplicateRatio: 0.15, LightingConsistency: 0.6, EdgeConsistency: 0.8,
	}}, nil, nil, nil, nil)

	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType:      models.ContentImage,
		FilePath:         tempImage(t),
		IncludeReporting: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictFalse, res.Verdict)
	assert.Equal(t, 90, res.RiskScore)
	assert.Equal(t, 0.85, res.Confidence)
	assert.True(t, res.ManipulationDetected)
	assert.ElementsMatch(t, []string{"Image manipulation", "Digital alteration"}, res.Tactics)
	assert.Equal(t, narrativeManipulated, res.Narrative)
	assert.EqualValues(t, 0, f.facts.calls.Load(), "no OCR text, no text analysis")
	assert.Len(t, res.ReportingContacts, 5)
}

func TestAnalyzeImageSurvivesPanickingSignals(t *testing.T) {
	f := newFixture()
	f.deps.Images = NewImageForensicsAnalyzer(nil, panickingSignals{}, nil, nil, nil, nil)

	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType:      models.ContentImage,
		FilePath:         tempImage(t),
		IncludeReporting: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictUnverified, res.Verdict)
	assert.Equal(t, 30, res.RiskScore)
	assert.Equal(t, 0.40, res.Confidence)
	assert.Equal(t, narrativeImageUnknown, res.Narrative)
	assert.Len(t, res.ReportingContacts, 2)
}

func TestAnalyzeImageWithOCRText(t *testing.T) {
	f := newFixture()
	f.deps.Images = NewImageForensicsAnalyzer(nil, nil, stubOCR{res: models.OCRResult{Text: "Shocking hoax!"}}, nil, nil, nil)

	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType: models.ContentImage,
		FilePath:    tempImage(t),
	})
	require.NoError(t, err)

	// image placeholder is 40/0.50, the OCR text scores 95/0.85
	assert.Equal(t, models.VerdictUnverified, res.Verdict)
	assert.Equal(t, 95, res.RiskScore)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, narrativeOCRPending+"\n\nText Analysis: "+narrativeFalse, res.Narrative)
	assert.Contains(t, res.Tactics, "Emotional Language")
	assert.Equal(t, "Shocking hoax!", res.ExtractedText)
	assert.EqualValues(t, 1, f.facts.calls.Load())
}

func TestAnalyzeImageMissingFileIsError(t *testing.T) {
	res, err := newFixture().build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType: models.ContentImage,
		FilePath:    "/nonexistent/upload.png",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerdictError, res.Verdict)
	assert.Equal(t, 0, res.RiskScore)
	assert.True(t, strings.HasPrefix(res.Narrative, "Analysis failed: "))
}

func TestAnalyzeDocument(t *testing.T) {
	path := writeTemp(t, "claim.txt", []byte("The report was taken out of context."))

	res, err := newFixture().build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType: models.ContentDocument,
		FilePath:    path,
		MimeType:    MimePlain,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerdictMisleading, res.Verdict)
	assert.Equal(t, 65, res.RiskScore)
	assert.Equal(t, "The report was taken out of context.", res.ExtractedText)
}

func TestAnalyzeDocumentUnsupportedType(t *testing.T) {
	path := writeTemp(t, "sheet.xls", []byte("cells"))

	res, err := newFixture().build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType: models.ContentDocument,
		FilePath:    path,
		MimeType:    "application/vnd.ms-excel",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerdictUnverified, res.Verdict)
	assert.Equal(t, DocumentNotSupported, res.ExtractedText)
}

func TestAnalyzePanicBecomesErrorResult(t *testing.T) {
	f := newFixture()
	f.deps.Documents = panickingDocuments{}

	res, err := f.build().Analyze(context.Background(), models.AnalysisRequest{
		ContentType:      models.ContentDocument,
		FilePath:         "/tmp/whatever.txt",
		IncludeSources:   true,
		IncludeReporting: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerdictError, res.Verdict)
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, "Analysis failed: reader exploded", res.Narrative)
	assert.Empty(t, res.SourceLinks)
	assert.Len(t, res.ReportingContacts, 2)
	assert.Equal(t, models.ContentDocument, res.Metadata.ContentType)
}

func TestAnalyzeAIMode(t *testing.T) {
	f := newFixture()
	f.ai = &stubInference{out: "```json\n" + `{"verdict": "MISLEADING", "risk_score": 70, "confidence": 80,
		"ai_analysis": "Selective framing.", "manipulation_tactics": ["Framing"],
		"source_links": [{"url": "https://who.int", "name": "WHO"}]}` + "\n```"}
	f.deps.AI = f.ai

	req := textRequest("Vaccines are studied; according to some they work")
	req.UseAI = true
	res, err := f.build().Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.ai.calls.Load())
	assert.EqualValues(t, 0, f.facts.calls.Load())
	assert.Equal(t, models.VerdictMisleading, res.Verdict)
	assert.Equal(t, 70, res.RiskScore)
	assert.InDelta(t, 0.80, res.Confidence, 1e-9)
	assert.Equal(t, "Selective framing.", res.Narrative)
	assert.Contains(t, res.Tactics, "Framing")
	assert.Contains(t, res.Tactics, "Cherry Picking")
	assert.Equal(t, []models.SourceLink{{Name: "WHO", URL: "https://who.int"}}, res.SourceLinks)
	assert.Len(t, res.ReportingContacts, 5)
	assert.True(t, res.Metadata.AIAssisted)
}

func TestAnalyzeAIMalformedReplyKeepsDefaults(t *testing.T) {
	f := newFixture()
	f.ai = &stubInference{out: "I cannot help with that."}
	f.deps.AI = f.ai

	req := textRequest("Some claim")
	req.UseAI = true
	req.IncludeSources = false
	res, err := f.build().Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictUnverified, res.Verdict)
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.FactChecks)
	assert.Empty(t, res.SourceLinks)
}

func TestAnalyzeAIFailureFallsBackToLexicon(t *testing.T) {
	f := newFixture()
	f.ai = &stubInference{err: errors.New("quota exceeded")}
	f.deps.AI = f.ai
	f.deps.UseAI = true

	res, err := f.build().Analyze(context.Background(), textRequest("Total hoax"))
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.ai.calls.Load())
	assert.Equal(t, models.VerdictFalse, res.Verdict)
	assert.False(t, res.Metadata.AIAssisted)
}

func TestAnalyzeBoundsHoldForAllBranches(t *testing.T) {
	f := newFixture()
	f.urls.content = models.URLContent{Title: "t", Content: "misleading and fake and urgent"}
	f.facts.checks = []models.FactCheck{{Description: "x", Rating: "FALSE"}}
	o := f.build()

	reqs := []models.AnalysisRequest{
		textRequest("hoax conspiracy lies"),
		textRequest("plain"),
		{ContentType: models.ContentURL, URL: "https://a.example"},
		{ContentType: models.ContentImage, FilePath: tempImage(t)},
	}
	for _, req := range reqs {
		res, err := o.Analyze(context.Background(), req)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.RiskScore, 0)
		assert.LessOrEqual(t, res.RiskScore, 100)
		out := Present(res)
		assert.GreaterOrEqual(t, out.Confidence, 0)
		assert.LessOrEqual(t, out.Confidence, 100)
	}
}

func TestAnalyzeConcurrentCallsDoNotInterfere(t *testing.T) {
	f := newFixture()
	f.urls.content = models.URLContent{Title: "Daily", Content: "Experts say it was taken out of context"}
	f.deps.Images = NewImageForensicsAnalyzer(nil, stubSignals{signals: models.ManipulationSignals{
		DuplicateRatio: 0.15, LightingConsistency: 0.6, EdgeConsistency: 0.8,
	}}, nil, nil, nil, nil)
	o := f.build()
	image := tempImage(t)
	doc := writeTemp(t, "note.txt", []byte("nothing remarkable here"))

	cases := []struct {
		req     models.AnalysisRequest
		verdict models.Verdict
		risk    int
	}{
		{textRequest("This is a hoax and a conspiracy"), models.VerdictFalse, 95},
		{models.AnalysisRequest{ContentType: models.ContentURL, URL: "https://daily.example", IncludeReporting: true}, models.VerdictMisleading, 65},
		{models.AnalysisRequest{ContentType: models.ContentImage, FilePath: image, IncludeReporting: true}, models.VerdictFalse, 90},
		{models.AnalysisRequest{ContentType: models.ContentDocument, FilePath: doc, MimeType: MimePlain, IncludeReporting: true}, models.VerdictUnverified, 40},
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		c := cases[i%len(cases)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Analyze(context.Background(), c.req)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, c.verdict, res.Verdict, c.req.ContentType)
			assert.Equal(t, c.risk, res.RiskScore, c.req.ContentType)
			assert.Equal(t, c.req.ContentType, res.Metadata.ContentType)
			// callers own their result; scribbling on it must not leak into others
			for j := range res.ReportingContacts {
				res.ReportingContacts[j].Destination = "mutated"
			}
			res.Tactics = append(res.Tactics, "mutated")
		}()
	}
	wg.Wait()

	res, err := o.Analyze(context.Background(), textRequest("This is a hoax and a conspiracy"))
	require.NoError(t, err)
	require.Len(t, res.ReportingContacts, 5)
	for _, c := range res.ReportingContacts {
		assert.NotEqual(t, "mutated", c.Destination)
	}
	assert.NotContains(t, res.Tactics, "mutated")
	assert.EqualValues(t, 8, f.urls.calls.Load())
}
