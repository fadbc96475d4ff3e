package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"truthlens/metrics"
	"truthlens/models"
)

type URLExtractor interface {
	ExtractURLContent(ctx context.Context, rawURL string) models.URLContent
}

type SourceFinder interface {
	FindSources(ctx context.Context, text, language string) []models.SourceLink
}

type ImageAnalyzer interface {
	AnalyzeFile(ctx context.Context, path, language string) (models.ImageAnalysis, error)
}

type DocumentReader interface {
	ExtractText(ctx context.Context, path, declared string) string
}

// Dependencies wires the orchestrator. Nil analyzers are replaced with
// defaults built on the lexicon; a nil AI client disables AI mode.
type Dependencies struct {
	Lexicon   *Lexicon
	Text      *TextSignalAnalyzer
	Tactics   *TacticsDetector
	Context   *ContextAnalyzer
	URLs      URLExtractor
	Sources   SourceFinder
	Images    ImageAnalyzer
	Documents DocumentReader
	AI        InferenceClient
	// UseAI turns AI mode on for every text request, not only those asking for it.
	UseAI   bool
	Metrics *metrics.Recorder
	Log     *zap.Logger
}

// Orchestrator routes a request to its branch and fuses the partial results.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	lex       *Lexicon
	text      *TextSignalAnalyzer
	tactics   *TacticsDetector
	context   *ContextAnalyzer
	urls      URLExtractor
	sources   SourceFinder
	images    ImageAnalyzer
	documents DocumentReader
	ai        InferenceClient
	useAI     bool
	metrics   *metrics.Recorder
	log       *zap.Logger
	now       func() time.Time
}

func NewOrchestrator(d Dependencies) *Orchestrator {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	lex := d.Lexicon
	if lex == nil {
		lex = MustDefaultLexicon()
	}

	o := &Orchestrator{
		lex:       lex,
		text:      d.Text,
		tactics:   d.Tactics,
		context:   d.Context,
		urls:      d.URLs,
		sources:   d.Sources,
		images:    d.Images,
		documents: d.Documents,
		ai:        d.AI,
		useAI:     d.UseAI,
		metrics:   d.Metrics,
		log:       log.Named("orchestrator"),
		now:       time.Now,
	}
	if o.text == nil {
		o.text = NewTextSignalAnalyzer(lex, nil, d.Metrics, log)
	}
	if o.tactics == nil {
		o.tactics = NewTacticsDetector(lex, log)
	}
	if o.context == nil {
		o.context = NewContextAnalyzer(lex, log)
	}
	if o.urls == nil || o.sources == nil {
		tracker := NewSourceTracker(lex, nil, nil, log)
		if o.urls == nil {
			o.urls = tracker
		}
		if o.sources == nil {
			o.sources = tracker
		}
	}
	if o.images == nil {
		o.images = NewImageForensicsAnalyzer(NewExifReader(log), NewPixelAnalyzer(), nil, nil, d.Metrics, log)
	}
	if o.documents == nil {
		o.documents = NewDocumentExtractor(d.Metrics, log)
	}
	return o
}

// textOutcome is what the text/context/tactics fan-out produces.
type textOutcome struct {
	signal  models.TextSignal
	tactics models.TacticsReport
	context models.ContextSignal
	// sources come from the model in AI mode
	sources []models.SourceLink
	ai      bool
}

// Analyze returns an error only for input errors, wrapped around
// ErrInvalidRequest. Any other failure is reported as an ERROR result.
func (o *Orchestrator) Analyze(ctx context.Context, req models.AnalysisRequest) (res *models.AnalysisResult, err error) {
	req, err = NormalizeRequest(req)
	if err != nil {
		return nil, err
	}

	start := o.now()
	aiUsed := false
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("analysis panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = models.ErrorResult(fmt.Sprintf("Analysis failed: %v", r))
			o.enrich(ctx, res, req, "")
			o.finish(res, req, start, false)
			err = nil
		}
	}()

	var subject string
	res, subject, aiUsed, err = o.dispatch(ctx, req)
	if err != nil {
		o.log.Error("analysis failed",
			zap.String("content_type", string(req.ContentType)),
			zap.Error(err))
		res = models.ErrorResult("Analysis failed: " + err.Error())
		subject = ""
	}
	o.enrich(ctx, res, req, subject)
	o.finish(res, req, start, aiUsed)
	return res, nil
}

// dispatch runs one branch. subject is the text sources are looked up for.
func (o *Orchestrator) dispatch(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, string, bool, error) {
	switch req.ContentType {
	case models.ContentText:
		out, err := o.analyzeText(ctx, req.Text, req.Language, o.aiEnabled(req))
		if err != nil {
			return nil, "", false, err
		}
		res := FuseText(out.signal, out.tactics)
		res.Context = &out.context
		res.SourceLinks = out.sources
		return res, req.Text, out.ai, nil

	case models.ContentURL:
		content := o.urls.ExtractURLContent(ctx, req.URL)
		if content.Err != nil {
			o.log.Warn("url extraction failed", zap.String("url", req.URL), zap.Error(content.Err))
		}
		if content.URL == "" {
			content.URL = req.URL
		}
		if strings.TrimSpace(content.Content) == "" {
			return EmptyURLResult(), "", false, nil
		}
		out, err := o.analyzeText(ctx, content.Content, req.Language, false)
		if err != nil {
			return nil, "", false, err
		}
		res := FuseURL(content, out.signal, out.tactics)
		res.Context = &out.context
		return res, content.Content, false, nil

	case models.ContentImage:
		img, err := o.images.AnalyzeFile(ctx, req.FilePath, req.Language)
		if err != nil {
			return nil, "", false, err
		}
		sig, tactics := emptyTextSignal(), models.TacticsReport{Tactics: []string{}}
		var ctxSig *models.ContextSignal
		if img.ExtractedText != "" {
			out, err := o.analyzeText(ctx, img.ExtractedText, req.Language, false)
			if err != nil {
				return nil, "", false, err
			}
			sig, tactics = out.signal, out.tactics
			ctxSig = &out.context
		}
		res := FuseImage(img, sig, tactics)
		res.Context = ctxSig
		return res, img.ExtractedText, false, nil

	case models.ContentDocument:
		text := o.documents.ExtractText(ctx, req.FilePath, req.MimeType)
		out, err := o.analyzeText(ctx, text, req.Language, false)
		if err != nil {
			return nil, "", false, err
		}
		res := FuseText(out.signal, out.tactics)
		res.Context = &out.context
		res.ExtractedText = truncate(text, URLContentCap)
		return res, text, false, nil
	}
	return nil, "", false, fmt.Errorf("no branch for analysis type %q", req.ContentType)
}

// analyzeText fans out the text signal, context and tactics and joins them.
func (o *Orchestrator) analyzeText(ctx context.Context, text, language string, useAI bool) (textOutcome, error) {
	var out textOutcome
	var aiResult *InferenceResult

	g, gctx := errgroup.WithContext(ctx)
	goSafe(g, "text", func() {
		if useAI {
			if r, ok := o.infer(gctx, text, language); ok {
				aiResult = &r
				return
			}
		}
		out.signal = o.text.Analyze(gctx, text, language)
	})
	goSafe(g, "tactics", func() {
		out.tactics = o.tactics.Analyze(text)
	})
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				o.log.Warn("context analysis failed", zap.Any("panic", r))
				out.context = NeutralContext()
			}
		}()
		out.context = o.context.Analyze(text, language)
		return nil
	})
	if err := g.Wait(); err != nil {
		return textOutcome{}, err
	}

	out.sources = []models.SourceLink{}
	if aiResult != nil {
		out.ai = true
		out.signal = models.TextSignal{
			Verdict:    aiResult.Verdict,
			RiskScore:  aiResult.RiskScore,
			Confidence: aiResult.Confidence,
			Narrative:  aiResult.Narrative,
			FactChecks: aiResult.FactChecks,
		}
		out.tactics.Tactics = unionStrings(aiResult.Tactics, out.tactics.Tactics)
		out.tactics.TacticCount = len(out.tactics.Tactics)
		out.sources = aiResult.SourceLinks
	}
	return out, nil
}

// infer reports false when the model could not be reached.
func (o *Orchestrator) infer(ctx context.Context, text, language string) (InferenceResult, bool) {
	raw, err := o.ai.Generate(ctx, BuildAnalysisPrompt(text, language))
	if err != nil {
		o.log.Warn("inference failed, using lexicon analysis", zap.String("provider", o.ai.Name()), zap.Error(err))
		if !errors.Is(err, ErrCollaboratorUnavailable) {
			o.metrics.CollaboratorFailed("inference")
		}
		return InferenceResult{}, false
	}
	res := ParseInference(raw)
	if !res.Parsed {
		o.log.Warn("inference reply was not JSON", zap.String("provider", o.ai.Name()))
	}
	return res, true
}

func (o *Orchestrator) aiEnabled(req models.AnalysisRequest) bool {
	return o.ai != nil && (req.UseAI || o.useAI)
}

// enrich attaches sources and reporting contacts per the request flags.
func (o *Orchestrator) enrich(ctx context.Context, res *models.AnalysisResult, req models.AnalysisRequest, subject string) {
	switch {
	case !req.IncludeSources:
		res.SourceLinks = []models.SourceLink{}
	case len(res.SourceLinks) == 0 && strings.TrimSpace(subject) != "":
		res.SourceLinks = o.sources.FindSources(ctx, subject, req.Language)
	}
	if res.SourceLinks == nil {
		res.SourceLinks = []models.SourceLink{}
	}

	res.ReportingContacts = []models.ReportingContact{}
	if req.IncludeReporting {
		res.ReportingContacts = ReportingContactsFor(o.lex, res.Verdict)
	}
}

func (o *Orchestrator) finish(res *models.AnalysisResult, req models.AnalysisRequest, start time.Time, aiUsed bool) {
	elapsed := o.now().Sub(start)
	res.Metadata = models.Metadata{
		ContentType:               req.ContentType,
		Language:                  req.Language,
		TimestampUTC:              o.now().UTC(),
		ProcessingDurationSeconds: elapsed.Seconds(),
		AIAssisted:                aiUsed,
	}
	o.metrics.ObserveAnalysis(string(req.ContentType), string(res.Verdict), elapsed)
	o.log.Info("analysis complete",
		zap.String("content_type", string(req.ContentType)),
		zap.String("verdict", string(res.Verdict)),
		zap.Int("risk_score", res.RiskScore),
		zap.Duration("elapsed", elapsed))
}

// NormalizeRequest checks the payload required by the content type and
// defaults the language to "en".
func NormalizeRequest(req models.AnalysisRequest) (models.AnalysisRequest, error) {
	ct, ok := models.ParseContentType(string(req.ContentType))
	if !ok {
		return req, fmt.Errorf("%w: unsupported analysis type %q", ErrInvalidRequest, req.ContentType)
	}
	req.ContentType = ct
	if strings.TrimSpace(req.Payload()) == "" {
		return req, fmt.Errorf("%w: %s analysis requires %s", ErrInvalidRequest, ct, payloadName(ct))
	}
	req.Language = strings.TrimSpace(req.Language)
	if req.Language == "" {
		req.Language = "en"
	}
	return req, nil
}

func payloadName(ct models.ContentType) string {
	switch ct {
	case models.ContentText:
		return "text"
	case models.ContentURL:
		return "a url"
	case models.ContentImage:
		return "an image file"
	default:
		return "a document file"
	}
}

// goSafe turns a panic inside fn into the group's error.
func goSafe(g *errgroup.Group, name string, fn func()) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s analysis: %v", name, r)
			}
		}()
		fn()
		return nil
	})
}
