package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"truthlens/cache"
	"truthlens/config"
	"truthlens/database"
	"truthlens/logger"
	"truthlens/metrics"
	"truthlens/services"
)

func main() {
	root := &cobra.Command{
		Use:           "truthlens",
		Short:         "Misinformation analysis for text, URLs, images and documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newAnalyzeCmd(openOrchestrator))

	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds everything both commands share.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Recorder
	limits  *services.RateLimits
	cache   *cache.Cache
	db      *sql.DB
	orch    *services.Orchestrator
	archive *database.ArchiveStore
	domains *database.DomainStore
	reports *database.ReportStore
	notify  *services.SMTPNotifier
}

// buildApp connects the optional stores and wires the analyzers. Redis and
// PostgreSQL are optional; failing to reach a configured one is logged and the
// app runs without it.
func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) *app {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		limits:  services.NewRateLimits(),
	}

	c, err := cache.New(ctx, cfg.RedisUrl, log)
	if err != nil {
		log.Warn("redis unavailable, running without cache", zap.Error(err))
	}
	a.cache = c

	db, err := database.Open(ctx, cfg.DbUrl, log)
	if err != nil {
		log.Warn("postgres unavailable, archive disabled", zap.Error(err))
	}
	a.db = db
	a.archive = database.NewArchiveStore(db, log)
	a.domains = database.NewDomainStore(db, log)
	a.reports = database.NewReportStore(db, log)
	a.notify = services.NewSMTPNotifier(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.AdminEmail,
		Timeout:  cfg.CollaboratorTimeout,
	}, log)

	lex := services.MustDefaultLexicon()
	facts := services.NewGoogleFactCheckClient(cfg.GoogleFactCheckAPIKey, a.cache, cfg.FactCheckCacheTTL, cfg.CollaboratorTimeout, log)
	fetcher := services.NewContentFetcher(cfg.FetchTimeout, log)

	serper := services.NewSerperClient(cfg.SerperAPIKey, cfg.CollaboratorTimeout, log)
	var search services.WebSearcher
	if serper.Configured() {
		search = serper
	}

	ocr := services.NewChainOCR(log,
		services.NewVisionOCR(cfg.VisionAPIKey, cfg.CollaboratorTimeout),
		services.NewTesseractOCR(cfg.TesseractPath),
	)
	images := services.NewImageForensicsAnalyzer(
		services.NewExifReader(log),
		services.NewPixelAnalyzer(),
		ocr,
		services.NewLensReverseSearch(serper, cfg.PublicBaseURL),
		a.metrics,
		log,
	)

	var ai services.InferenceClient
	var clients []services.InferenceClient
	if cfg.GeminiAPIKey != "" {
		clients = append(clients, services.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.CollaboratorTimeout, a.limits, log))
	}
	if cfg.ChatAPIKey != "" {
		clients = append(clients, services.NewChatClient(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModel, cfg.CollaboratorTimeout, a.limits, log))
	}
	if len(clients) > 0 {
		ai = services.NewFallbackInference(clients...)
	}

	tracker := services.NewSourceTracker(lex, fetcher, search, log)
	a.orch = services.NewOrchestrator(services.Dependencies{
		Lexicon:   lex,
		Text:      services.NewTextSignalAnalyzer(lex, facts, a.metrics, log),
		Tactics:   services.NewTacticsDetector(lex, log),
		Context:   services.NewContextAnalyzer(lex, log),
		URLs:      tracker,
		Sources:   tracker,
		Images:    images,
		Documents: services.NewDocumentExtractor(a.metrics, log),
		AI:        ai,
		UseAI:     cfg.UseAI,
		Metrics:   a.metrics,
		Log:       log,
	})
	return a
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	a.cache.Close()
	a.log.Sync()
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Environment: cfg.Environment, LogLevel: cfg.LogLevel})
	return buildApp(ctx, cfg, log), nil
}
