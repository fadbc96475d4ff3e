package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"truthlens/handlers"
	"truthlens/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	analyzer := handlers.NewAnalyzerHandler(a.orch, a.archive, a.domains, a.limits, cfg.UploadDir, a.log)
	router := handlers.NewRouter(handlers.Routes{
		Analyzer:  analyzer,
		Archive:   handlers.NewArchiveHandler(a.archive, a.log),
		Reports:   handlers.NewReportHandler(a.reports, a.notify, a.log),
		Domains:   handlers.NewDomainHandler(a.domains),
		Admin:     handlers.NewAdminHandler(cfg.AdminToken, analyzer, a.archive, logger.Instance, a.log),
		Metrics:   a.metrics.Handler(),
		UploadDir: cfg.UploadDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	banner := color.New(color.FgCyan, color.Bold)
	fmt.Println(strings.Repeat("=", 50))
	banner.Printf("TruthLens listening on http://localhost%s\n", srv.Addr)
	fmt.Printf("  AI mode:    %s\n", onOff(cfg.AIConfigured() && cfg.UseAI))
	fmt.Printf("  Archive:    %s\n", onOff(a.archive.Available()))
	fmt.Printf("  Fact check: %s\n", onOff(cfg.GoogleFactCheckAPIKey != ""))
	fmt.Printf("  Web search: %s\n", onOff(cfg.SerperAPIKey != ""))
	fmt.Printf("  Email:      %s\n", onOff(a.notify.Configured()))
	fmt.Println(strings.Repeat("=", 50))

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func onOff(on bool) string {
	if on {
		return color.GreenString("on")
	}
	return color.YellowString("off")
}
