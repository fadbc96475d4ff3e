package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"truthlens/handlers"
	"truthlens/models"
	"truthlens/services"
)

// openAnalyzer returns the analyzer for one CLI run and a func releasing it.
type openAnalyzer func(ctx context.Context) (handlers.Analyzer, func(), error)

func openOrchestrator(ctx context.Context) (handlers.Analyzer, func(), error) {
	a, err := loadApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a.orch, a.Close, nil
}

func newAnalyzeCmd(open openAnalyzer) *cobra.Command {
	var (
		contentType string
		language    string
		mimeType    string
		noSources   bool
		noReporting bool
		useAI       bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <text|url|path>",
		Short: "Analyze one piece of content and print the verdict",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, ok := models.ParseContentType(contentType)
			if !ok {
				return fmt.Errorf("unknown --type %q", contentType)
			}

			analyzer, release, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			defer release()
			payload := strings.Join(args, " ")
			req := models.AnalysisRequest{
				ContentType:      ct,
				Language:         language,
				MimeType:         mimeType,
				IncludeSources:   !noSources,
				IncludeReporting: !noReporting,
				UseAI:            useAI,
			}
			switch ct {
			case models.ContentText:
				req.Text = payload
			case models.ContentURL:
				req.URL = payload
			default:
				req.FilePath = payload
			}

			res, err := analyzer.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := services.Present(res)
			if asJSON {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printResult(cmd, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&contentType, "type", "t", "text", "content type: text, url, image or document")
	cmd.Flags().StringVarP(&language, "language", "l", "en", "language of the content")
	cmd.Flags().StringVar(&mimeType, "mime", "", "declared document type; sniffed when empty")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "skip authoritative source suggestions")
	cmd.Flags().BoolVar(&noReporting, "no-reporting", false, "skip reporting contacts")
	cmd.Flags().BoolVar(&useAI, "ai", false, "analyze text with the configured AI provider")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func verdictColor(v models.Verdict) *color.Color {
	switch v {
	case models.VerdictFalse, models.VerdictError:
		return color.New(color.FgRed, color.Bold)
	case models.VerdictMisleading:
		return color.New(color.FgYellow, color.Bold)
	case models.VerdictTrue:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.FgCyan, color.Bold)
	}
}

func printResult(cmd *cobra.Command, out models.DisplayResult) {
	w := cmd.OutOrStdout()
	verdictColor(out.Verdict).Fprintf(w, "%s\n", out.Verdict)
	fmt.Fprintf(w, "Risk score: %d/100   Confidence: %d%%\n", out.RiskScore, out.Confidence)
	if out.Narrative != "" {
		fmt.Fprintf(w, "\n%s\n", out.Narrative)
	}
	if len(out.Tactics) > 0 {
		color.New(color.Bold).Fprintln(w, "\nTactics:")
		for _, t := range out.Tactics {
			fmt.Fprintf(w, "  - %s\n", t)
		}
	}
	if len(out.FactChecks) > 0 {
		color.New(color.Bold).Fprintln(w, "\nFact checks:")
		for _, f := range out.FactChecks {
			fmt.Fprintf(w, "  - %s", f.Description)
			if f.Rating != "" {
				fmt.Fprintf(w, " [%s]", f.Rating)
			}
			fmt.Fprintln(w)
		}
	}
	if len(out.SourceLinks) > 0 {
		color.New(color.Bold).Fprintln(w, "\nSources:")
		for _, s := range out.SourceLinks {
			fmt.Fprintf(w, "  - %s %s\n", s.Name, color.BlueString(s.URL))
		}
	}
	if len(out.ReportingContacts) > 0 {
		color.New(color.Bold).Fprintln(w, "\nReport to:")
		for _, c := range out.ReportingContacts {
			fmt.Fprintf(w, "  - %s <%s>\n", c.Description, c.Destination)
		}
	}
	fmt.Fprintf(w, "\n%s in %.2fs\n", out.Metadata.ContentType, out.Metadata.ProcessingDurationSeconds)
}
