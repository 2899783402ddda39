package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"NewsBriefing/internal/app"
	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/logging"
)

type runner func(ctx context.Context, a *app.Application, out io.Writer) error

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "newsbriefing",
		Short:         "AI news ingestion, summarisation and daily audio digest",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				return os.Setenv("NEWSBRIEFING_CONFIG", cfgFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides NEWSBRIEFING_CONFIG)")

	var batch int
	summarise := &cobra.Command{
		Use:   "summarise",
		Short: "Summarise one batch of pending articles",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
			res, err := a.Summarise(ctx, batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Processed %d articles: %d completed, %d failed\n", res.Processed, res.Completed, res.Failed)
			return nil
		}),
	}
	summarise.Flags().IntVar(&batch, "batch", 0, "articles per batch (default from config)")

	root.AddCommand(
		&cobra.Command{
			Use:   "fetch",
			Short: "Fetch every active source and store new articles",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
				results, err := a.FetchNews(ctx)
				if err != nil {
					return err
				}
				return writeJSON(out, results)
			}),
		},
		summarise,
		&cobra.Command{
			Use:   "digest",
			Short: "Generate today's digest and its audio",
			Args:  cobra.NoArgs,
			RunE:  withApp(runDigest),
		},
		&cobra.Command{
			Use:   "retry-audio <digest-id>",
			Short: "Regenerate audio for an existing digest",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
					url, err := a.RetryAudio(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, url)
					return nil
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "usage",
			Short: "Show today's primary LLM usage",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
				return writeJSON(out, a.UsageStats(ctx))
			}),
		},
		&cobra.Command{
			Use:   "health",
			Short: "Check configuration and database connectivity",
			Args:  cobra.NoArgs,
			RunE:  runHealth,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "schema applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and the HTTP job triggers",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.Application, _ io.Writer) error {
				return a.Serve(ctx)
			}),
		},
	)
	return root
}

func withApp(run runner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg := config.Load()
		logger := newLogger(cfg)

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cErr := a.Close(); cErr != nil {
				logger.Warn("close application", "error", cErr)
			}
		}()
		return run(ctx, a, cmd.OutOrStdout())
	}
}

func runDigest(ctx context.Context, a *app.Application, out io.Writer) error {
	res, err := a.Digest(ctx)
	if apperr.Is(err, apperr.CodeDigestExists) {
		fmt.Fprintln(out, "Digest already exists for today")
		return nil
	}
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(out, "Not enough articles for a digest")
		return nil
	}
	return writeJSON(out, digestSummary(res))
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	var report domain.HealthReport
	a, err := app.New(ctx, cfg, newLogger(cfg))
	if err != nil {
		report = app.UnreachableHealth(ctx, cfg, err)
	} else {
		defer a.Close()
		report = a.Health(ctx)
	}

	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Status != domain.HealthOK {
		return fmt.Errorf("health: %s", report.Status)
	}
	return nil
}

type digestOutput struct {
	DigestID       string `json:"digestId"`
	ArticleCount   int    `json:"articleCount"`
	AudioGenerated bool   `json:"audioGenerated"`
	AudioURL       string `json:"audioUrl,omitempty"`
}

func digestSummary(res domain.DigestResult) digestOutput {
	out := digestOutput{ArticleCount: res.ArticleCount, AudioGenerated: res.AudioURL != nil}
	if res.DigestID != nil {
		out.DigestID = *res.DigestID
	}
	if res.AudioURL != nil {
		out.AudioURL = *res.AudioURL
	}
	return out
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
