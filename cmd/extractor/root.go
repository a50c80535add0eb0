package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/config"
	"github.com/JakeFAU/newsletter-extractor/internal/logging"
	"github.com/JakeFAU/newsletter-extractor/internal/metrics"
	"github.com/JakeFAU/newsletter-extractor/internal/telemetry"
)

type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates the root command. PersistentPreRunE loads config and the
// logger once and stores the app in the command context for subcommands.
func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "extractor",
		Short: "Extracts articles and links from newsletter emails.",
		Long: `extractor turns newsletter HTML into structured articles with their
"read more" links, and can fetch the linked articles through direct HTTP,
a hosted headless browser, or a local stealth browser.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			var tp *sdktrace.TracerProvider
			if cfg.Tracing.Enabled {
				tp, err = telemetry.InitTracerProvider(cmd.Context(), telemetry.TracingConfig{
					ServiceName: cfg.Tracing.ServiceName,
					SampleRatio: cfg.Tracing.SampleRatio,
					Output:      cmd.ErrOrStderr(),
				})
				if err != nil {
					return fmt.Errorf("init tracing: %w", err)
				}
			}

			a, err := newApp(cfg, logger, tp)
			if err != nil {
				if tp != nil {
					_ = tp.Shutdown(cmd.Context())
				}
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok {
				a.close(cmd.Context())
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExtractCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}
