package main

import (
	"context"
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/api"
	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/config"
	"github.com/JakeFAU/newsletter-extractor/internal/content"
	"github.com/JakeFAU/newsletter-extractor/internal/dispatcher"
	"github.com/JakeFAU/newsletter-extractor/internal/fetcher"
	"github.com/JakeFAU/newsletter-extractor/internal/fetcher/direct"
	"github.com/JakeFAU/newsletter-extractor/internal/fetcher/headless"
	"github.com/JakeFAU/newsletter-extractor/internal/fetcher/resolver"
	"github.com/JakeFAU/newsletter-extractor/internal/fetcher/stealth"
	"github.com/JakeFAU/newsletter-extractor/internal/headless/detector"
	"github.com/JakeFAU/newsletter-extractor/internal/logging"
	"github.com/JakeFAU/newsletter-extractor/internal/pipeline"
	"github.com/JakeFAU/newsletter-extractor/internal/policy/blocklist"
	"github.com/JakeFAU/newsletter-extractor/internal/policy/ratelimit"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	tracer   *sdktrace.TracerProvider
}

// newApp wires every service. tp may be nil when tracing is disabled.
func newApp(cfg config.Config, logger *zap.Logger, tp *sdktrace.TracerProvider) (*app, error) {
	tiers, err := buildTiers(cfg, logger)
	if err != nil {
		return nil, err
	}
	res := resolver.New(resolver.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.ResolveTimeoutSeconds) * time.Second,
	})
	tiered, err := fetcher.New(fetcher.Config{
		Timeout:          cfg.FetchTimeout(),
		MaxContentLength: cfg.Fetch.MaxContentLength,
		CloudMinTimeout:  time.Duration(cfg.CloudBrowser.MinTimeoutSeconds) * time.Second,
		LocalMinTimeout:  time.Duration(cfg.LocalBrowser.MinTimeoutSeconds) * time.Second,
	}, res, tiers, content.NewExtractor(), logging.Component(logger, "fetcher"))
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}
	if tp != nil {
		tiered.WithTracerProvider(tp)
	}

	pacer := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Fetch.PerHostRPS})
	fanout := dispatcher.New(tiered, pacer, cfg.Fetch.MaxConcurrent, logging.Component(logger, "dispatcher")).
		WithPolicy(blocklist.New(cfg.Fetch.SkipHosts))

	p := pipeline.New(pipeline.Config{
		ArticleTextMax:  cfg.Extraction.ArticleTextMax,
		FallbackTextMax: cfg.Extraction.FallbackTextMax,
		ContainerLimit:  cfg.Extraction.ContainerScanLimit,
	}, content.NewMainContent(), fanout, logging.Component(logger, "pipeline"))

	return &app{cfg: cfg, logger: logger, pipeline: p, tracer: tp}, nil
}

// buildTiers assembles the escalation chain. Browser tiers that are not
// configured are left nil and skipped by the fetcher.
func buildTiers(cfg config.Config, logger *zap.Logger) (fetcher.Tiers, error) {
	tiers := fetcher.Tiers{
		Direct: direct.New(direct.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.FetchTimeout(),
		}),
	}

	if cfg.CloudEnabled() {
		cloud, err := headless.NewCloud(headless.Config{
			Endpoint:  cfg.CloudBrowser.Endpoint,
			APIKey:    cfg.CloudBrowser.APIKey,
			UserAgent: cfg.Fetch.UserAgent,
			Waiter:    detector.NewWaiter(cfg.PollInterval(), cfg.CloudBrowser.PollAttempts, cfg.ContentWait()),
		})
		if err != nil {
			return fetcher.Tiers{}, fmt.Errorf("build cloud browser tier: %w", err)
		}
		tiers.Cloud = cloud
	} else {
		logger.Info("cloud browser tier disabled: no api key configured")
	}

	local, err := stealth.New(stealth.Config{
		Enabled:   cfg.LocalBrowser.Enabled,
		BinPath:   cfg.LocalBrowser.BinPath,
		UserAgent: cfg.Fetch.UserAgent,
		Waiter:    detector.NewWaiter(cfg.PollInterval(), cfg.LocalBrowser.PollAttempts, cfg.ContentWait()),
	})
	if err == nil {
		tiers.Local = local
	} else {
		logger.Info("local browser tier disabled", zap.Error(err))
	}
	return tiers, nil
}

func (a *app) apiOptions() api.Options {
	return api.Options{
		FetchBudget: a.cfg.RequestTimeout(),
		FetchDefaults: article.FetchOptions{
			Timeout:          a.cfg.FetchTimeout(),
			MaxContentLength: a.cfg.Fetch.MaxContentLength,
			MaxConcurrent:    a.cfg.Fetch.MaxConcurrent,
		},
	}
}

// close flushes spans and logs. Errors are reported but never fatal.
func (a *app) close(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
