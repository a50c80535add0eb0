// Package fetcher retrieves linked articles, escalating from plain HTTP to a
// cloud browser and then a local browser when a site pushes back.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/headless/detector"
	"github.com/JakeFAU/newsletter-extractor/internal/metrics"
)

const (
	noContentMessage = "Could not extract content from page"
	tracerName       = "github.com/JakeFAU/newsletter-extractor/internal/fetcher"
)

// Config holds the defaults applied when a request leaves a knob unset.
type Config struct {
	Timeout          time.Duration
	MaxContentLength int
	// CloudMinTimeout and LocalMinTimeout floor the browser tiers' budgets,
	// which need time to sit through challenges.
	CloudMinTimeout time.Duration
	LocalMinTimeout time.Duration
}

// Tiers are the fetch strategies in escalation order. A nil browser tier is
// skipped.
type Tiers struct {
	Direct article.Tier
	Cloud  article.Tier
	Local  article.Tier
}

// Fetcher runs the escalation machine for one URL at a time. It is safe for
// concurrent use.
type Fetcher struct {
	cfg       Config
	resolver  article.Resolver
	tiers     Tiers
	extractor article.ContentExtractor
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Ensure Fetcher implements article.Fetcher at compile time.
var _ article.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher. The direct tier and content extractor are required;
// the resolver may be nil to fetch links as given.
func New(
	cfg Config,
	resolver article.Resolver,
	tiers Tiers,
	extractor article.ContentExtractor,
	logger *zap.Logger,
) (*Fetcher, error) {
	if tiers.Direct == nil {
		return nil, errors.New("direct tier is required")
	}
	if extractor == nil {
		return nil, errors.New("content extractor is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 5000
	}
	if cfg.CloudMinTimeout <= 0 {
		cfg.CloudMinTimeout = 60 * time.Second
	}
	if cfg.LocalMinTimeout <= 0 {
		cfg.LocalMinTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		resolver:  resolver,
		tiers:     tiers,
		extractor: extractor,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// WithTracerProvider replaces the global tracer provider for this Fetcher.
func (f *Fetcher) WithTracerProvider(tp trace.TracerProvider) *Fetcher {
	f.tracer = tp.Tracer(tracerName)
	return f
}

// failure is one unsuccessful tier attempt.
type failure struct {
	method  article.FetchMethod
	message string
}

// FetchArticle resolves rawURL and walks the tiers until one yields content.
// It never returns an error; failures are reported on the result.
func (f *Fetcher) FetchArticle(ctx context.Context, rawURL string, opts article.FetchOptions) article.FetchedArticle {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	maxLen := opts.MaxContentLength
	if maxLen <= 0 {
		maxLen = f.cfg.MaxContentLength
	}

	ctx, span := f.tracer.Start(ctx, "FetchArticle", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	target, resolved := f.resolve(ctx, rawURL, timeout)
	if resolved != "" {
		span.SetAttributes(attribute.String("resolved_url", resolved))
	}
	result := article.FetchedArticle{URL: rawURL, Method: article.MethodDirect}

	var (
		failures    []failure
		directFinal string
	)
	state := StateDirect
	for !state.Terminal() {
		tier := f.tierFor(state)
		if tier == nil {
			state = f.skip(state)
			continue
		}
		if err := ctx.Err(); err != nil {
			failures = append(failures, failure{method: tier.Method(), message: describe(tier.Method(), OutcomeTransport, err)})
			state = StateFailed
			break
		}

		page, content, err := f.attempt(ctx, tier, target, f.tierTimeout(state, timeout), maxLen)
		outcome := Classify(err)
		if state == StateDirect {
			directFinal = page.FinalURL
		}
		if outcome == OutcomeSuccess {
			result.Content = content.Text
			result.Title = content.Title
			result.Method = tier.Method()
			result.FinalURL = finalURL(rawURL, resolved, page.FinalURL)
			span.SetAttributes(attribute.String("method", string(result.Method)))
			return result
		}

		message := describe(tier.Method(), outcome, err)
		failures = append(failures, failure{method: tier.Method(), message: message})
		next := f.skipAbsent(Next(state, outcome))
		if !next.Terminal() {
			f.logger.Info("escalating article fetch",
				zap.String("url", rawURL),
				zap.String("from", state.String()),
				zap.String("to", next.String()),
				zap.String("reason", message),
			)
		}
		state = next
	}

	result.Error = composeError(failures)
	result.FinalURL = finalURL(rawURL, resolved, directFinal)
	span.SetStatus(codes.Error, result.Error)
	f.logger.Debug("article fetch failed", zap.String("url", rawURL), zap.String("error", result.Error))
	return result
}

func (f *Fetcher) resolve(ctx context.Context, rawURL string, timeout time.Duration) (string, string) {
	if f.resolver == nil {
		return rawURL, ""
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resolved, msg := f.resolver.Resolve(rctx, rawURL)
	if msg != "" {
		f.logger.Debug("tracking link resolution failed", zap.String("url", rawURL), zap.String("error", msg))
	}
	if resolved == "" || resolved == rawURL {
		return rawURL, ""
	}
	return resolved, resolved
}

func (f *Fetcher) attempt(
	ctx context.Context,
	tier article.Tier,
	target string,
	timeout time.Duration,
	maxLen int,
) (article.Page, article.Content, error) {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tctx, span := f.tracer.Start(tctx, "fetch "+string(tier.Method()),
		trace.WithAttributes(
			attribute.String("tier", string(tier.Method())),
			attribute.String("target", target),
		),
	)
	defer span.End()

	page, content, err := f.fetchAndExtract(tctx, tier, target, maxLen)
	outcome := Classify(err)
	metrics.ObserveFetchAttempt(string(tier.Method()), outcome.String(), time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if page.StatusCode != 0 {
		span.SetAttributes(attribute.Int("status_code", page.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.String())
	}
	return page, content, err
}

func (f *Fetcher) fetchAndExtract(
	ctx context.Context,
	tier article.Tier,
	target string,
	maxLen int,
) (article.Page, article.Content, error) {
	page, err := tier.Fetch(ctx, target)
	if err != nil {
		return page, article.Content{}, err
	}
	if isChallenge(tier.Method(), page.HTML) {
		return page, article.Content{}, fmt.Errorf("challenge page served: %w", article.ErrNoContent)
	}
	content, err := f.extractor.Extract(page.HTML, maxLen)
	if err != nil {
		return page, content, fmt.Errorf("extract %s: %w", target, err)
	}
	if content.Text == "" {
		return page, content, article.ErrNoContent
	}
	return page, content, nil
}

// isChallenge applies the browser tiers' settle check, or the stricter
// document check for direct responses.
func isChallenge(method article.FetchMethod, html string) bool {
	if method == article.MethodDirect {
		return detector.IsChallengeDocument(html)
	}
	return detector.IsChallenge(html) && !detector.Settled(html)
}

func (f *Fetcher) tierFor(state State) article.Tier {
	switch state {
	case StateDirect:
		return f.tiers.Direct
	case StateCloudBrowser:
		return f.tiers.Cloud
	case StateLocalBrowser:
		return f.tiers.Local
	default:
		return nil
	}
}

// skip moves past an absent tier to the next one in order.
func (f *Fetcher) skip(state State) State {
	switch state {
	case StateDirect:
		return StateCloudBrowser
	case StateCloudBrowser:
		return StateLocalBrowser
	default:
		return StateFailed
	}
}

func (f *Fetcher) skipAbsent(state State) State {
	for !state.Terminal() && f.tierFor(state) == nil {
		state = f.skip(state)
	}
	return state
}

func (f *Fetcher) tierTimeout(state State, timeout time.Duration) time.Duration {
	switch state {
	case StateCloudBrowser:
		return max(timeout, f.cfg.CloudMinTimeout)
	case StateLocalBrowser:
		return max(timeout, f.cfg.LocalMinTimeout)
	default:
		return timeout
	}
}

// finalURL prefers the resolver's destination, then the URL the tier landed on.
func finalURL(requested, resolved, observed string) string {
	if resolved != "" {
		return resolved
	}
	if observed != "" && observed != requested {
		return observed
	}
	return ""
}

func describe(method article.FetchMethod, outcome OutcomeKind, err error) string {
	browser := method != article.MethodDirect
	switch outcome {
	case OutcomeAntiBotStatus, OutcomeOtherStatus:
		var statusErr *article.StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Error()
		}
		return err.Error()
	case OutcomeNoContent:
		return noContentMessage
	case OutcomeTimeout:
		if browser {
			return "Browser navigation timed out"
		}
		return "Request timed out"
	case OutcomeUnavailable:
		return fmt.Sprintf("Browser unavailable: %v", err)
	default:
		if browser {
			return fmt.Sprintf("Browser fetch failed: %v", err)
		}
		return fmt.Sprintf("Request failed: %v", err)
	}
}

// composeError reports the first failure, followed by any fallback failures.
func composeError(failures []failure) string {
	if len(failures) == 0 {
		return noContentMessage
	}
	msg := failures[0].message
	if len(failures) == 1 {
		return msg
	}
	fallbacks := make([]string, 0, len(failures)-1)
	for _, fl := range failures[1:] {
		fallbacks = append(fallbacks, fmt.Sprintf("%s: %s", fl.method, fl.message))
	}
	return fmt.Sprintf("%s (Fallbacks failed: %s)", msg, strings.Join(fallbacks, "; "))
}
