// Package dispatcher fans article fetches out over a bounded set of goroutines.
package dispatcher

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/metrics"
)

const skippedMessage = "Skipped: host is blocked"

// DefaultMaxConcurrent bounds in-flight fetches when a request does not.
const DefaultMaxConcurrent = 5

// Pacer delays a request to respect per-host rate limits.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Policy admits or rejects a URL before any network work happens.
type Policy interface {
	AllowFetch(rawURL string) bool
}

// Dispatcher runs many tiered fetches concurrently.
type Dispatcher struct {
	fetcher       article.Fetcher
	pacer         Pacer
	policy        Policy
	maxConcurrent int
	logger        *zap.Logger
}

// New creates a Dispatcher. pacer may be nil to disable per-host pacing.
func New(fetcher article.Fetcher, pacer Pacer, maxConcurrent int, logger *zap.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		fetcher:       fetcher,
		pacer:         pacer,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// WithPolicy sets the admission policy consulted before each fetch.
func (d *Dispatcher) WithPolicy(p Policy) *Dispatcher {
	d.policy = p
	return d
}

// FetchAll fetches every distinct non-empty URL and returns one result per URL.
// Individual failures are recorded on their result and never cancel siblings.
func (d *Dispatcher) FetchAll(ctx context.Context, urls []string, opts article.FetchOptions) map[string]article.FetchedArticle {
	unique := Distinct(urls)
	results := make(map[string]article.FetchedArticle, len(unique))
	if len(unique) == 0 {
		return results
	}

	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = d.maxConcurrent
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, rawURL := range unique {
		g.Go(func() error {
			res := d.fetchOne(ctx, rawURL, opts)
			mu.Lock()
			results[rawURL] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	d.logger.Debug("article fetches complete",
		zap.Int("urls", len(unique)),
		zap.Int("failed", failed),
		zap.Int("concurrency", limit),
	)
	return results
}

func (d *Dispatcher) fetchOne(ctx context.Context, rawURL string, opts article.FetchOptions) article.FetchedArticle {
	if d.policy != nil && !d.policy.AllowFetch(rawURL) {
		d.logger.Debug("fetch skipped by policy", zap.String("url", rawURL))
		return article.FetchedArticle{URL: rawURL, Error: skippedMessage}
	}
	if d.pacer != nil {
		if err := d.pacer.Wait(ctx, rawURL); err != nil {
			d.logger.Warn("fetch pacing aborted", zap.String("url", rawURL), zap.Error(err))
			return article.FetchedArticle{
				URL:    rawURL,
				Error:  "Request failed: " + err.Error(),
				Method: article.MethodDirect,
			}
		}
	}
	metrics.IncFetchesInFlight()
	defer metrics.DecFetchesInFlight()
	return d.fetcher.FetchArticle(ctx, rawURL, opts)
}

// Distinct drops blank and repeated URLs, keeping first-seen order.
func Distinct(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
