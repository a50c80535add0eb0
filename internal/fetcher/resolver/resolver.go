// Package resolver follows newsletter tracking links to their destination.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/fetcher/direct"
)

// Config controls resolution.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	Transport    http.RoundTripper
}

// Resolver follows redirects with a browser-like GET.
type Resolver struct {
	cfg       Config
	transport http.RoundTripper
}

// Ensure Resolver implements article.Resolver at compile time.
var _ article.Resolver = (*Resolver)(nil)

// New builds a Resolver.
func New(cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = direct.DefaultMaxRedirects
	}
	transport := cfg.Transport
	if transport == nil {
		transport = direct.NewHTTPTransport()
	}
	return &Resolver{cfg: cfg, transport: transport}
}

// Resolve returns the URL rawURL finally lands on. When the destination answers
// with an error status after at least one redirect, the last redirect target is
// still returned since it is usually the real article. Otherwise failures return
// rawURL together with a description of what went wrong.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var (
		status   int
		fetchErr error
	)
	trail := direct.NewRedirectTrail(r.cfg.MaxRedirects)
	collector := direct.NewCollector(ctx, r.transport, r.cfg.Timeout, trail)
	direct.ApplyHeaders(collector, direct.BrowserHeaders(rawURL, r.cfg.UserAgent))
	collector.OnResponse(func(resp *colly.Response) {
		status = resp.StatusCode
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := direct.Run(ctx, collector, rawURL); err != nil {
		if errors.Is(err, direct.ErrCanceled) {
			return rawURL, err.Error()
		}
		if fetchErr == nil {
			fetchErr = err
		}
	}
	if fetchErr != nil {
		return rawURL, fetchErr.Error()
	}
	if status >= http.StatusBadRequest {
		if last := trail.Last(); last != "" {
			return last, ""
		}
		return rawURL, fmt.Sprintf("HTTP error: %d", status)
	}
	if last := trail.Last(); last != "" {
		return last, ""
	}
	return rawURL, ""
}
