// Package direct implements the plain HTTP fetch tier using gocolly.
package direct

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

// DefaultMaxRedirects caps redirect chains for the tier and the resolver.
const DefaultMaxRedirects = 10

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout applies when the caller's context carries no deadline.
	Timeout      time.Duration
	MaxRedirects int
	// Transport overrides the pooled HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// Tier fetches pages with a single browser-like GET.
type Tier struct {
	cfg       Config
	transport http.RoundTripper
}

// Ensure Tier implements article.Tier at compile time.
var _ article.Tier = (*Tier)(nil)

// New builds a Tier.
func New(cfg Config) *Tier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport()
	}
	return &Tier{cfg: cfg, transport: transport}
}

// Method implements article.Tier.
func (t *Tier) Method() article.FetchMethod {
	return article.MethodDirect
}

// Fetch performs the GET. Non-2xx statuses are returned as *article.StatusError
// alongside the page so callers can see the final URL.
func (t *Tier) Fetch(ctx context.Context, rawURL string) (article.Page, error) {
	var (
		page     = article.Page{URL: rawURL, FinalURL: rawURL}
		fetchErr error
	)
	collector, trail := t.buildCollector(ctx, rawURL)
	collector.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.HTML = string(r.Body)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := Run(ctx, collector, rawURL); err != nil {
		if errors.Is(err, ErrCanceled) {
			// The visit goroutine may still be writing; report nothing from it.
			return article.Page{URL: rawURL, FinalURL: rawURL}, fmt.Errorf("direct fetch %s: %w", rawURL, err)
		}
		if fetchErr == nil {
			fetchErr = err
		}
	}
	page.FinalURL = trail.final(rawURL)
	if fetchErr != nil {
		return page, fmt.Errorf("direct fetch %s: %w", rawURL, fetchErr)
	}
	if page.StatusCode < 200 || page.StatusCode >= 300 {
		return page, &article.StatusError{Code: page.StatusCode}
	}
	return page, nil
}

func (t *Tier) buildCollector(ctx context.Context, rawURL string) (*colly.Collector, *RedirectTrail) {
	trail := NewRedirectTrail(t.cfg.MaxRedirects)
	collector := NewCollector(ctx, t.transport, requestTimeout(ctx, t.cfg.Timeout), trail)
	ApplyHeaders(collector, BrowserHeaders(rawURL, t.cfg.UserAgent))
	return collector, trail
}

// ApplyHeaders sends headers with every request the collector makes.
func ApplyHeaders(collector *colly.Collector, headers http.Header) {
	collector.UserAgent = headers.Get("User-Agent")
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
}

// NewCollector builds a single-use synchronous collector that reports every
// status through OnResponse and records redirects in trail. A fresh collector
// per request keeps the redirect handler and timeout private to that request.
func NewCollector(
	ctx context.Context,
	transport http.RoundTripper,
	timeout time.Duration,
	trail *RedirectTrail,
) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)
	c.SetRedirectHandler(trail.check)
	return c
}

// ErrCanceled marks a visit abandoned because its context ended first.
var ErrCanceled = errors.New("colly fetch canceled")

// Run visits url on collector, returning early when ctx is done.
func Run(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func requestTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
		return time.Millisecond
	}
	return fallback
}

// NewHTTPTransport returns a pooled transport shared by all collectors.
func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
