// Package headless implements the cloud browser fetch tier: a hosted Chrome
// driven over the DevTools protocol with chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/headless/detector"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080
	acceptLanguage = "en-US"
)

// Config controls the cloud browser tier.
type Config struct {
	// Endpoint is the CDP websocket of the hosted browser service.
	Endpoint  string
	APIKey    string
	UserAgent string
	Waiter    *detector.Waiter
}

// Cloud fetches pages through a remote browser. Every Fetch opens and closes
// its own browser session.
type Cloud struct {
	cfg   Config
	wsURL string
}

// Ensure Cloud implements article.Tier at compile time.
var _ article.Tier = (*Cloud)(nil)

// NewCloud validates cfg and builds the tier. Missing credentials yield
// article.ErrUnavailable so callers can leave the tier out.
func NewCloud(cfg Config) (*Cloud, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("cloud browser: %w", article.ErrUnavailable)
	}
	wsURL, err := WebSocketURL(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.Waiter == nil {
		cfg.Waiter = detector.NewWaiter(0, 15, 0)
	}
	return &Cloud{cfg: cfg, wsURL: wsURL}, nil
}

// WebSocketURL appends the API token to endpoint.
func WebSocketURL(endpoint, apiKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse cloud browser endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("cloud browser endpoint must be ws:// or wss://, got %q", endpoint)
	}
	q := u.Query()
	q.Set("token", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Method implements article.Tier.
func (c *Cloud) Method() article.FetchMethod {
	return article.MethodCloudBrowser
}

// Fetch navigates to rawURL in the remote browser, waits out any challenge and
// returns the rendered document.
func (c *Cloud) Fetch(ctx context.Context, rawURL string) (article.Page, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, c.wsURL, chromedp.NoModifyURL)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	meta := &responseMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	if err := chromedp.Run(taskCtx,
		c.emulationAction(),
		chromedp.Navigate(rawURL),
	); err != nil {
		return article.Page{}, fmt.Errorf("cloud browser navigate: %w", err)
	}
	return CapturePage(taskCtx, rawURL, c.cfg.Waiter, meta.status)
}

func (c *Cloud) emulationAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			override := emulation.SetUserAgentOverride(c.cfg.UserAgent).WithAcceptLanguage(acceptLanguage)
			if err := override.Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if err := chromedp.EmulateViewport(viewportWidth, viewportHeight).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		return nil
	})
}

// CapturePage settles a navigated chromedp tab and reads its final URL and HTML.
func CapturePage(taskCtx context.Context, rawURL string, waiter *detector.Waiter, status func() int) (article.Page, error) {
	if err := waiter.Settle(taskCtx, Page{}); err != nil {
		return article.Page{}, fmt.Errorf("wait for page: %w", err)
	}
	var html, finalURL string
	if err := chromedp.Run(taskCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return article.Page{}, fmt.Errorf("capture page: %w", err)
	}
	if finalURL == "" {
		finalURL = rawURL
	}
	return article.Page{URL: rawURL, FinalURL: finalURL, StatusCode: status(), HTML: html}, nil
}

// Page adapts a chromedp tab context to detector.Page.
type Page struct{}

// HTML implements detector.Page.
func (Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// WaitSelector implements detector.Page.
func (Page) WaitSelector(ctx context.Context, selector string) error {
	err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("selector %q not found: %w", selector, err)
	}
	return err
}

// responseMeta records the status of the main document response.
type responseMeta struct {
	mu   sync.Mutex
	code int
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.code = int(resp.Response.Status)
	m.mu.Unlock()
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}
