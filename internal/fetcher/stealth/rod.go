// Package stealth implements the local browser fetch tier: a freshly launched
// headless Chromium per attempt, driven by go-rod with stealth evasions applied.
package stealth

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/headless/detector"
)

// Config controls the local browser tier.
type Config struct {
	Enabled bool
	// BinPath points at a Chrome/Chromium binary. Empty lets rod find or
	// download one.
	BinPath   string
	UserAgent string
	Waiter    *detector.Waiter
}

// Local launches a private browser for every Fetch.
type Local struct {
	cfg Config
}

// Ensure Local implements article.Tier at compile time.
var _ article.Tier = (*Local)(nil)

// New builds the tier, or returns article.ErrUnavailable when it is disabled.
func New(cfg Config) (*Local, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("local browser: %w", article.ErrUnavailable)
	}
	if cfg.Waiter == nil {
		cfg.Waiter = detector.NewWaiter(0, 10, 0)
	}
	return &Local{cfg: cfg}, nil
}

// Method implements article.Tier.
func (l *Local) Method() article.FetchMethod {
	return article.MethodLocalBrowser
}

// Fetch launches Chromium, loads rawURL in a stealth page, waits out any
// challenge and returns the rendered document. The browser is killed on return.
func (l *Local) Fetch(ctx context.Context, rawURL string) (article.Page, error) {
	lnch := l.launcher(ctx)
	controlURL, err := lnch.Launch()
	if err != nil {
		return article.Page{}, fmt.Errorf("%w: launch browser: %w", article.ErrUnavailable, err)
	}
	defer lnch.Cleanup()
	defer lnch.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return article.Page{}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := rodstealth.Page(browser)
	if err != nil {
		return article.Page{}, fmt.Errorf("create stealth page: %w", err)
	}
	page = page.Context(ctx)

	if err := l.emulate(page); err != nil {
		return article.Page{}, err
	}
	if err := page.Navigate(rawURL); err != nil {
		return article.Page{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := l.cfg.Waiter.Settle(ctx, Page{page: page}); err != nil {
		return article.Page{}, fmt.Errorf("wait for page: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return article.Page{}, fmt.Errorf("capture page: %w", err)
	}
	finalURL := rawURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return article.Page{URL: rawURL, FinalURL: finalURL, HTML: html}, nil
}

func (l *Local) launcher(ctx context.Context) *launcher.Launcher {
	lnch := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage")
	if l.cfg.BinPath != "" {
		lnch = lnch.Bin(l.cfg.BinPath)
	}
	return lnch
}

func (l *Local) emulate(page *rod.Page) error {
	if l.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      l.cfg.UserAgent,
			AcceptLanguage: "en-US",
		}); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// Page adapts a rod page to detector.Page.
type Page struct {
	page *rod.Page
}

// HTML implements detector.Page.
func (p Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// WaitSelector implements detector.Page.
func (p Page) WaitSelector(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return err
}
