// Package pipeline runs one extraction request end to end: parse the
// newsletter, find its articles, and optionally fetch what they link to.
package pipeline

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/extractor"
	"github.com/JakeFAU/newsletter-extractor/internal/metrics"
)

const strategyMainContent = "main_content"

var bareURLRegex = regexp.MustCompile(`https?://[^\s<>"']+`)

// Request is one newsletter to process.
type Request struct {
	HTML          string
	Text          string
	BaseURL       string
	FetchArticles bool
	Fetch         article.FetchOptions
	// FetchBudget bounds the whole linked-article fan-out. Fetches still
	// running when it lapses record an error and the rest of the result is
	// returned. Zero leaves the fan-out bounded only by ctx.
	FetchBudget time.Duration
}

// MainContentExtractor renders the dominant content of a whole document.
type MainContentExtractor interface {
	Extract(rawHTML string) (string, error)
}

// Fanout fetches a batch of URLs concurrently.
type Fanout interface {
	FetchAll(ctx context.Context, urls []string, opts article.FetchOptions) map[string]article.FetchedArticle
}

// Config bounds article bodies.
type Config struct {
	ArticleTextMax  int
	FallbackTextMax int
	ContainerLimit  int
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	engine *extractor.Engine
	main   MainContentExtractor
	fanout Fanout
	logger *zap.Logger
}

// New builds a Pipeline. fanout may be nil, in which case fetch requests are
// ignored and articles_fetched stays false.
func New(cfg Config, main MainContentExtractor, fanout Fanout, logger *zap.Logger) *Pipeline {
	if cfg.FallbackTextMax <= 0 {
		cfg.FallbackTextMax = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg: cfg,
		engine: extractor.New(extractor.Config{
			MaxTextChars:   cfg.ArticleTextMax,
			ContainerLimit: cfg.ContainerLimit,
		}),
		main:   main,
		fanout: fanout,
		logger: logger,
	}
}

// Run extracts articles and links from req. Errors are reserved for failures
// that make the whole document unusable.
func (p *Pipeline) Run(ctx context.Context, req Request) (article.Result, error) {
	rawHTML := req.HTML
	if strings.TrimSpace(rawHTML) == "" && strings.TrimSpace(req.Text) != "" {
		rawHTML = TextDocument(req.Text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return article.Result{}, fmt.Errorf("parse html: %w", err)
	}
	extractor.StripNoise(doc)

	result := article.Result{
		AllLinks: extractor.Links(doc, req.BaseURL),
	}
	articles, strategy := p.engine.Extract(doc, req.BaseURL)
	metrics.ObserveArticles(string(strategy), len(articles))

	if len(articles) == 0 && p.main != nil {
		mainContent, err := p.main.Extract(rawHTML)
		if err != nil {
			return article.Result{}, fmt.Errorf("main content: %w", err)
		}
		if mainContent != "" {
			result.MainContent = mainContent
			articles = append(articles, article.Article{
				Text: extractor.Truncate(mainContent, p.cfg.FallbackTextMax),
				Link: extractor.ProminentLink(result.AllLinks),
			})
			metrics.ObserveArticles(strategyMainContent, 1)
		}
	}
	result.Articles = articles

	if req.FetchArticles && p.fanout != nil {
		p.attachFetched(ctx, result.Articles, req.Fetch, req.FetchBudget)
		result.ArticlesFetched = true
	}

	p.logger.Debug("extraction complete",
		zap.String("strategy", string(strategy)),
		zap.Int("articles", len(result.Articles)),
		zap.Int("links", len(result.AllLinks)),
		zap.Bool("fetched", result.ArticlesFetched),
	)
	return result, nil
}

// attachFetched fetches every article link and merges the results in place.
func (p *Pipeline) attachFetched(
	ctx context.Context,
	articles []article.Article,
	opts article.FetchOptions,
	budget time.Duration,
) {
	urls := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.Link != nil {
			urls = append(urls, a.Link.URL)
		}
	}
	if len(urls) == 0 {
		return
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	fetched := p.fanout.FetchAll(ctx, urls, opts)
	for i := range articles {
		if articles[i].Link == nil {
			continue
		}
		if res, ok := fetched[articles[i].Link.URL]; ok {
			res := res
			articles[i].Fetched = &res
		}
	}
}

// TextDocument wraps a plain-text newsletter as HTML, turning bare URLs into
// anchors so they still surface as links.
func TextDocument(text string) string {
	var b strings.Builder
	b.WriteString("<html><body><pre>")
	last := 0
	for _, loc := range bareURLRegex.FindAllStringIndex(text, -1) {
		end := loc[0] + len(strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)"))
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		u := html.EscapeString(text[loc[0]:end])
		b.WriteString(`<a href="` + u + `">` + u + `</a>`)
		last = end
	}
	b.WriteString(html.EscapeString(text[last:]))
	b.WriteString("</pre></body></html>")
	return b.String()
}
