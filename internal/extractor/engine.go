package extractor

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

// Strategy names the heuristic that produced an extraction.
type Strategy string

// Strategies in priority order.
const (
	StrategyReadMore  Strategy = "read_more"
	StrategyContainer Strategy = "container"
	StrategyNone      Strategy = "none"
)

const (
	minReadMoreChars  = 50
	minContainerChars = 100
	headingSelector   = "h1, h2, h3, h4, strong, b"
	containerSelector = "article, div, td"
)

var articleClassRegex = regexp.MustCompile(`(?i)(article|story|post|item|content|entry)`)

// Config tunes the extraction engine.
type Config struct {
	MaxTextChars   int
	ContainerLimit int
}

// Engine extracts articles from a parsed newsletter.
type Engine struct {
	cfg Config
}

// New builds an Engine, filling unset limits with defaults.
func New(cfg Config) *Engine {
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 1000
	}
	if cfg.ContainerLimit <= 0 {
		cfg.ContainerLimit = 10
	}
	return &Engine{cfg: cfg}
}

// Extract returns the articles found in doc in discovery order along with the
// strategy that found them. Script and style noise must already be removed.
func (e *Engine) Extract(doc *goquery.Document, baseURL string) ([]article.Article, Strategy) {
	seen := make(map[string]struct{})
	if articles := e.readMoreArticles(doc, baseURL, seen); len(articles) > 0 {
		return articles, StrategyReadMore
	}
	if articles := e.containerArticles(doc, baseURL, seen); len(articles) > 0 {
		return articles, StrategyContainer
	}
	return nil, StrategyNone
}

func (e *Engine) readMoreArticles(doc *goquery.Document, baseURL string, seen map[string]struct{}) []article.Article {
	var articles []article.Article
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		node := anchor.Get(0)
		linkText := VisibleText(node)
		if !IsReadMore(linkText) {
			return
		}
		href, _ := anchor.Attr("href")
		target, ok := NormalizeURL(href, baseURL)
		if !ok {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		// Claimed even when the anchor yields no body; later anchors and
		// containers for the same URL are skipped.
		seen[target] = struct{}{}

		body := e.parentContent(node, linkText)
		if body == "" {
			return
		}
		articles = append(articles, article.Article{
			Text:  body,
			Link:  &article.Link{URL: target, Text: linkText, IsReadMore: true},
			Title: findTitle(doc, node),
		})
	})
	return articles
}

// parentContent returns the text of the nearest container ancestor that still
// carries meaningful content once the anchor's own text is removed.
func (e *Engine) parentContent(anchor *html.Node, linkText string) string {
	var content string
	walkContainers(anchor, bodyContainers, func(n *html.Node) bool {
		text := removeText(VisibleText(n), linkText)
		if runeLen(text) <= minReadMoreChars {
			return false
		}
		content = Truncate(text, e.cfg.MaxTextChars)
		return true
	})
	return content
}

func findTitle(doc *goquery.Document, anchor *html.Node) string {
	var title string
	walkContainers(anchor, titleContainers, func(n *html.Node) bool {
		heading := doc.FindNodes(n).Find(headingSelector).First()
		if heading.Length() == 0 {
			return false
		}
		title = VisibleText(heading.Get(0))
		return true
	})
	return title
}

func (e *Engine) containerArticles(doc *goquery.Document, baseURL string, seen map[string]struct{}) []article.Article {
	candidates := doc.Find(containerSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		return ok && articleClassRegex.MatchString(class)
	})

	var articles []article.Article
	candidates.EachWithBreak(func(i int, container *goquery.Selection) bool {
		if i >= e.cfg.ContainerLimit {
			return false
		}
		text := VisibleText(container.Get(0))
		if runeLen(text) < minContainerChars {
			return true
		}
		anchor := container.Find("a[href]").First()
		if anchor.Length() == 0 {
			return true
		}
		href, _ := anchor.Attr("href")
		target, ok := NormalizeURL(href, baseURL)
		if !ok {
			return true
		}
		if _, dup := seen[target]; dup {
			return true
		}
		seen[target] = struct{}{}
		linkText := VisibleText(anchor.Get(0))
		articles = append(articles, article.Article{
			Text: Truncate(text, e.cfg.MaxTextChars),
			Link: &article.Link{URL: target, Text: linkText, IsReadMore: IsReadMore(linkText)},
		})
		return true
	})
	return articles
}

// StripNoise removes elements that never carry newsletter text.
func StripNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript").Remove()
}
