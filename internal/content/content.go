// Package content turns raw HTML pages into readable text.
package content

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/extractor"
)

// Ensure Extractor implements article.ContentExtractor at compile time.
var _ article.ContentExtractor = (*Extractor)(nil)

// Extractor pulls the main text out of a fetched page. Trafilatura runs first and
// go-readability is consulted when it finds nothing.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the page's main text cut to maxChars runes and its <title>.
// A page without extractable text yields article.ErrNoContent.
func (e *Extractor) Extract(rawHTML string, maxChars int) (article.Content, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return article.Content{}, article.ErrNoContent
	}
	title := Title(rawHTML)

	text := trafilaturaText(rawHTML)
	if text == "" {
		text = readabilityText(rawHTML)
	}
	if text == "" {
		return article.Content{Title: title}, article.ErrNoContent
	}
	return article.Content{
		Text:  extractor.Truncate(text, maxChars),
		Title: title,
	}, nil
}

// Title returns the trimmed text of the document's first <title> element.
func Title(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func trafilaturaText(rawHTML string) string {
	result, err := trafilatura.Extract(strings.NewReader(rawHTML), trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   true,
	})
	if err != nil || result == nil {
		return ""
	}
	return strings.TrimSpace(result.ContentText)
}

func readabilityText(rawHTML string) string {
	parsed, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.TextContent)
}

// renderNode converts an html.Node to a string.
func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
