package extractor

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

// Links returns every fetchable anchor in document order, first occurrence per URL.
func Links(doc *goquery.Document, baseURL string) []article.Link {
	seen := make(map[string]struct{})
	var links []article.Link
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		target, ok := NormalizeURL(href, baseURL)
		if !ok {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		text := VisibleText(anchor.Get(0))
		links = append(links, article.Link{
			URL:        target,
			Text:       text,
			IsReadMore: IsReadMore(text),
		})
	})
	return links
}

// ProminentLink picks the link that best represents a newsletter with no
// discoverable articles: the first read-more link or link with descriptive text.
func ProminentLink(links []article.Link) *article.Link {
	for i := range links {
		if links[i].IsReadMore || runeLen(links[i].Text) > 10 {
			link := links[i]
			return &link
		}
	}
	return nil
}
