package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

func TestLinksDeduplicatesAndFlags(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<a href="/one">Read more</a>
		<a href="https://site.test/one">Duplicate</a>
		<a href="mailto:a@b.c">Email</a>
		<a href="#top">Top</a>
		<a href="https://other.test/two"> Sponsor <b>page</b> </a>
		<a>No href</a>
	</body></html>`)

	links := Links(doc, "https://site.test/")

	require.Equal(t, []article.Link{
		{URL: "https://site.test/one", Text: "Read more", IsReadMore: true},
		{URL: "https://other.test/two", Text: "Sponsor page", IsReadMore: false},
	}, links)
}

func TestProminentLink(t *testing.T) {
	t.Parallel()

	links := []article.Link{
		{URL: "https://a.test", Text: "Home"},
		{URL: "https://b.test", Text: "A descriptive headline"},
		{URL: "https://c.test", Text: "More", IsReadMore: true},
	}
	got := ProminentLink(links)
	require.NotNil(t, got)
	require.Equal(t, "https://b.test", got.URL)

	require.Nil(t, ProminentLink([]article.Link{{URL: "https://a.test", Text: "Home"}}))
}
