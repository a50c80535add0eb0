package article

import "context"

// Tier fetches a page through one transport (plain HTTP, remote browser, local browser).
type Tier interface {
	Method() FetchMethod
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Resolver follows tracking redirects to discover a link's destination.
// It never fails: on error it returns the input URL and a description.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, string)
}

// ContentExtractor recovers readable text and a title from raw HTML.
type ContentExtractor interface {
	Extract(rawHTML string, maxChars int) (Content, error)
}

// Fetcher runs the full tiered fetch for one URL.
type Fetcher interface {
	FetchArticle(ctx context.Context, rawURL string, opts FetchOptions) FetchedArticle
}
