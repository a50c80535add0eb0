// Package article defines the core types shared across the extraction and fetch subsystems.
package article

import "time"

// FetchMethod names the fetch tier that produced a FetchedArticle.
type FetchMethod string

// Fetch tiers in escalation order.
const (
	MethodDirect       FetchMethod = "direct"
	MethodCloudBrowser FetchMethod = "cloud-browser"
	MethodLocalBrowser FetchMethod = "local-browser"
)

// Link is a normalized anchor discovered in a newsletter.
type Link struct {
	URL        string `json:"url"`
	Text       string `json:"text"`
	IsReadMore bool   `json:"is_read_more"`
}

// Article is one section of a newsletter, optionally augmented with fetched content.
type Article struct {
	Text    string
	Link    *Link
	Title   string
	Fetched *FetchedArticle
}

// FetchedArticle is the terminal state of one tiered fetch.
// FinalURL is only set when it differs from URL.
type FetchedArticle struct {
	URL      string
	FinalURL string
	Content  string
	Title    string
	Error    string
	Method   FetchMethod
}

// OK reports whether the fetch produced content.
func (f FetchedArticle) OK() bool {
	return f.Error == "" && f.Content != ""
}

// Result is everything one extraction call produces.
type Result struct {
	Articles        []Article
	AllLinks        []Link
	MainContent     string
	ArticlesFetched bool
}

// Page is the raw output of a single fetch tier before content extraction.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
}

// Content is the readable text and title recovered from a page.
type Content struct {
	Text  string
	Title string
}

// FetchOptions are the per-request knobs for fetching linked articles.
type FetchOptions struct {
	Timeout          time.Duration
	MaxContentLength int
	MaxConcurrent    int
}
