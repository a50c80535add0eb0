package api

import "github.com/JakeFAU/newsletter-extractor/internal/article"

type extractRequest struct {
	HTML            string   `json:"html"`
	Text            string   `json:"text"`
	BaseURL         string   `json:"base_url"`
	FetchArticles   bool     `json:"fetch_articles"`
	FetchTimeout    *float64 `json:"fetch_timeout"`
	MaxFetchContent *int     `json:"max_fetch_content"`
	MaxConcurrent   *int     `json:"max_concurrent"`
}

type articleResponse struct {
	Text           string  `json:"text"`
	Link           *string `json:"link"`
	LinkText       *string `json:"link_text"`
	Title          *string `json:"title"`
	FetchedContent *string `json:"fetched_content"`
	FetchedTitle   *string `json:"fetched_title"`
	FetchError     *string `json:"fetch_error"`
	FetchMethod    *string `json:"fetch_method"`
	FinalURL       *string `json:"final_url"`
}

// ExtractResponse is the JSON body returned by POST /extract.
type ExtractResponse struct {
	Articles        []articleResponse `json:"articles"`
	AllLinks        []article.Link    `json:"all_links"`
	MainContent     *string           `json:"main_content"`
	ArticlesFetched bool              `json:"articles_fetched"`
}

// NewExtractResponse maps a pipeline result onto the wire format.
func NewExtractResponse(result article.Result) ExtractResponse {
	resp := ExtractResponse{
		Articles:        make([]articleResponse, 0, len(result.Articles)),
		AllLinks:        result.AllLinks,
		MainContent:     optional(result.MainContent),
		ArticlesFetched: result.ArticlesFetched,
	}
	if resp.AllLinks == nil {
		resp.AllLinks = []article.Link{}
	}
	for _, a := range result.Articles {
		resp.Articles = append(resp.Articles, newArticleResponse(a))
	}
	return resp
}

func newArticleResponse(a article.Article) articleResponse {
	out := articleResponse{
		Text:  a.Text,
		Title: optional(a.Title),
	}
	if a.Link != nil {
		out.Link = optional(a.Link.URL)
		out.LinkText = optional(a.Link.Text)
	}
	if f := a.Fetched; f != nil {
		out.FetchedContent = optional(f.Content)
		out.FetchedTitle = optional(f.Title)
		out.FetchError = optional(f.Error)
		out.FetchMethod = optional(string(f.Method))
		out.FinalURL = optional(f.FinalURL)
	}
	return out
}

// optional maps the empty string to JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
