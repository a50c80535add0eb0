package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/pipeline"
)

type fakeExtractor struct {
	mu     sync.Mutex
	got    pipeline.Request
	result article.Result
	err    error
	panics bool
}

func (f *fakeExtractor) Run(_ context.Context, req pipeline.Request) (article.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.got = req
	return f.result, f.err
}

func (f *fakeExtractor) request() pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

var defaultFetch = article.FetchOptions{Timeout: 10 * time.Second, MaxContentLength: 5000, MaxConcurrent: 5}

func newTestServer(ex Extractor) *Server {
	return NewServer(ex, Options{FetchBudget: 5 * time.Second, FetchDefaults: defaultFetch}, zap.NewNop())
}

func postExtract(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/extract", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeExtractor{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeExtractor{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_Extract_InvalidJSON(t *testing.T) {
	t.Parallel()

	rec := postExtract(t, newTestServer(&fakeExtractor{}), "{invalid")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON"}`, rec.Body.String())
}

func TestServer_Extract_MissingBody(t *testing.T) {
	t.Parallel()

	rec := postExtract(t, newTestServer(&fakeExtractor{}), `{"base_url":"https://x.com"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "html or text is required")
}

func TestServer_Extract_ExtractorError(t *testing.T) {
	t.Parallel()

	rec := postExtract(t, newTestServer(&fakeExtractor{err: errors.New("parse html: bad input")}), `{"html":"<p>x</p>"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Extraction failed: parse html: bad input"}`, rec.Body.String())
}

func TestServer_Extract_PanicRecovered(t *testing.T) {
	t.Parallel()

	rec := postExtract(t, NewServer(&fakeExtractor{panics: true}, Options{}, zap.NewNop()), `{"html":"<p>x</p>"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_Extract_AppliesFetchDefaults(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{}
	rec := postExtract(t, newTestServer(ex), `{"html":"<p>x</p>","base_url":"https://x.com","fetch_articles":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	got := ex.request()
	assert.True(t, got.FetchArticles)
	assert.Equal(t, "https://x.com", got.BaseURL)
	assert.Equal(t, defaultFetch, got.Fetch)
}

func TestServer_Extract_RequestOverridesFetchOptions(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{}
	body := `{"html":"<p>x</p>","fetch_articles":true,"fetch_timeout":2.5,"max_fetch_content":300,"max_concurrent":2}`
	rec := postExtract(t, newTestServer(ex), body)

	require.Equal(t, http.StatusOK, rec.Code)
	got := ex.request().Fetch
	assert.Equal(t, 2500*time.Millisecond, got.Timeout)
	assert.Equal(t, 300, got.MaxContentLength)
	assert.Equal(t, 2, got.MaxConcurrent)
}

func TestServer_Extract_ResponseShape(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{result: article.Result{
		Articles: []article.Article{
			{
				Text:  "Rates held steady.",
				Title: "Rates",
				Link:  &article.Link{URL: "https://x.com/a", Text: "Read more", IsReadMore: true},
				Fetched: &article.FetchedArticle{
					URL:      "https://x.com/a",
					FinalURL: "https://pub.example.com/a",
					Content:  "Full story",
					Title:    "Rates Story",
					Method:   article.MethodCloudBrowser,
				},
			},
			{Text: "No link here."},
		},
		AllLinks:        []article.Link{{URL: "https://x.com/a", Text: "Read more", IsReadMore: true}},
		ArticlesFetched: true,
	}}
	rec := postExtract(t, newTestServer(ex), `{"html":"<p>x</p>","fetch_articles":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"articles": [
			{
				"text": "Rates held steady.",
				"link": "https://x.com/a",
				"link_text": "Read more",
				"title": "Rates",
				"fetched_content": "Full story",
				"fetched_title": "Rates Story",
				"fetch_error": null,
				"fetch_method": "cloud-browser",
				"final_url": "https://pub.example.com/a"
			},
			{
				"text": "No link here.",
				"link": null,
				"link_text": null,
				"title": null,
				"fetched_content": null,
				"fetched_title": null,
				"fetch_error": null,
				"fetch_method": null,
				"final_url": null
			}
		],
		"all_links": [{"url": "https://x.com/a", "text": "Read more", "is_read_more": true}],
		"main_content": null,
		"articles_fetched": true
	}`, rec.Body.String())
}

func TestServer_Extract_EmptyResultUsesArrays(t *testing.T) {
	t.Parallel()

	rec := postExtract(t, newTestServer(&fakeExtractor{}), `{"html":"<p></p>"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"articles":[],"all_links":[],"main_content":null,"articles_fetched":false}`, rec.Body.String())
}

func TestServer_Extract_EndToEnd(t *testing.T) {
	t.Parallel()

	p := pipeline.New(pipeline.Config{ArticleTextMax: 1000, FallbackTextMax: 2000, ContainerLimit: 10}, nil, nil, nil)
	s := newTestServer(p)
	html := `<table><tr><td><h2>Weekly Roundup</h2><p>` +
		strings.Repeat("Markets were calm as investors waited on data. ", 2) +
		`</p><a href="/story/1">Read more</a></td></tr></table>`
	payload, err := json.Marshal(map[string]string{"html": html, "base_url": "https://news.example.com/"})
	require.NoError(t, err)

	rec := postExtract(t, s, string(payload))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Articles, 1)
	got := resp.Articles[0]
	require.NotNil(t, got.Title)
	assert.Equal(t, "Weekly Roundup", *got.Title)
	require.NotNil(t, got.Link)
	assert.Equal(t, "https://news.example.com/story/1", *got.Link)
	assert.NotContains(t, got.Text, "Read more")
	assert.False(t, resp.ArticlesFetched)
}

type stalledFanout struct{}

func (stalledFanout) FetchAll(ctx context.Context, urls []string, _ article.FetchOptions) map[string]article.FetchedArticle {
	<-ctx.Done()
	out := make(map[string]article.FetchedArticle, len(urls))
	for _, u := range urls {
		out[u] = article.FetchedArticle{URL: u, Error: "Request failed: " + ctx.Err().Error(), Method: article.MethodDirect}
	}
	return out
}

func TestServer_Extract_SlowFetchesReturnPartialResult(t *testing.T) {
	t.Parallel()

	p := pipeline.New(pipeline.Config{}, nil, stalledFanout{}, nil)
	s := NewServer(p, Options{FetchBudget: 50 * time.Millisecond, FetchDefaults: defaultFetch}, zap.NewNop())
	html := `<table><tr><td><h2>Weekly Roundup</h2><p>` +
		strings.Repeat("Markets were calm as investors waited on data. ", 2) +
		`</p><a href="/story/1">Read more</a></td></tr></table>`
	payload, err := json.Marshal(map[string]any{"html": html, "base_url": "https://news.example.com/", "fetch_articles": true})
	require.NoError(t, err)

	rec := postExtract(t, s, string(payload))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ArticlesFetched)
	require.Len(t, resp.Articles, 1)
	assert.Len(t, resp.AllLinks, 1)
	require.NotNil(t, resp.Articles[0].FetchError)
	assert.Contains(t, *resp.Articles[0].FetchError, "deadline exceeded")
	assert.Nil(t, resp.Articles[0].FetchedContent)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeExtractor{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	require.NoError(t, err)
}

func TestRequestIDMiddlewareKeepsInboundID(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeExtractor{})
	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", inbound)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, inbound, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get("X-Request-ID"))
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeExtractor{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
