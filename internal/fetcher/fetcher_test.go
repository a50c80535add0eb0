package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

// MockTier mocks the article.Tier interface.
type MockTier struct {
	mock.Mock
	method article.FetchMethod
}

func newMockTier(method article.FetchMethod) *MockTier {
	return &MockTier{method: method}
}

// Method satisfies article.Tier.
func (m *MockTier) Method() article.FetchMethod {
	return m.method
}

// Fetch satisfies article.Tier.
func (m *MockTier) Fetch(ctx context.Context, rawURL string) (article.Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(article.Page), args.Error(1)
}

type stubResolver struct {
	to  string
	msg string
}

func (s stubResolver) Resolve(_ context.Context, rawURL string) (string, string) {
	if s.to == "" {
		return rawURL, s.msg
	}
	return s.to, s.msg
}

// stubExtractor treats any non-blank HTML as the article body.
type stubExtractor struct{}

func (stubExtractor) Extract(rawHTML string, maxChars int) (article.Content, error) {
	text := strings.TrimSpace(rawHTML)
	if text == "" {
		return article.Content{}, article.ErrNoContent
	}
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return article.Content{Text: text, Title: "Fetched Title"}, nil
}

const storyURL = "https://news.example.com/story"

func page(html string) article.Page {
	return article.Page{URL: storyURL, FinalURL: storyURL, StatusCode: 200, HTML: html}
}

func newFetcher(t *testing.T, resolver article.Resolver, tiers Tiers) *Fetcher {
	t.Helper()
	f, err := New(Config{}, resolver, tiers, stubExtractor{}, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestFetchArticleDirectSuccess(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page("the full story"), nil).Once()
	cloud := newMockTier(article.MethodCloudBrowser)

	got := newFetcher(t, nil, Tiers{Direct: direct, Cloud: cloud}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, "the full story", got.Content)
	assert.Equal(t, "Fetched Title", got.Title)
	assert.Equal(t, article.MethodDirect, got.Method)
	assert.Empty(t, got.FinalURL)
	direct.AssertExpectations(t)
	cloud.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestFetchArticleForbiddenEscalatesToCloud(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page("blocked"), &article.StatusError{Code: 403}).Once()
	cloud := newMockTier(article.MethodCloudBrowser)
	cloud.On("Fetch", mock.Anything, storyURL).Return(page("rendered story"), nil).Once()
	local := newMockTier(article.MethodLocalBrowser)

	got := newFetcher(t, nil, Tiers{Direct: direct, Cloud: cloud, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, article.MethodCloudBrowser, got.Method)
	assert.Equal(t, "rendered story", got.Content)
	local.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestFetchArticleNotFoundIsTerminal(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page(""), &article.StatusError{Code: 404}).Once()
	cloud := newMockTier(article.MethodCloudBrowser)
	local := newMockTier(article.MethodLocalBrowser)

	got := newFetcher(t, nil, Tiers{Direct: direct, Cloud: cloud, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	assert.False(t, got.OK())
	assert.Equal(t, "HTTP error: 404", got.Error)
	assert.Equal(t, article.MethodDirect, got.Method)
	cloud.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	local.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestFetchArticleWithoutCloudGoesStraightToLocal(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page(""), &article.StatusError{Code: 429}).Once()
	local := newMockTier(article.MethodLocalBrowser)
	local.On("Fetch", mock.Anything, storyURL).Return(page("local render"), nil).Once()

	got := newFetcher(t, nil, Tiers{Direct: direct, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, article.MethodLocalBrowser, got.Method)
	local.AssertExpectations(t)
}

func TestFetchArticleNoContentEscalates(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page("   "), nil).Once()
	local := newMockTier(article.MethodLocalBrowser)
	local.On("Fetch", mock.Anything, storyURL).Return(page("hydrated"), nil).Once()

	got := newFetcher(t, nil, Tiers{Direct: direct, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, "hydrated", got.Content)
}

func TestFetchArticleChallengePageEscalates(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).
		Return(page("<title>Just a moment...</title>"), nil).Once()
	local := newMockTier(article.MethodLocalBrowser)
	local.On("Fetch", mock.Anything, storyURL).Return(page("real article"), nil).Once()

	got := newFetcher(t, nil, Tiers{Direct: direct, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, article.MethodLocalBrowser, got.Method)
}

func TestFetchArticleDirectPageQuotingMarkerIsNotChallenge(t *testing.T) {
	t.Parallel()

	body := "<html><head><title>Waiting on the Fed</title></head><body>" +
		"<p>Just a moment, said the chair, before answering.</p></body></html>"
	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page(body), nil).Once()
	local := newMockTier(article.MethodLocalBrowser)

	got := newFetcher(t, nil, Tiers{Direct: direct, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, article.MethodDirect, got.Method)
	local.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestFetchArticleComposesFallbackErrors(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(page(""), &article.StatusError{Code: 403}).Once()
	cloud := newMockTier(article.MethodCloudBrowser)
	cloud.On("Fetch", mock.Anything, storyURL).Return(article.Page{}, context.DeadlineExceeded).Once()
	local := newMockTier(article.MethodLocalBrowser)
	local.On("Fetch", mock.Anything, storyURL).Return(page(""), nil).Once()

	got := newFetcher(t, nil, Tiers{Direct: direct, Cloud: cloud, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	assert.False(t, got.OK())
	assert.Equal(t, article.MethodDirect, got.Method)
	assert.Equal(t,
		"HTTP error: 403 (Fallbacks failed: cloud-browser: Browser navigation timed out; "+
			"local-browser: Could not extract content from page)",
		got.Error)
}

func TestFetchArticleTimeoutIsTerminal(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).
		Return(article.Page{}, errors.Join(errors.New("get"), context.DeadlineExceeded)).Once()
	local := newMockTier(article.MethodLocalBrowser)

	got := newFetcher(t, nil, Tiers{Direct: direct, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	assert.Equal(t, "Request timed out", got.Error)
	local.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestFetchArticleTransportFailure(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(article.Page{}, errors.New("no such host")).Once()

	got := newFetcher(t, nil, Tiers{Direct: direct}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	assert.Equal(t, "Request failed: no such host", got.Error)
}

func TestFetchArticleUsesResolvedURL(t *testing.T) {
	t.Parallel()

	const destination = "https://publisher.example.com/2024/story"
	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, destination).Return(article.Page{
		URL: destination, FinalURL: destination, StatusCode: 200, HTML: "story body",
	}, nil).Once()

	got := newFetcher(t, stubResolver{to: destination}, Tiers{Direct: direct}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	require.True(t, got.OK())
	assert.Equal(t, storyURL, got.URL)
	assert.Equal(t, destination, got.FinalURL)
	direct.AssertExpectations(t)
}

func TestFetchArticleReportsObservedRedirect(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).Return(article.Page{
		URL: storyURL, FinalURL: storyURL + "?amp=1", StatusCode: 200, HTML: "body",
	}, nil).Once()

	got := newFetcher(t, stubResolver{msg: "HTTP error: 405"}, Tiers{Direct: direct}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{})

	assert.Equal(t, storyURL+"?amp=1", got.FinalURL)
}

func TestFetchArticleTierBudgets(t *testing.T) {
	t.Parallel()

	budget := func(args mock.Arguments) time.Duration {
		deadline, ok := args.Get(0).(context.Context).Deadline()
		require.True(t, ok)
		return time.Until(deadline)
	}
	var directBudget, cloudBudget, localBudget time.Duration

	direct := newMockTier(article.MethodDirect)
	direct.On("Fetch", mock.Anything, storyURL).
		Run(func(args mock.Arguments) { directBudget = budget(args) }).
		Return(page(""), &article.StatusError{Code: 503}).Once()
	cloud := newMockTier(article.MethodCloudBrowser)
	cloud.On("Fetch", mock.Anything, storyURL).
		Run(func(args mock.Arguments) { cloudBudget = budget(args) }).
		Return(article.Page{}, errors.New("session refused")).Once()
	local := newMockTier(article.MethodLocalBrowser)
	local.On("Fetch", mock.Anything, storyURL).
		Run(func(args mock.Arguments) { localBudget = budget(args) }).
		Return(page("ok"), nil).Once()

	got := newFetcher(t, nil, Tiers{Direct: direct, Cloud: cloud, Local: local}).
		FetchArticle(context.Background(), storyURL, article.FetchOptions{Timeout: 5 * time.Second})

	require.True(t, got.OK())
	assert.InDelta(t, 5*time.Second, directBudget, float64(time.Second))
	assert.InDelta(t, 60*time.Second, cloudBudget, float64(time.Second))
	assert.InDelta(t, 30*time.Second, localBudget, float64(time.Second))
}

func TestFetchArticleCanceledContext(t *testing.T) {
	t.Parallel()

	direct := newMockTier(article.MethodDirect)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newFetcher(t, nil, Tiers{Direct: direct}).
		FetchArticle(ctx, storyURL, article.FetchOptions{})

	assert.False(t, got.OK())
	assert.Contains(t, got.Error, "context canceled")
	direct.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestNewRequiresDirectTier(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, Tiers{}, stubExtractor{}, nil)
	require.Error(t, err)

	_, err = New(Config{}, nil, Tiers{Direct: newMockTier(article.MethodDirect)}, nil, nil)
	require.Error(t, err)
}
