package stealth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

func TestNewDisabled(t *testing.T) {
	t.Parallel()

	tier, err := New(Config{Enabled: false})

	require.Nil(t, tier)
	require.True(t, errors.Is(err, article.ErrUnavailable))
}

func TestNewEnabled(t *testing.T) {
	t.Parallel()

	tier, err := New(Config{Enabled: true})

	require.NoError(t, err)
	require.Equal(t, article.MethodLocalBrowser, tier.Method())
	require.NotNil(t, tier.cfg.Waiter)
	require.Equal(t, 10, tier.cfg.Waiter.Attempts)
}

func TestFetchMissingBinaryIsUnavailable(t *testing.T) {
	t.Parallel()

	tier, err := New(Config{Enabled: true, BinPath: "/nonexistent/chromium"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = tier.Fetch(ctx, "https://example.com")

	require.Error(t, err)
	require.True(t, errors.Is(err, article.ErrUnavailable))
}
