// Package main hosts the newsletter extractor entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes POST /extract, /health and /metrics behind request-ID,
//     logging, recovery and metrics middleware. Linked-article fetching is bounded by a per-request
//     fetch budget; when it lapses the extraction is still returned with the fetch errors recorded.
//   - Extraction: internal/pipeline parses the newsletter with goquery, runs the read-more and
//     article-container strategies, and falls back to whole-document main content.
//   - Fetching: when asked, every article link is resolved through its tracking redirects and fetched
//     by the tiered fetcher (direct HTTP, then cloud browser, then local browser), fanned out by the
//     dispatcher under a concurrency cap and optional per-host pacing.
//   - Configuration & plumbing: Viper populates config from env/files (EXTRACTOR_ prefix); zap provides
//     structured logging; Prometheus metrics are exported on /metrics.
//
// Quick checklist:
//   - Set BROWSERLESS_API_KEY (or EXTRACTOR_CLOUD_BROWSER_API_KEY) to enable the cloud browser tier.
//   - Set EXTRACTOR_LOCAL_BROWSER_ENABLED=false on hosts without Chromium.
//   - Run the service: go run ./cmd/extractor serve -config config.yaml
//   - One-off extraction: go run ./cmd/extractor extract newsletter.html --base-url https://example.com
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
