package extractor

import (
	"net/url"
	"strings"
)

var rejectedPrefixes = []string{"mailto:", "tel:", "javascript:", "#", "data:"}

// NormalizeURL cleans an href and resolves it against base when it is relative.
// It returns false when the href cannot be fetched and should be skipped.
func NormalizeURL(href, base string) (string, bool) {
	raw := strings.TrimSpace(href)
	if raw == "" {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, prefix := range rejectedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	if base != "" && !isAbsoluteHTTP(lower) {
		resolved, ok := resolveReference(base, raw)
		if !ok {
			return "", false
		}
		raw = resolved
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return raw, true
}

func isAbsoluteHTTP(lower string) bool {
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func resolveReference(base, ref string) (string, bool) {
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", false
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return baseURL.ResolveReference(refURL).String(), true
}
