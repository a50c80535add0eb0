// Package detector recognises anti-bot interstitials and waits them out in a
// live browser page.
package detector

import (
	"strings"
)

// settledMinBytes is the document size above which a page without challenge
// markup is assumed to carry real content.
const settledMinBytes = 5000

var challengeMarkers = []string{
	"Verifying you are human",
	"Just a moment",
}

// IsChallenge reports whether html is an interstitial verification page.
func IsChallenge(html string) bool {
	for _, marker := range challengeMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(html), "checking your browser")
}

// Settled reports whether html looks like a real document: no challenge
// platform script and a meaningful size.
func Settled(html string) bool {
	return !strings.Contains(html, "challenge-platform") && len(html) > settledMinBytes
}

// IsChallengeDocument is the stricter check for pages fetched without a
// browser, where nothing can be waited out: the challenge platform script must
// be present or a challenge marker must be the page title. Article text that
// merely quotes a marker does not count.
func IsChallengeDocument(html string) bool {
	if strings.Contains(html, "challenge-platform") {
		return true
	}
	title := pageTitle(html)
	return title != "" && IsChallenge(title)
}

func pageTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return ""
	}
	open := strings.Index(lower[start:], ">")
	if open < 0 {
		return ""
	}
	start += open + 1
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return html[start : start+end]
}
