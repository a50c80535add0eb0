// Package blocklist decides which linked-article hosts may be fetched.
package blocklist

import (
	"net/url"
	"strings"
)

// Policy matches hosts against exact entries and suffix wildcards ("*.example.com"
// or ".example.com"). A nil Policy allows everything.
type Policy struct {
	exact    map[string]struct{}
	suffixes []string
}

// New builds a Policy from patterns. It returns nil when no usable pattern is given.
func New(patterns []string) *Policy {
	p := &Policy{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			p.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			p.addSuffix(strings.TrimPrefix(value, "."))
		default:
			p.exact[value] = struct{}{}
		}
	}
	if len(p.exact) == 0 && len(p.suffixes) == 0 {
		return nil
	}
	return p
}

func (p *Policy) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range p.suffixes {
		if existing == suffix {
			return
		}
	}
	p.suffixes = append(p.suffixes, suffix)
}

// IsBlocked reports whether host matches any pattern.
func (p *Policy) IsBlocked(host string) bool {
	if p == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := p.exact[host]; exact {
		return true
	}
	for _, suffix := range p.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// AllowFetch reports whether rawURL's host may be fetched. Unparseable URLs
// are allowed through; the fetcher reports their failure.
func (p *Policy) AllowFetch(rawURL string) bool {
	if p == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return !p.IsBlocked(u.Hostname())
}
