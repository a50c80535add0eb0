package direct

import (
	"fmt"
	"net/http"
	"sync"
)

// RedirectTrail records the redirect hops of one request.
type RedirectTrail struct {
	max int

	mu   sync.Mutex
	hops []string
}

// NewRedirectTrail creates a trail that refuses chains longer than max hops.
func NewRedirectTrail(max int) *RedirectTrail {
	if max <= 0 {
		max = DefaultMaxRedirects
	}
	return &RedirectTrail{max: max}
}

func (t *RedirectTrail) check(req *http.Request, via []*http.Request) error {
	if len(via) >= t.max {
		return fmt.Errorf("stopped after %d redirects", t.max)
	}
	t.mu.Lock()
	t.hops = append(t.hops, req.URL.String())
	t.mu.Unlock()
	return nil
}

// Last returns the most recent redirect target, or "" when none were followed.
func (t *RedirectTrail) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.hops) == 0 {
		return ""
	}
	return t.hops[len(t.hops)-1]
}

func (t *RedirectTrail) final(requested string) string {
	if last := t.Last(); last != "" {
		return last
	}
	return requested
}
