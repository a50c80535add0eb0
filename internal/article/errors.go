package article

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContent means the page loaded but no readable content could be extracted.
	ErrNoContent = errors.New("could not extract content from page")
	// ErrUnavailable means a tier is not configured or its runtime is missing.
	ErrUnavailable = errors.New("fetch tier unavailable")
)

// StatusError reports a non-success HTTP status from a fetch tier.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.Code)
}
