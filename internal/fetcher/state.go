package fetcher

import (
	"context"
	"errors"
	"net"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
)

// State is a position in the escalation machine.
type State int

// Escalation states. Succeeded and Failed are terminal.
const (
	StateDirect State = iota
	StateCloudBrowser
	StateLocalBrowser
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDirect:
		return "direct"
	case StateCloudBrowser:
		return "cloud_browser"
	case StateLocalBrowser:
		return "local_browser"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempts follow s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// OutcomeKind classifies the result of one tier attempt.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeAntiBotStatus
	OutcomeOtherStatus
	OutcomeNoContent
	OutcomeTimeout
	OutcomeTransport
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAntiBotStatus:
		return "anti_bot_status"
	case OutcomeOtherStatus:
		return "other_status"
	case OutcomeNoContent:
		return "no_content"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransport:
		return "transport"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// antiBotStatuses are the HTTP statuses that suggest bot protection rather
// than a missing page.
var antiBotStatuses = map[int]struct{}{
	401: {},
	403: {},
	406: {},
	429: {},
	503: {},
}

// transitions is the escalation guard table. Direct only escalates on signs of
// bot protection; browser failures of any kind fall through to the next tier.
var transitions = map[State]map[OutcomeKind]State{
	StateDirect: {
		OutcomeSuccess:       StateSucceeded,
		OutcomeAntiBotStatus: StateCloudBrowser,
		OutcomeNoContent:     StateCloudBrowser,
		OutcomeOtherStatus:   StateFailed,
		OutcomeTimeout:       StateFailed,
		OutcomeTransport:     StateFailed,
		OutcomeUnavailable:   StateFailed,
	},
	StateCloudBrowser: {
		OutcomeSuccess:       StateSucceeded,
		OutcomeAntiBotStatus: StateLocalBrowser,
		OutcomeNoContent:     StateLocalBrowser,
		OutcomeOtherStatus:   StateLocalBrowser,
		OutcomeTimeout:       StateLocalBrowser,
		OutcomeTransport:     StateLocalBrowser,
		OutcomeUnavailable:   StateLocalBrowser,
	},
	StateLocalBrowser: {
		OutcomeSuccess:       StateSucceeded,
		OutcomeAntiBotStatus: StateFailed,
		OutcomeNoContent:     StateFailed,
		OutcomeOtherStatus:   StateFailed,
		OutcomeTimeout:       StateFailed,
		OutcomeTransport:     StateFailed,
		OutcomeUnavailable:   StateFailed,
	},
}

// Next returns the state that follows outcome in state. Unknown pairs fail.
func Next(state State, outcome OutcomeKind) State {
	if next, ok := transitions[state][outcome]; ok {
		return next
	}
	return StateFailed
}

// Classify maps a tier error onto an outcome kind.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}
	var statusErr *article.StatusError
	if errors.As(err, &statusErr) {
		if _, ok := antiBotStatuses[statusErr.Code]; ok {
			return OutcomeAntiBotStatus
		}
		return OutcomeOtherStatus
	}
	if errors.Is(err, article.ErrNoContent) {
		return OutcomeNoContent
	}
	if errors.Is(err, article.ErrUnavailable) {
		return OutcomeUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeTransport
}
