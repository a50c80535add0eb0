package detector

import (
	"context"
	"fmt"
	"time"
)

// ContentSelector matches the elements that signal an article has rendered.
const ContentSelector = "article, main, .content, .article-body, .post-content, p"

// Page is the part of a browser page the Waiter drives.
type Page interface {
	HTML(ctx context.Context) (string, error)
	WaitSelector(ctx context.Context, selector string) error
}

// Waiter polls a freshly navigated page until any challenge clears.
type Waiter struct {
	Interval    time.Duration
	Attempts    int
	ContentWait time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWaiter builds a Waiter, filling unset fields with defaults.
func NewWaiter(interval time.Duration, attempts int, contentWait time.Duration) *Waiter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if attempts <= 0 {
		attempts = 10
	}
	if contentWait <= 0 {
		contentWait = 5 * time.Second
	}
	return &Waiter{Interval: interval, Attempts: attempts, ContentWait: contentWait, sleep: sleepCtx}
}

// captureReserve is the most Settle leaves unused before ctx's deadline so the
// caller can still read whatever the page has rendered.
const captureReserve = 3 * time.Second

// Settle waits on page in two phases. It polls every Interval, up to Attempts
// times, stopping early once the page is settled and not a challenge. Then it
// waits up to ContentWait for ContentSelector; a missing selector is not an
// error. When ctx has a deadline both phases stop short of it, leaving time to
// capture the page. Only cancellation of ctx itself and page read failures are
// returned.
func (w *Waiter) Settle(ctx context.Context, page Page) error {
	sleep := w.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	pollCtx, cancelPoll := pollContext(ctx)
	defer cancelPoll()

	for i := 0; i < w.Attempts; i++ {
		if err := sleep(pollCtx, w.Interval); err != nil {
			break
		}
		html, err := page.HTML(pollCtx)
		if err != nil {
			if pollCtx.Err() != nil {
				break
			}
			return fmt.Errorf("read page: %w", err)
		}
		if IsChallenge(html) {
			continue
		}
		if Settled(html) {
			break
		}
	}

	if ctx.Err() == nil && pollCtx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(pollCtx, w.ContentWait)
		_ = page.WaitSelector(waitCtx, ContentSelector)
		cancel()
	}
	return ctx.Err()
}

// pollContext ends before ctx's deadline by captureReserve, or by a quarter of
// the remaining time when that is smaller.
func pollContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	reserve := min(captureReserve, time.Until(deadline)/4)
	return context.WithDeadline(ctx, deadline.Add(-reserve))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
