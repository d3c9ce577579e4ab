package monitor

import (
	"context"
	"time"
)

// Fetcher loads a URL and returns the rendered page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RenderedPage, error)
}

// Classifier maps a rendered page to a verdict. Implementations must not fail.
type Classifier interface {
	Classify(page RenderedPage, target CheckTarget, attempt int, checkedAt time.Time) Verdict
}

// Notifier delivers a message to every configured recipient and returns the
// number of successful deliveries.
type Notifier interface {
	Notify(ctx context.Context, message string) int
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
