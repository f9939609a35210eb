package crawler

import (
	"context"
	"time"
)

// ContentSource is the only network dependency of the traversal engine.
type ContentSource interface {
	// Fetch retrieves the rendered markup of the article at locator.
	Fetch(ctx context.Context, locator string) (Page, error)
	// RandomArticle resolves some valid article.
	RandomArticle(ctx context.Context) (ArticleRef, error)
}

// PersistenceSink durably stores completed paths. Implementations must be safe
// for concurrent use by multiple workers.
type PersistenceSink interface {
	LoadExistingTitles(ctx context.Context) ([]string, error)
	Store(ctx context.Context, path Path, outcome Outcome) (string, error)
}

// SizeMonitor reports the current size of the storage backing a sink.
type SizeMonitor interface {
	CurrentSizeGB(ctx context.Context) (float64, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TitleSet is a read-only view over recorded article titles.
type TitleSet interface {
	Contains(title string) bool
	Len() int
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
