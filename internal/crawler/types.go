package crawler

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Sentinel errors shared across the traversal engine.
var (
	// ErrNoContent is returned when a fetched page lacks the primary content container.
	ErrNoContent = errors.New("article content container not found")
	// ErrFetchFailed marks a transient failure to retrieve article markup.
	ErrFetchFailed = errors.New("article fetch failed")
	// ErrPersistence marks a sink rejecting a completed path.
	ErrPersistence = errors.New("path persistence failed")
	// ErrJobPanicked is reported when a crawl job panics; siblings keep running.
	ErrJobPanicked = errors.New("crawl job panicked")
	// ErrNoStart is reported when a random start article could not be resolved.
	ErrNoStart = errors.New("no start article")
)

// ArticleRef identifies an article by its canonical locator. Title is a cached
// projection resolved on demand and may be empty or stale; it never takes part
// in identity.
type ArticleRef struct {
	Locator string `json:"locator"`
	Title   string `json:"title"`
}

// NewArticleRef returns a ref whose title is derived from the locator.
func NewArticleRef(locator string) ArticleRef {
	return ArticleRef{Locator: locator, Title: TitleFromLocator(locator)}
}

// Same reports whether both refs point at the same article.
func (a ArticleRef) Same(other ArticleRef) bool {
	return a.Locator == other.Locator
}

// DisplayTitle returns the cached title or, when unresolved, one derived from the locator.
func (a ArticleRef) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return TitleFromLocator(a.Locator)
}

// Page is the raw response returned by a ContentSource.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// CrawlJob is the unit submitted to the controller's pool. A nil Start means
// the walker picks a random article.
type CrawlJob struct {
	ID    string
	Start *ArticleRef
}

// JobResult is returned for every job the controller accepted.
type JobResult struct {
	JobID     string        `json:"job_id"`
	Outcome   Outcome       `json:"outcome"`
	Path      Path          `json:"path"`
	StorageID string        `json:"storage_id,omitempty"`
	Stored    bool          `json:"stored"`
	Discarded bool          `json:"discarded"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// PathStoredEvent is published after a path has been persisted.
type PathStoredEvent struct {
	StorageID    string    `json:"storage_id"`
	JobID        string    `json:"job_id"`
	StartArticle string    `json:"start_article"`
	EndArticle   string    `json:"end_article"`
	Steps        int       `json:"steps"`
	Outcome      string    `json:"outcome"`
	StoredAt     time.Time `json:"stored_at"`
}

type jobIDKey struct{}

// WithJobID attaches the running job's ID to ctx so sinks can record it.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFrom returns the job ID attached by WithJobID, or "".
func JobIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}
