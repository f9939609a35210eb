// Package extractor resolves an article's display title and its first
// qualifying outbound link.
package extractor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	"github.com/JakeFAU/wikipath-crawler/internal/metrics"
)

// Config tunes the retry behavior of Resolve.
type Config struct {
	MaxAttempts      int
	RetryBackoff     time.Duration
	NoContentBackoff time.Duration
}

// Resolution is what Resolve learned about one article.
type Resolution struct {
	Title    string
	Next     *crawler.ArticleRef
	Stage    Stage
	Degraded bool
	Attempts int
}

// Extractor fetches articles through a ContentSource and parses them.
type Extractor struct {
	source crawler.ContentSource
	retry  *crawler.FixedRetryPolicy
	cfg    Config
	pauser crawler.Pauser
	logger *zap.Logger
}

// New builds an Extractor.
func New(source crawler.ContentSource, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NoContentBackoff < 0 {
		cfg.NoContentBackoff = time.Second
	}
	return &Extractor{
		source: source,
		retry:  crawler.NewFixedRetryPolicy(cfg.MaxAttempts, cfg.RetryBackoff),
		cfg:    cfg,
		pauser: crawler.TimerPauser{},
		logger: logger.Named("extractor"),
	}
}

// WithPauser swaps the pauser used between retries.
func (e *Extractor) WithPauser(p crawler.Pauser) *Extractor {
	if p != nil {
		e.pauser = p
	}
	return e
}

// Resolve fetches ref and returns its title and first link. Transient failures
// are retried with a fixed backoff; once attempts run out the title falls back
// to one derived from the locator and Next is nil. Resolve never returns an
// error: a missing link and an unreachable article both surface as Next == nil.
func (e *Extractor) Resolve(ctx context.Context, ref crawler.ArticleRef) Resolution {
	logger := e.logger.With(zap.String("locator", ref.Locator))
	for attempt := 1; ; attempt++ {
		res, err := e.attempt(ctx, ref.Locator)
		if err == nil {
			if res.Next == nil {
				logger.Debug("no qualifying link", zap.String("title", res.Title))
			}
			metrics.ObserveExtraction(string(res.Stage))
			return Resolution{
				Title:    res.Title,
				Next:     res.Next,
				Stage:    res.Stage,
				Attempts: attempt,
			}
		}

		if ctx.Err() != nil || !e.retry.ShouldRetry(err, attempt) {
			logger.Warn("article unresolved, using locator title",
				zap.Int("attempts", attempt), zap.Error(err))
			return Resolution{
				Title:    crawler.TitleFromLocator(ref.Locator),
				Stage:    StageNone,
				Degraded: true,
				Attempts: attempt,
			}
		}

		delay := e.retry.Backoff(attempt)
		if errors.Is(err, crawler.ErrNoContent) {
			delay = e.cfg.NoContentBackoff
		}
		logger.Info("retrying article",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.retry.MaxAttempts()),
			zap.Duration("backoff", delay),
			zap.Error(err))
		metrics.ObserveExtractionRetry()
		e.pauser.Pause(ctx, delay)
	}
}

func (e *Extractor) attempt(ctx context.Context, locator string) (Result, error) {
	page, err := e.source.Fetch(ctx, locator)
	if err != nil {
		return Result{}, err
	}
	return Parse(locator, page.Body)
}
