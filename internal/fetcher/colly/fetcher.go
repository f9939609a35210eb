// Package collyfetcher implements crawler.ContentSource using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	"github.com/JakeFAU/wikipath-crawler/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	BaseURL       string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// pacer blocks until the next request to a locator may be sent.
type pacer interface {
	Wait(ctx context.Context, locator string) error
}

// Fetcher implements crawler.ContentSource using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	pacer         pacer
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. pacer may be nil to disable request pacing.
func New(cfg Config, pacer pacer, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = crawler.DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	logger = logger.Named("fetcher")
	var transport http.RoundTripper = newHTTPTransport()
	if cfg.RespectRobots {
		transport = &robotsTransport{base: transport, logger: logger}
	}

	// Special:Random always has the same URL; revisits must be allowed.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		pacer:         pacer,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET for the article at locator. Non-2xx
// responses are reported as errors wrapping crawler.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (crawler.Page, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx, locator); err != nil {
			return crawler.Page{}, err
		}
	}

	var (
		page     crawler.Page
		fetchErr error
	)
	collector := f.buildCollector(ctx, locator, time.Now(), &page, &fetchErr)
	if err := f.runCollector(ctx, collector, locator, &fetchErr); err != nil {
		metrics.ObserveFetch(locator, "error", 0)
		return crawler.Page{}, err
	}
	metrics.ObserveFetch(locator, "ok", len(page.Body))
	return page, nil
}

// RandomArticle follows the random-article redirect and returns where it
// landed.
func (f *Fetcher) RandomArticle(ctx context.Context) (crawler.ArticleRef, error) {
	page, err := f.Fetch(ctx, f.cfg.BaseURL+crawler.RandomArticlePath)
	if err != nil {
		return crawler.ArticleRef{}, fmt.Errorf("random article: %w", err)
	}
	locator, err := crawler.NormalizeURL(page.FinalURL)
	if err != nil {
		return crawler.ArticleRef{}, fmt.Errorf("random article: %w", err)
	}
	f.logger.Debug("random article resolved", zap.String("locator", locator))
	return crawler.NewArticleRef(locator), nil
}

// buildCollector clones the base collector, which shares its HTTP backend, so
// transport and timeout are only ever set on the base in New.
func (f *Fetcher) buildCollector(
	ctx context.Context,
	locator string,
	start time.Time,
	page *crawler.Page,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx

	page.URL = locator
	f.configureCollectorHooks(collector, start, page, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	page *crawler.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*page = crawler.Page{
			URL:        page.URL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("%w: status %d: %w", crawler.ErrFetchFailed, r.StatusCode, err)
			return
		}
		*fetchErr = fmt.Errorf("%w: %w", crawler.ErrFetchFailed, err)
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
