// Package app builds the long-lived services of a crawl run from configuration
// and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/clock/system"
	"github.com/JakeFAU/wikipath-crawler/internal/config"
	"github.com/JakeFAU/wikipath-crawler/internal/controller"
	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	"github.com/JakeFAU/wikipath-crawler/internal/extractor"
	collyfetcher "github.com/JakeFAU/wikipath-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/wikipath-crawler/internal/id/uuid"
	"github.com/JakeFAU/wikipath-crawler/internal/metrics"
	"github.com/JakeFAU/wikipath-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/wikipath-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/wikipath-crawler/internal/publisher/pubsub"
	memorystorage "github.com/JakeFAU/wikipath-crawler/internal/storage/memory"
	"github.com/JakeFAU/wikipath-crawler/internal/storage/postgres"
	"github.com/JakeFAU/wikipath-crawler/internal/walker"
)

// Source fetches articles and picks random ones.
type Source interface {
	crawler.ContentSource
	walker.RandomPicker
}

// Sink persists paths and reports its size.
type Sink interface {
	crawler.PersistenceSink
	crawler.SizeMonitor
}

// App holds the services of one run.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	source     Source
	sink       Sink
	publisher  crawler.Publisher
	extractor  *extractor.Extractor
	walker     *walker.Walker
	controller *controller.Controller
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Option overrides a service New would otherwise build from config.
type Option func(*App)

// WithSource replaces the Colly content source.
func WithSource(src Source) Option {
	return func(a *App) { a.source = src }
}

// WithSink replaces the configured persistence sink.
func WithSink(sink Sink) Option {
	return func(a *App) { a.sink = sink }
}

// WithPublisher replaces the configured publisher.
func WithPublisher(pub crawler.Publisher) Option {
	return func(a *App) { a.publisher = pub }
}

// New builds every service from cfg. On error, anything already opened is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	metrics.Init()

	if a.source == nil {
		limiter := ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Wiki.RequestsPerSecond,
			Burst:             cfg.Wiki.Burst,
		})
		a.source = collyfetcher.New(collyfetcher.Config{
			BaseURL:       cfg.Wiki.BaseURL,
			UserAgent:     cfg.Wiki.UserAgent,
			RespectRobots: cfg.Wiki.RespectRobots,
			Timeout:       cfg.Wiki.RequestTimeout,
		}, limiter, logger)
		logger.Info("using colly content source",
			zap.String("base_url", cfg.Wiki.BaseURL),
			zap.Float64("requests_per_second", cfg.Wiki.RequestsPerSecond))
	}

	if a.sink == nil {
		if a.sink, err = a.buildSink(ctx); err != nil {
			return nil, err
		}
	}

	if a.publisher == nil {
		if a.publisher, err = a.buildPublisher(ctx); err != nil {
			return nil, err
		}
	}

	a.extractor = extractor.New(a.source, extractor.Config{
		MaxAttempts:      cfg.Extractor.MaxAttempts,
		RetryBackoff:     cfg.Extractor.RetryBackoff,
		NoContentBackoff: cfg.Extractor.NoContentBackoff,
	}, logger)

	a.walker = walker.New(a.extractor, a.source, BuildPolicy(cfg.Walker), cfg.Walker.StepDelay, logger)

	topic := ""
	if a.publisher != nil {
		topic = cfg.Publisher.Topic
	}
	a.controller = controller.New(controller.Config{
		Workers:           cfg.Controller.Workers,
		MaxSizeGB:         cfg.Controller.MaxSizeGB,
		SizeCheckInterval: cfg.Controller.SizeCheckInterval,
		StartRetries:      cfg.Controller.StartRetries,
		NoStartBackoff:    cfg.Controller.NoStartBackoff,
		PublishTopic:      topic,
	}, a.walker, a.source, a.sink, a.sink, a.publisher, uuid.New(), system.New(), logger)

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.String("policy", a.walker.Policy().Name),
		zap.Int("workers", cfg.Controller.Workers))
	return a, nil
}

func (a *App) buildSink(ctx context.Context) (Sink, error) {
	switch a.cfg.Storage.Provider {
	case "postgres":
		pg := a.cfg.Storage.Postgres
		store, err := postgres.NewPathStore(ctx, postgres.PathStoreConfig{
			DSN:             pg.DSN,
			PathsTable:      pg.PathsTable,
			NodesTable:      pg.NodesTable,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		a.addCloser("postgres", func() error {
			store.Close()
			return nil
		})
		a.logger.Info("using postgres storage", zap.String("paths_table", pg.PathsTable))
		return store, nil
	case "memory", "":
		a.logger.Info("using in-memory storage; paths are lost on exit")
		return memorystorage.NewPathStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (crawler.Publisher, error) {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		pub, err := pubsubpublisher.New(ctx, a.cfg.Publisher.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.addCloser("pubsub", pub.Close)
		a.logger.Info("publishing path events to pubsub", zap.String("topic", a.cfg.Publisher.Topic))
		return pub, nil
	case "memory":
		return memorypublisher.New(), nil
	case "noop", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// BuildPolicy turns walker configuration into a walk Policy.
func BuildPolicy(cfg config.WalkerConfig) walker.Policy {
	if cfg.Mode == config.ModeDirected {
		return walker.DirectedPolicy(cfg.TargetTitle, cfg.TargetDepth, cfg.MaxSteps)
	}
	return walker.DeepPolicy(cfg.MaxSteps)
}

// JobSource builds the run's jobs: the configured start articles, then
// random_articles random starts, capped at max_jobs. Without start articles,
// random_articles of zero means random starts until the run stops.
func (a *App) JobSource() (controller.JobSource, error) {
	c := a.cfg.Controller
	refs := make([]crawler.ArticleRef, 0, len(c.StartArticles))
	for _, s := range c.StartArticles {
		ref, err := crawler.ArticleFromTitle(a.cfg.Wiki.BaseURL, s)
		if err != nil {
			return nil, fmt.Errorf("start article %q: %w", s, err)
		}
		refs = append(refs, ref)
	}

	var src controller.JobSource
	switch {
	case len(refs) == 0:
		src = controller.RandomJobs(c.RandomArticles)
	case c.RandomArticles > 0:
		src = controller.ChainJobs(controller.ListJobs(refs...), controller.RandomJobs(c.RandomArticles))
	default:
		src = controller.ListJobs(refs...)
	}
	return controller.LimitJobs(src, c.MaxJobs), nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Controller returns the run's controller.
func (a *App) Controller() *controller.Controller { return a.controller }

// Walker returns the configured walker.
func (a *App) Walker() *walker.Walker { return a.walker }

// Sink returns the persistence sink.
func (a *App) Sink() Sink { return a.sink }

// Publisher returns the configured publisher, or nil when events are disabled.
func (a *App) Publisher() crawler.Publisher { return a.publisher }

// Close releases every opened service in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
