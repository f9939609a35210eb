// Package controller schedules many walks against a shared visited set and a
// storage ceiling, feeding completed paths to a persistence sink.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/clock/system"
	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	"github.com/JakeFAU/wikipath-crawler/internal/metrics"
	"github.com/JakeFAU/wikipath-crawler/internal/walker"
)

// Stop reasons recorded on the StopFlag.
const (
	ReasonStorageCeiling = "storage ceiling reached"
	ReasonInterrupted    = "interrupted"
)

// Defaults applied by New.
const (
	DefaultWorkers           = 6
	DefaultSizeCheckInterval = 10 * time.Second
	DefaultStartRetries      = 5
	DefaultNoStartBackoff    = time.Second
)

// Config controls the controller.
type Config struct {
	Workers           int
	MaxSizeGB         float64
	SizeCheckInterval time.Duration
	StartRetries      int
	// NoStartBackoff is how long a job waits after failing to resolve a
	// random start, so an unreachable wiki is not polled in a tight loop.
	NoStartBackoff    time.Duration
	PublishTopic      string
}

// PathWalker runs one walk.
type PathWalker interface {
	Walk(ctx context.Context, start *crawler.ArticleRef, visited crawler.TitleSet) (crawler.Path, crawler.Outcome)
	Policy() walker.Policy
}

// Controller owns the worker pool, the visited set and the stop flag of a run.
type Controller struct {
	cfg       Config
	walker    PathWalker
	picker    walker.RandomPicker
	sink      crawler.PersistenceSink
	monitor   crawler.SizeMonitor
	publisher crawler.Publisher
	ids       crawler.IDGenerator
	clock     crawler.Clock
	logger    *zap.Logger

	visited *VisitedSet
	stop    *StopFlag
	stats   *Stats
}

// New constructs a Controller. monitor and publisher may be nil.
func New(
	cfg Config,
	w PathWalker,
	picker walker.RandomPicker,
	sink crawler.PersistenceSink,
	monitor crawler.SizeMonitor,
	publisher crawler.Publisher,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.SizeCheckInterval <= 0 {
		cfg.SizeCheckInterval = DefaultSizeCheckInterval
	}
	if cfg.StartRetries <= 0 {
		cfg.StartRetries = DefaultStartRetries
	}
	if cfg.NoStartBackoff <= 0 {
		cfg.NoStartBackoff = DefaultNoStartBackoff
	}
	if clock == nil {
		clock = system.New()
	}
	return &Controller{
		cfg:       cfg,
		walker:    w,
		picker:    picker,
		sink:      sink,
		monitor:   monitor,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		logger:    logger.Named("controller"),
		visited:   NewVisitedSet(),
		stop:      NewStopFlag(),
		stats:     NewStats(cfg.MaxSizeGB),
	}
}

// Visited exposes the run's visited set.
func (c *Controller) Visited() *VisitedSet { return c.visited }

// StopFlag exposes the run's stop flag.
func (c *Controller) StopFlag() *StopFlag { return c.stop }

// Snapshot reports current progress.
func (c *Controller) Snapshot() StatsSnapshot { return c.stats.Snapshot() }

// Seed loads every title the sink already holds into the visited set.
func (c *Controller) Seed(ctx context.Context) error {
	titles, err := c.sink.LoadExistingTitles(ctx)
	if err != nil {
		return fmt.Errorf("seed visited set: %w", err)
	}
	added := c.visited.Merge(titles)
	c.recordVisited()
	c.logger.Info("visited set seeded", zap.Int("titles", added))
	return nil
}

// SubmitJob runs one job to completion. It returns false without walking when
// the stop flag is already set. A walk that finishes after the flag was raised
// is discarded rather than stored.
func (c *Controller) SubmitJob(ctx context.Context, job crawler.CrawlJob) (res crawler.JobResult, accepted bool) {
	if c.stop.IsSet() {
		return crawler.JobResult{}, false
	}
	if job.ID == "" {
		job.ID = c.newJobID()
	}
	logger := c.logger.With(zap.String("job_id", job.ID))
	started := c.clock.Now()
	res = crawler.JobResult{JobID: job.ID}

	metrics.IncActiveWalkers()
	defer func() {
		metrics.DecActiveWalkers()
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", crawler.ErrJobPanicked, r)
			res.Stored = false
			accepted = true
			logger.Error("job panicked", zap.Any("panic", r))
		}
		res.Duration = c.clock.Now().Sub(started)
		c.stats.Record(res)
		if !res.Path.IsZero() {
			metrics.ObserveJob(string(res.Outcome.Kind), res.Outcome.Steps)
		}
	}()

	// Walks are never cancelled midway; only new work and storage are gated.
	walkCtx := crawler.WithJobID(context.WithoutCancel(ctx), job.ID)

	start := job.Start
	if start == nil {
		start = c.pickStart(walkCtx, logger)
	}
	var snapshot crawler.TitleSet
	if c.walker.Policy().UseGlobalVisited {
		snapshot = c.visited.Snapshot()
	}

	path, outcome := c.walker.Walk(walkCtx, start, snapshot)
	if path.IsZero() {
		res.Err = crawler.ErrNoStart
		logger.Warn("job skipped, no start article", zap.Duration("backoff", c.cfg.NoStartBackoff))
		crawler.TimerPauser{}.Pause(ctx, c.cfg.NoStartBackoff)
		return res, true
	}
	res.Path, res.Outcome = path, outcome
	c.visited.Merge(path.SeenTitles())
	c.recordVisited()

	ran := c.stop.Guard(func() {
		id, err := c.sink.Store(walkCtx, path, outcome)
		if err != nil {
			res.Err = fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
			return
		}
		res.StorageID = id
		res.Stored = true
	})
	switch {
	case !ran:
		res.Discarded = true
		logger.Info("result discarded after stop", zap.String("reason", c.stop.Reason()), zap.Stringer("outcome", outcome))
	case res.Err != nil:
		metrics.ObservePersistFailure()
		logger.Error("store path failed", zap.Stringer("outcome", outcome), zap.Error(res.Err))
	default:
		logger.Info("path stored",
			zap.String("storage_id", res.StorageID),
			zap.String("start", path.Start().DisplayTitle()),
			zap.String("end", path.End().DisplayTitle()),
			zap.Stringer("outcome", outcome))
		c.publishStored(walkCtx, job.ID, res, logger)
	}
	return res, true
}

// Run seeds the visited set, then keeps Workers jobs in flight until the stop
// flag is set or source runs dry, and waits for in-flight jobs to drain.
// Cancelling ctx raises the stop flag; it does not abort running walks.
func (c *Controller) Run(ctx context.Context, source JobSource) Summary {
	if err := c.Seed(ctx); err != nil {
		c.logger.Warn("starting with empty visited set", zap.Error(err))
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	var monitorWG sync.WaitGroup
	if c.monitor != nil && c.cfg.MaxSizeGB > 0 && !c.checkSize(ctx) {
		monitorWG.Add(1)
		go func() {
			defer monitorWG.Done()
			c.monitorSize(monitorCtx)
		}()
	}

	c.logger.Info("crawl started",
		zap.Int("workers", c.cfg.Workers),
		zap.Float64("max_size_gb", c.cfg.MaxSizeGB),
		zap.String("policy", c.walker.Policy().Name))

	results := make(chan struct{}, c.cfg.Workers)
	inFlight := 0
	exhausted := false

	launch := func() bool {
		if ctx.Err() != nil {
			c.stop.Set(ReasonInterrupted)
		}
		if c.stop.IsSet() || exhausted {
			return false
		}
		job, ok := source.Next(ctx)
		if !ok {
			exhausted = true
			return false
		}
		inFlight++
		go func() {
			c.SubmitJob(ctx, job)
			results <- struct{}{}
		}()
		return true
	}

	for inFlight < c.cfg.Workers && launch() {
	}

	interrupted := ctx.Done()
	for inFlight > 0 {
		select {
		case <-results:
			inFlight--
			launch()
		case <-interrupted:
			interrupted = nil
			if c.stop.Set(ReasonInterrupted) {
				c.logger.Warn("interrupt received, draining in-flight jobs", zap.Int("in_flight", inFlight))
			}
		}
	}

	stopMonitor()
	monitorWG.Wait()
	c.checkSize(context.WithoutCancel(ctx))

	if c.stop.IsSet() {
		c.stats.SetStopped(c.stop.Reason())
	}
	summary := c.stats.Summary()
	c.logger.Info("crawl finished",
		zap.Int("jobs", summary.JobsCompleted),
		zap.Int("stored", summary.Stored),
		zap.Int("discarded", summary.Discarded),
		zap.String("stop_reason", summary.StopReason))
	return summary
}

// monitorSize checks storage size on every interval until the ceiling is
// reached, the stop flag is set or ctx ends.
func (c *Controller) monitorSize(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SizeCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop.Done():
			return
		case <-ticker.C:
			if c.checkSize(ctx) {
				return
			}
		}
	}
}

// checkSize polls the monitor and raises the stop flag at the ceiling. It
// reports whether the ceiling was reached.
func (c *Controller) checkSize(ctx context.Context) bool {
	if c.monitor == nil {
		return false
	}
	size, err := c.monitor.CurrentSizeGB(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("storage size check failed", zap.Error(err))
		}
		return false
	}
	c.stats.SetStorageSize(size)
	metrics.SetStorageSizeGB(size)
	c.logger.Info("storage size", zap.Float64("size_gb", size), zap.Float64("max_size_gb", c.cfg.MaxSizeGB))
	if c.cfg.MaxSizeGB <= 0 || size < c.cfg.MaxSizeGB {
		return false
	}
	if c.stop.Set(ReasonStorageCeiling) {
		c.logger.Warn("storage ceiling reached, stopping", zap.Float64("size_gb", size))
	}
	return true
}

// pickStart resolves a random start article, re-rolling while the title is
// already recorded. After StartRetries re-rolls the last pick is used. A nil
// result lets the walker resolve its own random start.
func (c *Controller) pickStart(ctx context.Context, logger *zap.Logger) *crawler.ArticleRef {
	if c.picker == nil {
		return nil
	}
	var last *crawler.ArticleRef
	for attempt := 0; attempt <= c.cfg.StartRetries; attempt++ {
		ref, err := c.picker.RandomArticle(ctx)
		if err != nil {
			logger.Warn("random start lookup failed", zap.Error(err))
			return last
		}
		last = &ref
		if !c.visited.Contains(ref.DisplayTitle()) {
			return last
		}
		logger.Debug("random start already mapped, re-rolling", zap.String("title", ref.DisplayTitle()))
	}
	return last
}

func (c *Controller) publishStored(ctx context.Context, jobID string, res crawler.JobResult, logger *zap.Logger) {
	if c.publisher == nil || c.cfg.PublishTopic == "" {
		return
	}
	event := crawler.PathStoredEvent{
		StorageID:    res.StorageID,
		JobID:        jobID,
		StartArticle: res.Path.Start().DisplayTitle(),
		EndArticle:   res.Path.End().DisplayTitle(),
		Steps:        res.Outcome.Steps,
		Outcome:      string(res.Outcome.Kind),
		StoredAt:     c.clock.Now(),
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.PublishTopic, event); err != nil {
		logger.Warn("publish path event failed", zap.Error(err))
	}
}

func (c *Controller) newJobID() string {
	if c.ids == nil {
		return ""
	}
	id, err := c.ids.NewID()
	if err != nil {
		c.logger.Warn("job id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (c *Controller) recordVisited() {
	n := c.visited.Len()
	c.stats.SetVisited(n)
	metrics.SetVisitedTitles(n)
}
