// Package walker drives a single first-link traversal from a start article to
// one of its terminal outcomes.
package walker

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	"github.com/JakeFAU/wikipath-crawler/internal/extractor"
)

// DefaultStepDelay is the pause after every followed link.
const DefaultStepDelay = 500 * time.Millisecond

// Resolver resolves an article's title and first link.
type Resolver interface {
	Resolve(ctx context.Context, ref crawler.ArticleRef) extractor.Resolution
}

// RandomPicker chooses a start article when none is given.
type RandomPicker interface {
	RandomArticle(ctx context.Context) (crawler.ArticleRef, error)
}

// Walker runs walks under a fixed Policy. It holds no per-walk state and is
// safe for concurrent use.
type Walker struct {
	resolver  Resolver
	picker    RandomPicker
	policy    Policy
	stepDelay time.Duration
	pauser    crawler.Pauser
	logger    *zap.Logger
}

// New builds a Walker. A negative stepDelay selects DefaultStepDelay.
func New(resolver Resolver, picker RandomPicker, policy Policy, stepDelay time.Duration, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stepDelay < 0 {
		stepDelay = DefaultStepDelay
	}
	return &Walker{
		resolver:  resolver,
		picker:    picker,
		policy:    policy,
		stepDelay: stepDelay,
		pauser:    crawler.TimerPauser{},
		logger:    logger.Named("walker"),
	}
}

// WithPauser swaps the pauser used between steps.
func (w *Walker) WithPauser(p crawler.Pauser) *Walker {
	if p != nil {
		w.pauser = p
	}
	return w
}

// Policy returns the walker's policy.
func (w *Walker) Policy() Policy {
	return w.policy
}

// Walk follows first links from start until a terminal outcome. A nil start
// asks the RandomPicker for one; when that fails Walk returns a zero Path and
// a zero Outcome. visited is only consulted when the policy uses the global
// visited set; the walk never writes to it.
func (w *Walker) Walk(ctx context.Context, start *crawler.ArticleRef, visited crawler.TitleSet) (crawler.Path, crawler.Outcome) {
	first, ok := w.startArticle(ctx, start)
	if !ok {
		return crawler.Path{}, crawler.Outcome{}
	}
	if !w.policy.UseGlobalVisited {
		visited = nil
	}

	b := crawler.NewPathBuilder(first)
	logger := w.logger.With(zap.String("policy", w.policy.Name), zap.String("start", first.Locator))
	logger.Debug("walk started")

	for {
		if b.Steps() >= w.policy.StepBudget {
			logger.Info("step budget exhausted", zap.Int("steps", b.Steps()))
			return b.Seal(), crawler.StepLimitReached(b.Steps())
		}

		tail := b.Tail()
		res := w.resolver.Resolve(ctx, tail)
		b.SetTitle(b.Len()-1, res.Title)

		if w.policy.TargetTitle != "" && res.Title == w.policy.TargetTitle {
			logger.Info("target reached", zap.String("title", res.Title), zap.Int("steps", b.Steps()))
			return b.Seal(), crawler.Completed(b.Steps())
		}
		if w.policy.TargetDepth > 0 && b.Len() >= w.policy.TargetDepth {
			logger.Info("target depth reached", zap.Int("steps", b.Steps()))
			return b.Seal(), crawler.Completed(b.Steps())
		}
		if res.Next == nil {
			logger.Info("dead end", zap.String("title", res.Title), zap.Int("steps", b.Steps()))
			return b.Seal(), crawler.DeadEnd(b.Steps())
		}

		next := *res.Next
		if idx := b.IndexOf(next.Locator); idx >= 0 {
			cycle := b.Slice(idx)
			logger.Info("loop detected",
				zap.Int("steps", b.Steps()),
				zap.String("cycle", cycleString(cycle, next)))
			return b.Seal(), crawler.LoopDetected(b.Steps(), cycle)
		}

		next.Title = crawler.TitleFromLocator(next.Locator)
		b.Append(next)
		logger.Debug("step", zap.String("from", res.Title), zap.String("to", next.Title), zap.Int("steps", b.Steps()))

		if visited != nil && visited.Contains(next.Title) {
			logger.Info("joined known article", zap.String("title", next.Title), zap.Int("steps", b.Steps()))
			return b.Seal(), crawler.AlreadyKnown(b.Steps())
		}

		w.pauser.Pause(ctx, w.stepDelay)
	}
}

func (w *Walker) startArticle(ctx context.Context, start *crawler.ArticleRef) (crawler.ArticleRef, bool) {
	if start != nil {
		return *start, true
	}
	ref, err := w.picker.RandomArticle(ctx)
	if err != nil {
		w.logger.Warn("random start unavailable", zap.Error(err))
		return crawler.ArticleRef{}, false
	}
	return ref, true
}

func cycleString(cycle []crawler.ArticleRef, repeated crawler.ArticleRef) string {
	titles := make([]string, 0, len(cycle)+1)
	for _, a := range cycle {
		titles = append(titles, a.DisplayTitle())
	}
	titles = append(titles, repeated.DisplayTitle())
	return strings.Join(titles, " -> ")
}
