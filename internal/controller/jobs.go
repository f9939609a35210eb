package controller

import (
	"context"
	"sync"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

// JobSource feeds the controller's sliding window. Next returns false once
// the source is exhausted.
type JobSource interface {
	Next(ctx context.Context) (crawler.CrawlJob, bool)
}

type listSource struct {
	mu   sync.Mutex
	refs []crawler.ArticleRef
}

// ListJobs yields one job per start article, then stops.
func ListJobs(refs ...crawler.ArticleRef) JobSource {
	return &listSource{refs: append([]crawler.ArticleRef(nil), refs...)}
}

func (s *listSource) Next(context.Context) (crawler.CrawlJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.refs) == 0 {
		return crawler.CrawlJob{}, false
	}
	start := s.refs[0]
	s.refs = s.refs[1:]
	return crawler.CrawlJob{Start: &start}, true
}

type randomSource struct {
	mu        sync.Mutex
	limit     int
	remaining int
}

// RandomJobs yields random-start jobs. A limit of zero never runs out.
func RandomJobs(limit int) JobSource {
	return &randomSource{limit: limit, remaining: limit}
}

func (s *randomSource) Next(context.Context) (crawler.CrawlJob, bool) {
	if s.limit <= 0 {
		return crawler.CrawlJob{}, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining == 0 {
		return crawler.CrawlJob{}, false
	}
	s.remaining--
	return crawler.CrawlJob{}, true
}

type chainSource struct {
	mu      sync.Mutex
	sources []JobSource
}

// ChainJobs drains each source in order.
func ChainJobs(sources ...JobSource) JobSource {
	return &chainSource{sources: append([]JobSource(nil), sources...)}
}

func (s *chainSource) Next(ctx context.Context) (crawler.CrawlJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.sources) > 0 {
		if job, ok := s.sources[0].Next(ctx); ok {
			return job, true
		}
		s.sources = s.sources[1:]
	}
	return crawler.CrawlJob{}, false
}

type limitSource struct {
	mu        sync.Mutex
	src       JobSource
	remaining int
}

// LimitJobs caps src at n jobs. A non-positive n leaves src unbounded.
func LimitJobs(src JobSource, n int) JobSource {
	if n <= 0 {
		return src
	}
	return &limitSource{src: src, remaining: n}
}

func (s *limitSource) Next(ctx context.Context) (crawler.CrawlJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining == 0 {
		return crawler.CrawlJob{}, false
	}
	job, ok := s.src.Next(ctx)
	if ok {
		s.remaining--
	}
	return job, ok
}
