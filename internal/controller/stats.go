package controller

import (
	"errors"
	"sync"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

// SampleLimit caps the paths kept for the end-of-run summary.
const SampleLimit = 5

// StatsSnapshot is a point-in-time view of run progress.
type StatsSnapshot struct {
	JobsCompleted      int                         `json:"jobs_completed"`
	Outcomes           map[crawler.OutcomeKind]int `json:"outcomes"`
	Stored             int                         `json:"stored"`
	Discarded          int                         `json:"discarded"`
	PersistFailures    int                         `json:"persist_failures"`
	JobFailures        int                         `json:"job_failures"`
	VisitedTitles      int                         `json:"visited_titles"`
	StorageSizeGB      float64                     `json:"storage_size_gb"`
	StorageCeilingGB   float64                     `json:"storage_ceiling_gb"`
	Stopped            bool                        `json:"stopped"`
	StopReason         string                      `json:"stop_reason,omitempty"`
	CompletedSteps     int                         `json:"-"`
	CompletedPathCount int                         `json:"-"`
}

// PathStat summarizes one finished path for reporting.
type PathStat struct {
	JobID string   `json:"job_id"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Steps int      `json:"steps"`
	Kind  string   `json:"outcome"`
	Path  []string `json:"path"`
}

// Summary is returned when a run ends.
type Summary struct {
	StatsSnapshot
	SuccessRate  float64    `json:"success_rate"`
	AverageSteps float64    `json:"average_steps"`
	Shortest     *PathStat  `json:"shortest,omitempty"`
	Longest      *PathStat  `json:"longest,omitempty"`
	Samples      []PathStat `json:"samples"`
}

// Stats accumulates per-job results. It is safe for concurrent use.
type Stats struct {
	mu       sync.Mutex
	snap     StatsSnapshot
	shortest *PathStat
	longest  *PathStat
	samples  []PathStat
}

// NewStats returns empty stats for a run bounded by ceilingGB.
func NewStats(ceilingGB float64) *Stats {
	return &Stats{snap: StatsSnapshot{
		Outcomes:         make(map[crawler.OutcomeKind]int, len(crawler.OutcomeKinds)),
		StorageCeilingGB: ceilingGB,
	}}
}

// Record accounts for one finished job.
func (s *Stats) Record(res crawler.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.JobsCompleted++
	switch {
	case errors.Is(res.Err, crawler.ErrJobPanicked), errors.Is(res.Err, crawler.ErrNoStart):
		s.snap.JobFailures++
	case errors.Is(res.Err, crawler.ErrPersistence):
		s.snap.PersistFailures++
	case res.Stored:
		s.snap.Stored++
	case res.Discarded:
		s.snap.Discarded++
	}
	if res.Path.IsZero() {
		return
	}
	s.snap.Outcomes[res.Outcome.Kind]++

	stat := PathStat{
		JobID: res.JobID,
		Start: res.Path.Start().DisplayTitle(),
		End:   res.Path.End().DisplayTitle(),
		Steps: res.Outcome.Steps,
		Kind:  string(res.Outcome.Kind),
		Path:  res.Path.Titles(),
	}
	if len(s.samples) < SampleLimit {
		s.samples = append(s.samples, stat)
	}
	if !res.Outcome.Succeeded() {
		return
	}
	s.snap.CompletedPathCount++
	s.snap.CompletedSteps += res.Outcome.Steps
	if s.shortest == nil || stat.Steps < s.shortest.Steps {
		st := stat
		s.shortest = &st
	}
	if s.longest == nil || stat.Steps > s.longest.Steps {
		st := stat
		s.longest = &st
	}
}

// SetVisited records the visited set size.
func (s *Stats) SetVisited(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.VisitedTitles = n
}

// SetStorageSize records the last observed storage size.
func (s *Stats) SetStorageSize(gb float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.StorageSizeGB = gb
}

// SetStopped records that the run was asked to stop.
func (s *Stats) SetStopped(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stopped = true
	s.snap.StopReason = reason
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Stats) snapshotLocked() StatsSnapshot {
	out := s.snap
	out.Outcomes = make(map[crawler.OutcomeKind]int, len(s.snap.Outcomes))
	for k, v := range s.snap.Outcomes {
		out.Outcomes[k] = v
	}
	return out
}

// Summary derives the end-of-run report.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		StatsSnapshot: s.snapshotLocked(),
		Samples:       append([]PathStat(nil), s.samples...),
	}
	walked := 0
	for _, n := range s.snap.Outcomes {
		walked += n
	}
	if walked > 0 {
		sum.SuccessRate = float64(s.snap.CompletedPathCount) / float64(walked)
	}
	if s.snap.CompletedPathCount > 0 {
		sum.AverageSteps = float64(s.snap.CompletedSteps) / float64(s.snap.CompletedPathCount)
	}
	if s.shortest != nil {
		st := *s.shortest
		sum.Shortest = &st
	}
	if s.longest != nil {
		st := *s.longest
		sum.Longest = &st
	}
	return sum
}
