// Package memory provides in-memory persistence for dry runs and tests.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

// Approximate per-row overhead used by the size estimate.
const (
	pathRowBytes = 64
	nodeRowBytes = 48
	bytesPerGB   = 1024 * 1024 * 1024
)

// StoredPath is one persisted walk.
type StoredPath struct {
	ID      string
	JobID   string
	Path    crawler.Path
	Outcome crawler.Outcome
}

// PathStore keeps paths in memory. It satisfies both crawler.PersistenceSink
// and crawler.SizeMonitor.
type PathStore struct {
	mu     sync.RWMutex
	paths  []StoredPath
	byID   map[string]int
	seed   []string
	bytes  int64
	nextID int64
}

// NewPathStore constructs a PathStore whose LoadExistingTitles also reports
// seed.
func NewPathStore(seed ...string) *PathStore {
	return &PathStore{
		byID: make(map[string]int),
		seed: append([]string(nil), seed...),
	}
}

// Store records the path and returns its sequential ID.
func (s *PathStore) Store(ctx context.Context, path crawler.Path, outcome crawler.Outcome) (string, error) {
	if path.IsZero() {
		return "", errors.New("path is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := strconv.FormatInt(s.nextID, 10)
	s.byID[id] = len(s.paths)
	s.paths = append(s.paths, StoredPath{
		ID:      id,
		JobID:   crawler.JobIDFrom(ctx),
		Path:    path,
		Outcome: outcome,
	})
	s.bytes += estimateBytes(path)
	return id, nil
}

// LoadExistingTitles returns the seed titles plus the start article and
// every article title of each stored path, without duplicates.
func (s *PathStore) LoadExistingTitles(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if _, ok := seen[t]; ok || t == "" {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range s.seed {
		add(t)
	}
	for _, p := range s.paths {
		for _, t := range p.Path.Titles() {
			add(t)
		}
	}
	return out, nil
}

// CurrentSizeGB estimates the storage the recorded paths would occupy.
func (s *PathStore) CurrentSizeGB(context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.bytes) / bytesPerGB, nil
}

// Get returns a stored path by ID.
func (s *PathStore) Get(id string) (StoredPath, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return StoredPath{}, false
	}
	return s.paths[i], true
}

// Paths returns every stored path in insertion order.
func (s *PathStore) Paths() []StoredPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredPath, len(s.paths))
	copy(out, s.paths)
	return out
}

// Len returns the number of stored paths.
func (s *PathStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

func estimateBytes(path crawler.Path) int64 {
	n := int64(pathRowBytes) + int64(len(path.Start().DisplayTitle())+len(path.End().DisplayTitle()))
	for _, a := range path.Articles() {
		n += int64(nodeRowBytes + len(a.DisplayTitle()) + len(a.Locator))
	}
	return n
}
