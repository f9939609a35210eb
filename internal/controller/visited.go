package controller

import "sync"

// VisitedSet is the run-wide set of article titles already recorded. It only
// ever grows. Readers take a Snapshot before a walk; writers Merge after one.
type VisitedSet struct {
	mu     sync.RWMutex
	titles map[string]struct{}
}

// NewVisitedSet returns a set seeded with titles.
func NewVisitedSet(titles ...string) *VisitedSet {
	s := &VisitedSet{titles: make(map[string]struct{}, len(titles))}
	s.Merge(titles)
	return s
}

// Contains reports whether title has been recorded.
func (s *VisitedSet) Contains(title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.titles[title]
	return ok
}

// Len returns the number of recorded titles.
func (s *VisitedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.titles)
}

// Snapshot returns an immutable point-in-time copy.
func (s *VisitedSet) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.titles))
	for t := range s.titles {
		snap[t] = struct{}{}
	}
	return snap
}

// Merge adds titles under the write lock and returns how many were new.
// Empty titles are ignored.
func (s *VisitedSet) Merge(titles []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, t := range titles {
		if t == "" {
			continue
		}
		if _, ok := s.titles[t]; ok {
			continue
		}
		s.titles[t] = struct{}{}
		added++
	}
	return added
}

// Snapshot is a read-only copy of a VisitedSet.
type Snapshot map[string]struct{}

// Contains reports whether title was recorded when the snapshot was taken.
func (s Snapshot) Contains(title string) bool {
	_, ok := s[title]
	return ok
}

// Len returns the number of titles in the snapshot.
func (s Snapshot) Len() int {
	return len(s)
}
