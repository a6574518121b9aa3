package daemon

import (
	"sort"
	"sync"

	"github.com/mschirtzinger/watchtex/internal/jot"
	"github.com/mschirtzinger/watchtex/internal/watcher"
)

// counters holds one count per entry of watcher.Kinds.
type counters []uint64

// Stats counts event kinds per document.
type Stats struct {
	mu    sync.Mutex
	files map[string]counters
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{files: make(map[string]counters)}
}

// Update counts every kind set in mask for path and returns the number of
// CLOSE_WRITE events path has seen.
func (s *Stats) Update(path string, mask watcher.Mask) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.files[path]
	if !ok {
		c = make(counters, len(watcher.Kinds))
		s.files[path] = c
	}
	var writes uint64
	for i, k := range watcher.Kinds {
		if mask.Has(k) {
			c[i]++
		}
		if k == watcher.CloseWrite {
			writes = c[i]
		}
	}
	return writes
}

// Count returns how often kind was seen for path.
func (s *Stats) Count(path string, kind watcher.Mask) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.files[path]
	if !ok {
		return 0
	}
	for i, k := range watcher.Kinds {
		if k == kind {
			return c[i]
		}
	}
	return 0
}

// Snapshot returns the non-zero counts per path, keyed by kind name.
func (s *Stats) Snapshot() map[string]map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]map[string]uint64, len(s.files))
	for path, c := range s.files {
		m := make(map[string]uint64)
		for i, k := range watcher.Kinds {
			if c[i] > 0 {
				m[k.Name()] = c[i]
			}
		}
		out[path] = m
	}
	return out
}

// Report logs every path's counts at debug level and its modification count
// at info level.
func (s *Stats) Report() {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		c := s.files[p]
		jot.Debug("%s:", p)
		var writes uint64
		for i, k := range watcher.Kinds {
			if c[i] > 0 {
				jot.Debug("  %s: %d", k.Name(), c[i])
			}
			if k == watcher.CloseWrite {
				writes = c[i]
			}
		}
		if writes > 0 {
			jot.Info("`%s` has been modified %d times", p, writes)
		}
	}
}
