package crawler

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	visitedBloomCapacity = 100_000
	visitedBloomFPRate   = 0.001
)

// VisitedSet records the normalized URLs claimed during one crawl. Each key is
// claimed at most once.
type VisitedSet struct {
	mu     sync.RWMutex
	keys   map[string]struct{}
	filter *bloom.BloomFilter
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		keys:   make(map[string]struct{}),
		filter: bloom.NewWithEstimates(visitedBloomCapacity, visitedBloomFPRate),
	}
}

// TryClaim inserts key and reports whether it was absent. Concurrent callers
// racing on the same key see exactly one true.
func (v *VisitedSet) TryClaim(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.keys[key]; ok {
		return false
	}
	v.keys[key] = struct{}{}
	v.filter.AddString(key)
	return true
}

// Seen reports whether key has been claimed. The answer may be stale by the
// time the caller acts on it.
func (v *VisitedSet) Seen(key string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.filter.TestString(key) {
		return false
	}
	_, ok := v.keys[key]
	return ok
}

// Len returns the number of claimed keys.
func (v *VisitedSet) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
