package triage

import (
	"crypto/sha1"
	"sync"
)

// SeenSet records script hashes that were already tested.
type SeenSet struct {
	mu     sync.Mutex
	hashes map[[sha1.Size]byte]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{hashes: make(map[[sha1.Size]byte]struct{})}
}

// Add inserts h and reports whether it was new. Check and insert happen
// under one lock, so exactly one caller wins for a given hash.
func (s *SeenSet) Add(h [sha1.Size]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[h]; ok {
		return false
	}
	s.hashes[h] = struct{}{}
	return true
}

// Len returns the number of distinct hashes.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}
