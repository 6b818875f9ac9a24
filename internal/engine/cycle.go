package engine

import "sync"

// VisitedSet records the entities already reconstructed during one query.
//
// Variable resolution keeps discovering new anchors, and related entities
// point back at each other (a citing and a cited resource, an author and
// the works listing them). Claiming an entity before reconstructing it
// makes every entity reconstructed at most once, so resolution terminates
// even when the data is cyclic.
//
// Thread-safe: workers claim entities concurrently.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]bool)}
}

// Claim marks entity visited. It returns false when the entity was claimed
// before, in which case the caller must not reconstruct it again.
func (v *VisitedSet) Claim(entity string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.seen[entity] {
		return false
	}
	v.seen[entity] = true
	return true
}

// Contains reports whether entity has been claimed.
func (v *VisitedSet) Contains(entity string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.seen[entity]
}

// Len returns the number of claimed entities.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
