// Package liveness tracks the in-memory worker_id -> last-seen map consulted
// by the stats snapshot, with a 1-hour sliding eviction window (spec.md §3,
// §4.4).
package liveness

import (
	"sort"
	"sync"
	"time"
)

const window = time.Hour

// Registry is the liveness map, protected by a mutex since it is shared
// across every lease-handling goroutine.
type Registry struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{lastSeen: make(map[string]time.Time)}
}

// Touch records worker_id as seen now.
func (r *Registry) Touch(workerID string) {
	if workerID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[workerID] = time.Now()
}

// Active returns the count and list of workers seen within the last hour,
// most recently seen first, evicting anything older in the same pass.
func (r *Registry) Active() (count int, ids []string) {
	cutoff := time.Now().Add(-window)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			delete(r.lastSeen, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.lastSeen[ids[i]].After(r.lastSeen[ids[j]])
	})
	return len(ids), ids
}
