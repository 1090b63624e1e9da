// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"sync"

	"github.com/sigil-dev/wayfinder/internal/normalize"
)

// Visited is the set of entities already sent to the relation oracle.
// Membership is normalization-aware and safe for concurrent use.
type Visited struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	names []string
}

// NewVisited returns an empty set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]struct{})}
}

// MarkVisited adds entities to the set. Marking twice is a no-op.
func (v *Visited) MarkVisited(entities ...Entity) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, e := range entities {
		key := e.Key()
		if key == "" {
			continue
		}
		if _, ok := v.seen[key]; ok {
			continue
		}
		v.seen[key] = struct{}{}
		v.names = append(v.names, e.Name)
	}
}

// IsVisited reports whether name has been visited.
func (v *Visited) IsVisited(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, ok := v.seen[normalize.Key(name)]
	return ok
}

// UnvisitedOf filters candidates down to those not yet visited, keeping
// their order.
func (v *Visited) UnvisitedOf(candidates []Entity) []Entity {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Entity, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := v.seen[c.Key()]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns an independent copy of the set.
func (v *Visited) Snapshot() *Visited {
	v.mu.RLock()
	defer v.mu.RUnlock()

	cp := &Visited{
		seen:  make(map[string]struct{}, len(v.seen)),
		names: append([]string(nil), v.names...),
	}
	for k := range v.seen {
		cp.seen[k] = struct{}{}
	}
	return cp
}

// SnapshotExcept is Snapshot without the given entities. It builds the
// check-time frontier when some visited entities resurfaced with new data.
func (v *Visited) SnapshotExcept(entities ...Entity) *Visited {
	cp := v.Snapshot()
	if len(entities) == 0 {
		return cp
	}

	drop := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		key := e.Key()
		drop[key] = struct{}{}
		delete(cp.seen, key)
	}
	names := cp.names[:0]
	for _, n := range cp.names {
		if _, ok := drop[normalize.Key(n)]; !ok {
			names = append(names, n)
		}
	}
	cp.names = names
	return cp
}

// Names returns display names in first-visit order.
func (v *Visited) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.names...)
}

// Len returns the number of visited entities.
func (v *Visited) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.seen)
}
