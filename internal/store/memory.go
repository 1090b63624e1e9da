// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"context"
	"sort"
	"sync"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

var _ RunStore = (*MemoryStore)(nil)

// MemoryStore is a RunStore that lives as long as the process.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

func (m *MemoryStore) Append(_ context.Context, run *Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return wferr.Errorf(wferr.CodeStoreRunInvalidInput, "run %s already recorded", run.ID)
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, wferr.Errorf(wferr.CodeStoreRunNotFound, "run %q not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, filter RunFilter) ([]*Run, error) {
	m.mu.RLock()
	matched := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		if matches(r, filter) {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.After(matched[j].StartedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	if filter.Offset > 0 {
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryStore) Close() error { return nil }

func matches(r *Run, f RunFilter) bool {
	if f.Target != "" && r.Target != f.Target {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if !f.From.IsZero() && r.StartedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.StartedAt.Before(f.To) {
		return false
	}
	return true
}
