// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health holds point-in-time health snapshots for the things a
// search depends on: LLM providers and the oracle endpoints.
package health

import (
	"sort"
	"time"
)

// Metrics is one dependency's health. All fields are snapshots safe to
// serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	// State is the circuit breaker state (closed, half-open, open) for
	// dependencies guarded by one.
	State     string `json:"state,omitempty"`
	Available bool   `json:"available"`
}

// Report is a named Metrics entry.
type Report struct {
	Name string `json:"name"`
	Metrics
}

// Sorted flattens m into reports ordered by name. It never returns nil.
func Sorted(m map[string]Metrics) []Report {
	out := make([]Report, 0, len(m))
	for name, metrics := range m {
		out = append(out, Report{Name: name, Metrics: metrics})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
