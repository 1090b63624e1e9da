// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package metrics defines the instrumentation surface of a search with a
// no-op default and a Prometheus-backed implementation.
package metrics

import "time"

// Recorder is the metrics surface used by the oracle, planner and search loop.
type Recorder interface {
	ObserveLookup(kind, outcome string, d time.Duration)
	ObservePlan(op string, success bool, d time.Duration)
	ObserveSearch(found bool, rounds int, d time.Duration)
	SetBreakerState(endpoint, state string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveLookup(string, string, time.Duration) {}
func (Nop) ObservePlan(string, bool, time.Duration)     {}
func (Nop) ObserveSearch(bool, int, time.Duration)      {}
func (Nop) SetBreakerState(string, string)              {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
