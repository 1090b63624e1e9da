// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search

import "time"

// SetIDFunc replaces the run ID generator.
func SetIDFunc(s *Searcher, f func() string) {
	s.newID = f
}

// SetServiceClock replaces the clock used to time journal entries.
func SetServiceClock(s *Service, now func() time.Time) {
	s.now = now
}
