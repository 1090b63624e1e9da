// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/wayfinder/internal/store"
	"github.com/sigil-dev/wayfinder/internal/store/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// openTestStore opens a journal in a temp directory and closes it on cleanup.
func openTestStore(t *testing.T, name string) *sqlite.RunStore {
	t.Helper()
	s, err := sqlite.NewRunStore(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRun(id, target string, outcome store.Outcome, offset time.Duration) *store.Run {
	started := baseTime.Add(offset)
	return &store.Run{
		ID:         id,
		Target:     target,
		Outcome:    outcome,
		Rounds:     2,
		GraphSize:  5,
		Visited:    6,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}
