// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"sort"
	"sync"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// Backend names accepted by Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	// BackendNone disables the journal. New refuses it; callers check
	// Enabled first.
	BackendNone = "none"
)

// Config selects the journal backend.
type Config struct {
	Backend string // defaults to "sqlite"
	Path    string // database file, used by file-backed backends
}

// Enabled reports whether cfg asks for a journal at all.
func (c Config) Enabled() bool {
	return c.Backend != BackendNone
}

// Factory opens a RunStore for cfg.
type Factory func(cfg Config) (RunStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

func init() {
	RegisterBackend(BackendMemory, func(Config) (RunStore, error) {
		return NewMemoryStore(), nil
	})
}

// RegisterBackend registers a named backend. Backend packages call this
// from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New opens the RunStore for cfg.Backend.
func New(cfg Config) (RunStore, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendSQLite
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, wferr.Errorf(wferr.CodeStoreBackendInvalid, "unsupported storage backend: %q", backend)
	}

	cfg.Backend = backend
	return factory(cfg)
}
