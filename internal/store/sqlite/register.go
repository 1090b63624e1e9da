// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import "github.com/sigil-dev/wayfinder/internal/store"

func init() {
	store.RegisterBackend(store.BackendSQLite, func(cfg store.Config) (store.RunStore, error) {
		return NewRunStore(cfg.Path)
	})
}
