// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import "io/fs"

// ExposedPermissions always reports false on Windows, where access is
// governed by ACLs rather than mode bits.
func ExposedPermissions(string) (fs.FileMode, bool) { return 0, false }

// WarnInsecurePermissions is a no-op on Windows.
func WarnInsecurePermissions(string) {}
