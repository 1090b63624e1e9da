// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// exposedBits are the group and other read bits. Either one exposes the
// oracle and provider keys a config file may hold.
const exposedBits fs.FileMode = 0o044

// ExposedPermissions returns the permission bits of the file at path and
// whether users other than the owner can read it. A missing or unreadable
// file is never exposed.
func ExposedPermissions(path string) (fs.FileMode, bool) {
	if path == "" {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("config permission check skipped", "path", path, "error", err)
		return 0, false
	}
	perm := info.Mode().Perm()
	return perm, perm&exposedBits != 0
}

// WarnInsecurePermissions logs a warning when ExposedPermissions reports
// the config file as readable by others. It never fails startup.
func WarnInsecurePermissions(path string) {
	if perm, exposed := ExposedPermissions(path); exposed {
		slog.Warn("config file is readable by other users",
			"path", path,
			"mode", perm,
			"fix", "chmod 600 "+path,
		)
	}
}
