// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"io"
	"log/slog"
	"strings"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// setupLogging installs the default slog logger. verbose forces debug.
func setupLogging(w io.Writer, level, format string, verbose bool) error {
	var lvl slog.Level
	if verbose {
		lvl = slog.LevelDebug
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return wferr.Errorf(wferr.CodeCLIInputInvalid, "invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return wferr.Errorf(wferr.CodeCLIInputInvalid, "invalid log format %q", format)
	}

	slog.SetDefault(slog.New(h))
	return nil
}
