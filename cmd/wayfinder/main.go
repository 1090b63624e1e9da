// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// Exit statuses. Scripts can tell a bad invocation or config apart from a
// search that failed while running.
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wayfinder: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if wferr.IsInvalidInput(err) {
		return exitUsage
	}
	return exitFailure
}
