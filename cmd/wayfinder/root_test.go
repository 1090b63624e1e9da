// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/wayfinder/internal/config"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

func TestRootCommand_Help(t *testing.T) {
	root, out, _, _ := newTestRoot(t)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	for _, sub := range []string{"search", "serve", "doctor", "secret", "version", "--config", "--verbose"} {
		assert.Contains(t, out.String(), sub)
	}
}

func TestVersionCommand(t *testing.T) {
	root, out, _, _ := newTestRoot(t)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "wayfinder dev")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	root, _, _, _ := newTestRoot(t)
	root.SetArgs([]string{"version", "--config", "/nonexistent/wayfinder.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, wferr.HasCode(err, wferr.CodeConfigLoadReadFailure))
}

func TestRootCommand_BootstrapsConfig(t *testing.T) {
	root, _, _, _ := newTestRoot(t)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	path, err := config.DefaultConfigPath()
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSetupLogging(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, "warn", "json", false))
	slog.Info("hidden")
	slog.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	require.NoError(t, setupLogging(&buf, "warn", "text", true))
	slog.Debug("debug line")
	assert.Contains(t, buf.String(), "debug line", "verbose forces debug")
}

func TestSetupLogging_Invalid(t *testing.T) {
	var buf bytes.Buffer

	err := setupLogging(&buf, "loud", "text", false)
	require.Error(t, err)
	assert.True(t, wferr.HasCode(err, wferr.CodeCLIInputInvalid))

	err = setupLogging(&buf, "info", "xml", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}
