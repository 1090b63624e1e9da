// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/internal/store"
	"github.com/sigil-dev/wayfinder/internal/store/sqlite"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

func testConfig(t *testing.T, o *fakeOracle) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeTestConfig(t, o, ""))
	require.NoError(t, err)
	return cfg
}

func TestWireApp(t *testing.T) {
	o := newFakeOracle(t, barbaraPlaces, barbaraPeople)
	useFakeProvider(t, barbaraLLM())

	cfg := testConfig(t, o)
	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Equal(t, []string{"openai"}, app.Providers.Names())
	assert.Nil(t, app.Metrics, "metrics disabled in the test config")
	assert.True(t, app.Search.CanSubmit())
	assert.Equal(t, "BARBARA", app.Search.DefaultTarget())
}

func TestWireApp_NotReady(t *testing.T) {
	o := newFakeOracle(t, nil, nil)
	cfg := testConfig(t, o)
	cfg.Oracle.APIKey = ""

	_, err := WireApp(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, wferr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "oracle.api_key")
}

func TestWireApp_NoUsableProvider(t *testing.T) {
	o := newFakeOracle(t, nil, nil)
	cfg := testConfig(t, o)
	cfg.Providers["openai"] = config.ProviderConfig{}

	_, err := WireApp(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, wferr.HasCode(err, wferr.CodeCLISetupFailure))
	assert.Contains(t, err.Error(), "no LLM provider configured")
}

func TestWireApp_SubmitDisabled(t *testing.T) {
	o := newFakeOracle(t, nil, nil)
	useFakeProvider(t, barbaraLLM())
	cfg := testConfig(t, o)
	cfg.Submit.Enabled = false

	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	assert.False(t, app.Search.CanSubmit())
}

func TestWireApp_MissingPromptFile(t *testing.T) {
	o := newFakeOracle(t, nil, nil)
	useFakeProvider(t, barbaraLLM())
	cfg := testConfig(t, o)
	cfg.Prompts.PlanFile = "/nonexistent/plan.tmpl"

	_, err := WireApp(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, wferr.HasCode(err, wferr.CodePlannerTemplateInvalid))
}

func TestAppNewServer(t *testing.T) {
	o := newFakeOracle(t, barbaraPlaces, barbaraPeople)
	useFakeProvider(t, barbaraLLM())
	cfg := testConfig(t, o)
	cfg.Metrics.Enabled = true
	cfg.Server.RateLimitRPS = 0

	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.NotNil(t, app.Metrics)

	srv, err := app.NewServer()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	// A search through the API records metrics.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"submit":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Answer string `json:"answer"`
		Found  bool   `json:"found"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Found)
	assert.Equal(t, "ELBLAG", body.Answer)
	assert.Empty(t, o.Reports())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wayfinder_oracle_lookups_total")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"openai"`)

	// The search above landed in the journal.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"found"`)
	assert.Contains(t, w.Body.String(), `"answer":"ELBLAG"`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/oracle", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"places"`)
	assert.Contains(t, w.Body.String(), `"state":"closed"`)
}

func TestWireApp_JournalBackends(t *testing.T) {
	o := newFakeOracle(t, nil, nil)
	useFakeProvider(t, barbaraLLM())

	cfg := testConfig(t, o)
	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, app.Runs)
	require.NoError(t, app.Close())

	cfg.Storage = config.StorageConfig{Backend: "none"}
	app, err = WireApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, app.Runs)
	require.NoError(t, app.Close())

	cfg.Storage = config.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "runs.db")}
	app, err = WireApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.RunStore{}, app.Runs)
	require.NoError(t, app.Close())
}

func TestOpenJournal_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	runs, err := openJournal(config.StorageConfig{Backend: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	_, err = os.Stat(filepath.Join(home, ".local", "share", "wayfinder", "runs.db"))
	assert.NoError(t, err)
}

func TestRegisterBuiltinProviders(t *testing.T) {
	var built []string
	old := builtinProviderFactories
	builtinProviderFactories = map[string]providerFactory{
		"openai": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
			built = append(built, "openai:"+pc.APIKey)
			return &fakeLLM{}, nil
		},
		"anthropic": func(_ context.Context, _ config.ProviderConfig) (provider.Provider, error) {
			built = append(built, "anthropic")
			return nil, wferr.New(wferr.CodeProviderRequestInvalid, "boom")
		},
	}
	t.Cleanup(func() { builtinProviderFactories = old })

	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"openai":    {APIKey: "sk-1"},
		"anthropic": {APIKey: "sk-2"},
		"google":    {APIKey: ""},
		"mistral":   {APIKey: "sk-3"},
	}}
	reg := provider.NewRegistry()
	registerBuiltinProviders(context.Background(), cfg, reg)

	assert.Equal(t, []string{"anthropic", "openai:sk-1"}, built, "factories run in name order; empty keys and unknown names are skipped")
	assert.Equal(t, []string{"openai"}, reg.Names())
}

func TestBuiltinProviderFactories_OpenRouterDefaultsEndpoint(t *testing.T) {
	p, err := builtinProviderFactories["openrouter"](context.Background(), config.ProviderConfig{APIKey: "sk-or"})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())
	assert.True(t, p.Available(context.Background()))
}
