// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/internal/secrets"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store.
type mockSecretStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{data: make(map[string]string)}
}

func (m *mockSecretStore) Set(service, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Get(service, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", wferr.Errorf(wferr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[service+"/"+key]; !ok {
		return wferr.Errorf(wferr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.data, service+"/"+key)
	return nil
}

// newTestRoot isolates global state: a fresh Viper, a temp HOME for
// config bootstrap and an in-memory secret store.
func newTestRoot(t *testing.T) (root *cobra.Command, out, errOut *bytes.Buffer, store *mockSecretStore) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	oldLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(oldLogger) })

	store = newMockSecretStore()
	oldFactory := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = oldFactory })

	root = NewRootCmd()
	out, errOut = new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(errOut)
	return root, out, errOut, store
}

// fakeLLM answers the seed prompt with seedReply and plan prompts with
// planReplies in order.
type fakeLLM struct {
	mu          sync.Mutex
	seedReply   string
	planReplies []string
	requests    []provider.ChatRequest
}

func (f *fakeLLM) Name() string                     { return "openai" }
func (f *fakeLLM) Available(_ context.Context) bool { return true }
func (f *fakeLLM) Close() error                     { return nil }

func (f *fakeLLM) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := "cities: []\npeople: []\n"
	switch {
	case strings.Contains(req.SystemPrompt, "<note>"):
		reply = f.seedReply
	case len(f.planReplies) > 0:
		reply = f.planReplies[0]
		f.planReplies = f.planReplies[1:]
	}
	f.mu.Unlock()

	ch := make(chan provider.ChatEvent, 2)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: reply}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

// useFakeProvider replaces the openai factory and records the config it
// was built with.
func useFakeProvider(t *testing.T, llm *fakeLLM) *config.ProviderConfig {
	t.Helper()
	var got config.ProviderConfig
	old := builtinProviderFactories["openai"]
	builtinProviderFactories["openai"] = func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		got = pc
		return llm, nil
	}
	t.Cleanup(func() { builtinProviderFactories["openai"] = old })
	return &got
}

// barbaraLLM finds BARBARA in ELBLAG after one planner round against
// barbaraOracle.
func barbaraLLM() *fakeLLM {
	return &fakeLLM{
		seedReply:   "cities:\n  - KRAKOW\npeople:\n  - ALEKSANDER\n  - BARBARA\n",
		planReplies: []string{"cities:\n  - ELBLAG\npeople: []\n"},
	}
}

var barbaraPlaces = map[string]string{
	"KRAKOW": "ALEKSANDER BARBARA",
	"ELBLAG": "BARBARA RAFAL",
}

var barbaraPeople = map[string]string{
	"ALEKSANDER": "KRAKOW ELBLAG",
	"BARBARA":    "KRAKOW",
}

// fakeOracle serves the places, people and report endpoints.
type fakeOracle struct {
	*httptest.Server

	mu      sync.Mutex
	reports []map[string]string
	queries []string
}

func newFakeOracle(t *testing.T, places, people map[string]string) *fakeOracle {
	t.Helper()
	o := &fakeOracle{}

	lookup := func(data map[string]string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				return
			}
			var req struct {
				APIKey string `json:"apikey"`
				Query  string `json:"query"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			o.mu.Lock()
			o.queries = append(o.queries, req.Query)
			o.mu.Unlock()

			msg, ok := data[req.Query]
			if !ok {
				msg = "[**RESTRICTED DATA**]"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "message": msg})
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/places", lookup(places))
	mux.HandleFunc("/people", lookup(people))
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		o.mu.Lock()
		o.reports = append(o.reports, body)
		o.mu.Unlock()
		_, _ = w.Write([]byte(`{"code":0,"message":"{{FLG:FOUND}}"}`))
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	o.Server = httptest.NewServer(mux)
	t.Cleanup(o.Close)
	return o
}

func (o *fakeOracle) Reports() []map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]map[string]string(nil), o.reports...)
}

// writeTestConfig writes a config pointing every endpoint at o, plus a
// seed document, and returns the config path. extra is appended verbatim.
func writeTestConfig(t *testing.T, o *fakeOracle, extra string) string {
	t.Helper()
	dir := t.TempDir()

	seedPath := filepath.Join(dir, "barbara.txt")
	require.NoError(t, os.WriteFile(seedPath, []byte("Barbara and Aleksander were last seen in Krakow.\n"), 0o600))

	content := fmt.Sprintf(`
search:
  target: BARBARA
  concurrency: 2
seed:
  path: %q
oracle:
  api_key: oracle-key
  places_url: %q
  people_url: %q
  breaker:
    max_failures: 3
    cooldown: 1s
models:
  planner: openai/test-model
providers:
  openai:
    api_key: sk-test
    endpoint: %q
submit:
  enabled: true
  url: %q
storage:
  backend: memory
metrics:
  enabled: false
log:
  level: error
`, seedPath, o.URL+"/places", o.URL+"/people", o.URL+"/v1", o.URL+"/report")

	path := filepath.Join(dir, "wayfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content+extra), 0o600))
	return path
}
