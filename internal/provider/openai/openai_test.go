// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/internal/provider/openai"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ provider.Provider       = (*openai.Provider)(nil)
	_ provider.HealthReporter = (*openai.Provider)(nil)
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, wferr.HasCode(err, wferr.CodeProviderRequestInvalid))
}

func TestNameDefaultsAndOverrides(t *testing.T) {
	p, err := openai.New(openai.Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.True(t, p.Available(context.Background()))

	p, err = openai.New(openai.Config{Name: "openrouter", APIKey: "k", BaseURL: "https://openrouter.ai/api/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())
}

// sseServer answers chat completions with a fixed stream of content deltas.
func sseServer(t *testing.T, deltas []string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			chunk := map[string]any{
				"id":      "c1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "gpt-4o-mini",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": d}}},
			}
			b, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
		}
		usage := map[string]any{
			"id": "c1", "object": "chat.completion.chunk", "created": 1, "model": "gpt-4o-mini",
			"choices": []any{},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		}
		b, _ := json.Marshal(usage)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestChatStreamsTextAndUsage(t *testing.T) {
	var seen map[string]any
	srv := sseServer(t, []string{"cities:\n", "  - KRAKOW\n"}, &seen)
	defer srv.Close()

	p, err := openai.New(openai.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	temp := float32(0.2)
	events, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:        "gpt-4o-mini",
		SystemPrompt: "be terse",
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: "where?"}},
		Options:      provider.ChatOptions{Temperature: &temp},
	})
	require.NoError(t, err)

	c, err := provider.Drain(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, "cities:\n  - KRAKOW\n", c.Text)
	assert.Equal(t, provider.Usage{InputTokens: 12, OutputTokens: 4}, c.Usage)

	assert.Equal(t, "gpt-4o-mini", seen["model"])
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.InDelta(t, 0.2, seen["temperature"], 0.001)
}

func TestChatSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, err := openai.New(openai.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	events, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:    "nope",
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	_, err = provider.Drain(context.Background(), events)
	require.Error(t, err)
	assert.True(t, wferr.IsUpstreamFailure(err))
}

func TestChatRejectsMissingModel(t *testing.T) {
	p, err := openai.New(openai.Config{APIKey: "k"})
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), provider.ChatRequest{})
	assert.True(t, wferr.HasCode(err, wferr.CodeProviderRequestInvalid))
}
