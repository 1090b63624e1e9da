// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/internal/provider/anthropic"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ provider.Provider       = (*anthropic.Provider)(nil)
	_ provider.HealthReporter = (*anthropic.Provider)(nil)
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := anthropic.New(anthropic.Config{})
	require.Error(t, err)
	assert.True(t, wferr.IsInvalidInput(err))
}

func TestName(t *testing.T) {
	p, err := anthropic.New(anthropic.Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.True(t, p.Available(context.Background()))
	assert.NoError(t, p.Close())
}

func writeEvent(w http.ResponseWriter, name string, payload map[string]any) {
	b, _ := json.Marshal(payload)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
}

func TestChatStreamsTextAndUsage(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		_ = json.NewDecoder(r.Body).Decode(&seen)

		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, "message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-haiku",
				"content": []any{}, "stop_reason": nil, "stop_sequence": nil,
				"usage": map[string]any{"input_tokens": 21, "output_tokens": 1},
			},
		})
		writeEvent(w, "content_block_start", map[string]any{
			"type": "content_block_start", "index": 0,
			"content_block": map[string]any{"type": "text", "text": ""},
		})
		for _, part := range []string{"people:\n", "  - RAFAL"} {
			writeEvent(w, "content_block_delta", map[string]any{
				"type": "content_block_delta", "index": 0,
				"delta": map[string]any{"type": "text_delta", "text": part},
			})
		}
		writeEvent(w, "content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
		writeEvent(w, "message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": "end_turn", "stop_sequence": nil},
			"usage": map[string]any{"output_tokens": 9},
		})
		writeEvent(w, "message_stop", map[string]any{"type": "message_stop"})
	}))
	defer srv.Close()

	p, err := anthropic.New(anthropic.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	events, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:        "claude-haiku",
		SystemPrompt: "answer in yaml",
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: "who?"}},
	})
	require.NoError(t, err)

	c, err := provider.Drain(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, "people:\n  - RAFAL", c.Text)
	assert.Equal(t, provider.Usage{InputTokens: 21, OutputTokens: 9}, c.Usage)

	assert.Equal(t, "claude-haiku", seen["model"])
	assert.EqualValues(t, 2048, seen["max_tokens"])
	system, ok := seen["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "answer in yaml", system[0].(map[string]any)["text"])
}

func TestChatRejectsMissingModel(t *testing.T) {
	p, err := anthropic.New(anthropic.Config{APIKey: "k"})
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), provider.ChatRequest{})
	assert.True(t, wferr.HasCode(err, wferr.CodeProviderRequestInvalid))
}
