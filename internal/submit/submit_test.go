// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package submit_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/wayfinder/internal/submit"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitPostsAnswer(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		raw, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"code":0,"message":"{{FLG:OK}}"}`))
	}))
	defer srv.Close()

	c, err := submit.New(submit.Config{URL: srv.URL, APIKey: "key-1"})
	require.NoError(t, err)

	status, body, err := c.Submit(context.Background(), "ŁÓDŹ")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "FLG:OK")

	// Non-ASCII text goes out as UTF-8, not \u escapes.
	assert.Contains(t, string(raw), `"answer":"ŁÓDŹ"`)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, map[string]string{"task": "loop", "apikey": "key-1", "answer": "ŁÓDŹ"}, got)
}

func TestSubmitCustomTaskAndEmptyAnswer(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := submit.New(submit.Config{URL: srv.URL, APIKey: "k", Task: "loop-b"})
	require.NoError(t, err)

	_, _, err = c.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "loop-b", got["task"])
	assert.Equal(t, "", got["answer"])
}

func TestSubmitRejectedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1,"message":"wrong answer"}`))
	}))
	defer srv.Close()

	c, err := submit.New(submit.Config{URL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	status, body, err := c.Submit(context.Background(), "GDANSK")
	require.Error(t, err)
	assert.True(t, wferr.IsUpstreamFailure(err))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "wrong answer")
}

func TestNewValidation(t *testing.T) {
	_, err := submit.New(submit.Config{URL: "not a url", APIKey: "k"})
	assert.True(t, wferr.IsInvalidInput(err))

	_, err = submit.New(submit.Config{URL: "http://verify.local/report"})
	assert.True(t, wferr.IsInvalidInput(err))
}
