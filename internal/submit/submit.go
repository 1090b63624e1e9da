// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package submit reports a search answer to the grading endpoint.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// DefaultTask is the task name answers are filed under.
const DefaultTask = "loop"

const maxResponseBytes = 64 << 10

// Config names the endpoint and credentials.
type Config struct {
	URL     string
	APIKey  string
	Task    string
	Timeout time.Duration
}

// Client posts answers. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Task == "" {
		cfg.Task = DefaultTask
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || !u.IsAbs() {
		return nil, wferr.New(wferr.CodeSubmitRequestInvalid, "submit: url must be absolute", wferr.FieldURL(cfg.URL))
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, wferr.New(wferr.CodeSubmitRequestInvalid, "submit: api key is required")
	}

	c := &Client{cfg: cfg, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type payload struct {
	Task   string `json:"task"`
	APIKey string `json:"apikey"`
	Answer string `json:"answer"`
}

// Submit posts answer and returns the endpoint's status and body. A non-2xx
// status is returned alongside an error so callers can still show the body.
func (c *Client) Submit(ctx context.Context, answer string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload{Task: c.cfg.Task, APIKey: c.cfg.APIKey, Answer: answer}); err != nil {
		return 0, "", wferr.Errorf(wferr.CodeSubmitRequestInvalid, "encoding answer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &buf)
	if err != nil {
		return 0, "", wferr.Errorf(wferr.CodeSubmitRequestInvalid, "building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", wferr.Wrap(err, wferr.CodeSubmitUpstreamFailure, "posting answer", wferr.FieldURL(c.cfg.URL))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, "", wferr.Wrap(err, wferr.CodeSubmitUpstreamFailure, "reading submit response")
	}
	body := strings.TrimSpace(string(raw))

	slog.Debug("submit response", "task", c.cfg.Task, "status", resp.StatusCode, "body", body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, wferr.Errorf(wferr.CodeSubmitUpstreamFailure, "submit endpoint returned HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, body, nil
}
