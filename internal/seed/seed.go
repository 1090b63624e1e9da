// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package seed loads the document that starts a search, from a local file
// or a remote URL. A fetched document is cached at the local path.
package seed

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

const maxDocumentBytes = 4 << 20

// Config says where the seed document lives.
type Config struct {
	// Path is read when it exists and is where fetched documents are cached.
	Path string
	// URL is fetched when Path is unset or missing, or when Refresh is set.
	URL     string
	Refresh bool
	Timeout time.Duration
}

// Loader is safe for concurrent use as long as callers do not race on the
// cache file.
type Loader struct {
	cfg  Config
	http *http.Client
}

// Option customizes a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(l *Loader) { l.http = hc }
}

// New returns a Loader. At least one of Path and URL must be set.
func New(cfg Config, opts ...Option) (*Loader, error) {
	if cfg.Path == "" && cfg.URL == "" {
		return nil, wferr.New(wferr.CodeConfigValidateInvalidValue, "seed: path or url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	l := &Loader{cfg: cfg, http: &http.Client{}}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load returns the seed document text.
func (l *Loader) Load(ctx context.Context) (string, error) {
	if l.cfg.Path != "" && (!l.cfg.Refresh || l.cfg.URL == "") {
		doc, err := os.ReadFile(l.cfg.Path)
		switch {
		case err == nil:
			slog.Debug("seed loaded from file", "path", l.cfg.Path, "bytes", len(doc))
			return string(doc), nil
		case errors.Is(err, fs.ErrNotExist) && l.cfg.URL != "":
			// fall through to fetch
		case errors.Is(err, fs.ErrNotExist):
			return "", wferr.Wrap(err, wferr.CodeSeedLoadNotFound, "seed file not found", wferr.Field("path", l.cfg.Path))
		default:
			return "", wferr.Wrap(err, wferr.CodeSeedLoadFailure, "reading seed file", wferr.Field("path", l.cfg.Path))
		}
	}

	doc, err := l.fetch(ctx)
	if err != nil {
		return "", err
	}
	if l.cfg.Path != "" {
		l.cache(doc)
	}
	return doc, nil
}

func (l *Loader) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return "", wferr.Wrap(err, wferr.CodeSeedLoadFailure, "building seed request", wferr.FieldURL(l.cfg.URL))
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return "", wferr.Wrap(err, wferr.CodeSeedUpstreamFailure, "fetching seed document", wferr.FieldURL(l.cfg.URL))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", wferr.New(wferr.CodeSeedLoadNotFound, "seed document not found", wferr.FieldURL(l.cfg.URL))
	case resp.StatusCode != http.StatusOK:
		return "", wferr.Errorf(wferr.CodeSeedUpstreamFailure, "seed endpoint returned HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", wferr.Wrap(err, wferr.CodeSeedUpstreamFailure, "reading seed document", wferr.FieldURL(l.cfg.URL))
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", wferr.New(wferr.CodeSeedLoadFailure, "seed document is empty", wferr.FieldURL(l.cfg.URL))
	}

	slog.Info("seed fetched", "url", l.cfg.URL, "bytes", len(raw))
	return string(raw), nil
}

// cache failures only cost a refetch next time.
func (l *Loader) cache(doc string) {
	if err := os.MkdirAll(filepath.Dir(l.cfg.Path), 0o750); err != nil {
		slog.Warn("seed cache directory unavailable", "path", l.cfg.Path, "error", err)
		return
	}
	if err := os.WriteFile(l.cfg.Path, []byte(doc), 0o600); err != nil {
		slog.Warn("seed cache write failed", "path", l.cfg.Path, "error", err)
	}
}
