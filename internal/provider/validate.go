// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// ProviderName identifies a supported LLM backend.
type ProviderName string

const (
	ProviderAnthropic  ProviderName = "anthropic"
	ProviderOpenAI     ProviderName = "openai"
	ProviderGoogle     ProviderName = "google"
	ProviderOpenRouter ProviderName = "openrouter"
)

var defaultModelsURL = map[ProviderName]string{
	ProviderAnthropic:  "https://api.anthropic.com/v1/models",
	ProviderOpenAI:     "https://api.openai.com/v1/models",
	ProviderGoogle:     "https://generativelanguage.googleapis.com/v1/models",
	ProviderOpenRouter: "https://openrouter.ai/api/v1/models",
}

// ValidateKey makes a lightweight call to the provider's models endpoint to
// confirm the API key works. A non-empty endpoint replaces the provider's
// base URL, which covers OpenAI-compatible local servers.
func ValidateKey(ctx context.Context, client *http.Client, name ProviderName, key, endpoint string) error {
	url, ok := defaultModelsURL[name]
	if !ok {
		return wferr.Errorf(wferr.CodeProviderKeyInvalid, "unknown provider: %s", name)
	}
	if endpoint != "" {
		url = strings.TrimSuffix(endpoint, "/") + "/models"
	}

	headers := map[string]string{}
	switch name {
	case ProviderAnthropic:
		headers["x-api-key"] = key
		headers["anthropic-version"] = "2023-06-01"
	case ProviderGoogle:
		// The Generative Language API only accepts the key as a query parameter.
		url += "?key=" + key
	default:
		headers["Authorization"] = "Bearer " + key
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return wferr.Errorf(wferr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return wferr.Errorf(wferr.CodeProviderKeyCheckFailed, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return wferr.Errorf(wferr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return wferr.Errorf(wferr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
