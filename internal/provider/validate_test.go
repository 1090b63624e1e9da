// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/wayfinder/internal/provider"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKeyHeaders(t *testing.T) {
	tests := []struct {
		name   string
		prov   provider.ProviderName
		header string
		want   string
	}{
		{name: "anthropic", prov: provider.ProviderAnthropic, header: "x-api-key", want: "k"},
		{name: "openai", prov: provider.ProviderOpenAI, header: "Authorization", want: "Bearer k"},
		{name: "openrouter", prov: provider.ProviderOpenRouter, header: "Authorization", want: "Bearer k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/models", r.URL.Path)
				assert.Equal(t, tt.want, r.Header.Get(tt.header))
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			require.NoError(t, provider.ValidateKey(context.Background(), srv.Client(), tt.prov, "k", srv.URL+"/v1"))
		})
	}
}

func TestValidateKeyStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		code   wferr.Code
	}{
		{status: http.StatusUnauthorized, code: wferr.CodeProviderKeyInvalid},
		{status: http.StatusForbidden, code: wferr.CodeProviderKeyInvalid},
		{status: http.StatusInternalServerError, code: wferr.CodeProviderKeyCheckFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := provider.ValidateKey(context.Background(), srv.Client(), provider.ProviderOpenAI, "k", srv.URL)
			assert.True(t, wferr.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestValidateKeyUnknownProvider(t *testing.T) {
	err := provider.ValidateKey(context.Background(), http.DefaultClient, "mystery", "k", "")
	assert.True(t, wferr.HasCode(err, wferr.CodeProviderKeyInvalid))
}
