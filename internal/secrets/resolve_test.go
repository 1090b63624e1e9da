// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets_test

import (
	"testing"

	"github.com/sigil-dev/wayfinder/internal/secrets"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRef(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"keyring://wayfinder/oracle-api-key", true},
		{"keyring://", true},
		{"${ORACLE_API_KEY}", false},
		{"sk-abc123", false},
		{"", false},
		{"vault://secret/key", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, secrets.IsRef(tt.value))
		})
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name        string
		ref         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://wayfinder/api-key", "wayfinder", "api-key", false},
		{"slashes in key", "keyring://wayfinder/providers/openai", "wayfinder", "providers/openai", false},
		{"other scheme", "vault://secret/key", "", "", true},
		{"missing key", "keyring://wayfinder/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"no path", "keyring://wayfinder", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseRef(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, wferr.HasCode(err, wferr.CodeSecretInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("wayfinder", "resolve-key", "resolved-secret"))

	val, err := secrets.Resolve(ks, "keyring://wayfinder/resolve-key")
	require.NoError(t, err)
	assert.Equal(t, "resolved-secret", val)

	val, err = secrets.Resolve(ks, "literal-value")
	require.NoError(t, err)
	assert.Equal(t, "literal-value", val)

	_, err = secrets.Resolve(ks, "keyring://wayfinder/nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyring://wayfinder/nonexistent")

	_, err = secrets.Resolve(ks, "keyring://bad")
	assert.True(t, wferr.HasCode(err, wferr.CodeSecretInvalidInput))
}

func TestResolveViper(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("wayfinder", "oracle", "oracle-secret"))
	require.NoError(t, ks.Set("wayfinder", "openai", "sk-oai-secret"))

	v := viper.New()
	v.Set("oracle.api_key", "keyring://wayfinder/oracle")
	v.Set("providers.openai.api_key", "keyring://wayfinder/openai")
	v.Set("server.listen", "127.0.0.1:8080")

	require.NoError(t, secrets.ResolveViper(v, ks))
	assert.Equal(t, "oracle-secret", v.GetString("oracle.api_key"))
	assert.Equal(t, "sk-oai-secret", v.GetString("providers.openai.api_key"))
	assert.Equal(t, "127.0.0.1:8080", v.GetString("server.listen"))
}

func TestResolveViper_ReportsEveryMissingKey(t *testing.T) {
	ks := secrets.NewKeyringStore()

	v := viper.New()
	v.Set("oracle.api_key", "keyring://wayfinder/missing-oracle")
	v.Set("submit.api_key", "keyring://wayfinder/missing-submit")

	err := secrets.ResolveViper(v, ks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle.api_key")
	assert.Contains(t, err.Error(), "submit.api_key")
	assert.Equal(t, "keyring://wayfinder/missing-oracle", v.GetString("oracle.api_key"))
}
