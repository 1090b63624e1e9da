// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets_test

import (
	"testing"

	"github.com/sigil-dev/wayfinder/internal/secrets"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func init() {
	// Never touch the real OS keyring from tests.
	keyring.MockInit()
}

func TestKeyringStore_SetAndGet(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Set("test-set-get", "oracle-api-key", "k-123"))

	val, err := ks.Get("test-set-get", "oracle-api-key")
	require.NoError(t, err)
	assert.Equal(t, "k-123", val)
}

func TestKeyringStore_GetNotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Get("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, wferr.HasCode(err, wferr.CodeSecretNotFound), "got: %v", err)
	assert.True(t, wferr.IsNotFound(err))
}

func TestKeyringStore_Delete(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("test-delete", "temp", "v"))

	require.NoError(t, ks.Delete("test-delete", "temp"))

	_, err := ks.Get("test-delete", "temp")
	assert.True(t, wferr.HasCode(err, wferr.CodeSecretNotFound))

	err = ks.Delete("test-delete", "temp")
	assert.True(t, wferr.HasCode(err, wferr.CodeSecretNotFound))
}

func TestKeyringStore_InvalidInput(t *testing.T) {
	ks := secrets.NewKeyringStore()

	tests := []struct {
		name string
		call func() error
	}{
		{"set empty service", func() error { return ks.Set("", "k", "v") }},
		{"set empty key", func() error { return ks.Set("svc", "", "v") }},
		{"set empty value", func() error { return ks.Set("svc", "k", "") }},
		{"get empty key", func() error { _, err := ks.Get("svc", ""); return err }},
		{"delete empty service", func() error { return ks.Delete("", "k") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, wferr.HasCode(err, wferr.CodeSecretInvalidInput))
		})
	}
}
