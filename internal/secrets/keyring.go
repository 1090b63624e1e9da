// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	if value == "" {
		return wferr.New(wferr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	if err := keyring.Set(service, key, value); err != nil {
		return wferr.Wrapf(err, wferr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkName(service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", wferr.Errorf(wferr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", wferr.Wrapf(err, wferr.CodeSecretResolveFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkName(service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return wferr.Errorf(wferr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return wferr.Wrapf(err, wferr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func checkName(service, key string) error {
	if service == "" {
		return wferr.New(wferr.CodeSecretInvalidInput, "secret service must not be empty")
	}
	if key == "" {
		return wferr.New(wferr.CodeSecretInvalidInput, "secret key must not be empty")
	}
	return nil
}
