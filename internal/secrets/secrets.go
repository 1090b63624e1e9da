// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps API keys out of config files. Config values of the
// form keyring://service/key are replaced with the secret stored in the OS
// keyring.
package secrets

// Service is the keyring service name the CLI stores wayfinder secrets under.
const Service = "wayfinder"

// Store reads and writes secrets.
type Store interface {
	Set(service, key, value string) error
	// Get returns a CodeSecretNotFound error when the key does not exist.
	Get(service, key string) (string, error)
	Delete(service, key string) error
}
