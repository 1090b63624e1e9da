// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"sort"
	"strings"

	"github.com/spf13/viper"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

const scheme = "keyring://"

// IsRef reports whether value is a keyring:// reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef splits keyring://service/key. The key may contain slashes.
func ParseRef(ref string) (service, key string, err error) {
	if !IsRef(ref) {
		return "", "", wferr.Errorf(wferr.CodeSecretInvalidInput, "not a keyring reference: %q", ref)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(ref, scheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", wferr.Errorf(wferr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://service/key", ref)
	}
	return service, key, nil
}

// Resolve returns the secret a reference points to. Other values are
// returned unchanged.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	service, key, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Get(service, key)
	if err != nil {
		return "", wferr.Wrapf(err, wferr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViper replaces every keyring reference in v with its secret. All
// failures are reported together, each naming its config key.
func ResolveViper(v *viper.Viper, store Store) error {
	keys := v.AllKeys()
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		val := v.GetString(key)
		if !IsRef(val) {
			continue
		}
		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, wferr.Wrapf(err, wferr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}

	if len(errs) > 0 {
		return wferr.Wrap(wferr.Join(errs...), wferr.CodeSecretResolveFailure, "resolving config secrets")
	}
	return nil
}
