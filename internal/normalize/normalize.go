// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package normalize folds entity names into a canonical form so that
// "Łódź", "LODZ" and " lodz " refer to the same node.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letterFolds maps letters that carry no combining mark under NFD and would
// otherwise survive diacritic stripping.
var letterFolds = strings.NewReplacer(
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ø", "o", "Ø", "O",
	"ß", "ss", "ẞ", "SS",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ı", "i",
	"þ", "th", "Þ", "TH",
	"ð", "d", "Ð", "D",
	"\u200b", "", // zero width space
	"\u200c", "", // zero width non-joiner
	"\u200d", "", // zero width joiner
	"\ufeff", "", // byte order mark
)

// Fold trims whitespace and strips diacritics. Case is preserved.
func Fold(text string) string {
	text = strings.TrimSpace(letterFolds.Replace(text))
	if text == "" {
		return ""
	}

	// A transformer chain carries state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Key returns the comparison key for an entity name: folded, lower-cased and
// with runs of inner whitespace collapsed to a single space.
func Key(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(Fold(text))), " ")
}

// Equal reports whether a and b name the same entity.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}

// Contains reports whether needle occurs in haystack after both are
// normalized. An empty needle never matches.
func Contains(haystack, needle string) bool {
	n := Key(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Key(haystack), n)
}

// Query returns the form sent to the relation oracle: folded and upper-cased.
func Query(name string) string {
	return strings.ToUpper(Fold(name))
}
