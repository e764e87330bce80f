// Package textnorm normalises recognised speech transcripts before they are
// compared word by word.
//
// Normalisation removes the Arabic short-vowel marks that speech recognisers
// emit inconsistently, so that "مَرْحَبًا" and "مرحبا" compare equal.
package textnorm

import (
	"strings"
	"unicode"
)

const (
	fathatan = '\u064B'
	sukun    = '\u0652'
	tatweel  = '\u0640'
)

// isDiacritic reports whether r is one of the stripped marks: fathatan
// through sukun (U+064B..U+0652) and the tatweel elongation character.
func isDiacritic(r rune) bool {
	return (r >= fathatan && r <= sukun) || r == tatweel
}

// Normalize strips diacritics, collapses every run of whitespace to a single
// space, trims the result and lower-cases it.
func Normalize(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if isDiacritic(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToLower(strings.Join(strings.FieldsFunc(stripped, unicode.IsSpace), " "))
}

// Words returns the normalised words of s. A transcript that is blank after
// normalisation has no words.
func Words(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}
