package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// CleanPlace trims the counterparty cell and collapses runs of whitespace,
// including full-width spaces, into a single ASCII space.
func CleanPlace(raw string) string {
	return strings.Join(strings.FieldsFunc(raw, unicode.IsSpace), " ")
}

// PlaceKey is the geocode cache key for a place. Full-width Latin folds to
// ASCII and half-width katakana to full-width (voiced marks recomposed), so
// both exports of one merchant share a key; the result is lower-cased.
func PlaceKey(raw string) string {
	folded := norm.NFC.String(width.Fold.String(raw))
	return strings.ToLower(CleanPlace(folded))
}
