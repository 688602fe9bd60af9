// Package dedup implements the fuzzy, similarity-based event deduplication
// and enrichment engine. All functions are total: malformed or missing
// fields degrade to "not a duplicate" rather than returning errors.
package dedup

import (
	"strings"
	"unicode"
)

// NormalizeForIdentity standardizes a string for identity computation and
// title comparison: diacritics stripped, punctuation removed, lowercased,
// whitespace collapsed. Empty input yields the empty string.
func NormalizeForIdentity(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // also trims leading whitespace
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(stripDiacritic(r)))
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		default:
			// punctuation and symbols are dropped entirely
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// stripDiacritic folds common accented letters to their base form. Runes
// outside the table pass through unchanged.
func stripDiacritic(r rune) rune {
	if folded, ok := diacriticFold[r]; ok {
		return folded
	}
	return r
}

var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a', 'ā': 'a',
	'Á': 'A', 'À': 'A', 'Â': 'A', 'Ä': 'A', 'Ã': 'A', 'Å': 'A', 'Ā': 'A',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e',
	'É': 'E', 'È': 'E', 'Ê': 'E', 'Ë': 'E', 'Ē': 'E',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i',
	'Í': 'I', 'Ì': 'I', 'Î': 'I', 'Ï': 'I', 'Ī': 'I',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o', 'ō': 'o', 'ø': 'o',
	'Ó': 'O', 'Ò': 'O', 'Ô': 'O', 'Ö': 'O', 'Õ': 'O', 'Ō': 'O', 'Ø': 'O',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u',
	'Ú': 'U', 'Ù': 'U', 'Û': 'U', 'Ü': 'U', 'Ū': 'U',
	'ý': 'y', 'ÿ': 'y', 'Ý': 'Y',
	'ñ': 'n', 'Ñ': 'N',
	'ç': 'c', 'Ç': 'C',
	'ß': 's',
	'š': 's', 'Š': 'S',
	'ž': 'z', 'Ž': 'Z',
	'ć': 'c', 'č': 'c', 'Ć': 'C', 'Č': 'C',
	'đ': 'd', 'Đ': 'D',
	'ł': 'l', 'Ł': 'L',
}
