package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentStripper decomposes to NFD and drops combining marks, so
// "Société Générale" compares equal to "Societe Generale".
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stopWords are ignored when extracting significant words: French articles
// and prepositions, legal-form suffixes, and banking boilerplate that
// appears in nearly every transaction description.
var stopWords = map[string]struct{}{
	"les": {}, "des": {}, "une": {}, "pour": {}, "par": {}, "sur": {},
	"dans": {}, "avec": {}, "sans": {}, "que": {}, "qui": {}, "est": {},
	"son": {}, "ses": {}, "aux": {}, "du": {}, "de": {}, "la": {},
	"le": {}, "et": {}, "en": {}, "ce": {}, "sa": {}, "sas": {},
	"sarl": {}, "eurl": {}, "srl": {}, "sci": {},
	"vir": {}, "virement": {}, "prlv": {}, "prelevement": {},
	"carte": {}, "paiement": {}, "cb": {},
}

// stripAccents removes diacritics and lowercases the input. Used by both
// the comparison normalizer and the history pattern extractor.
func stripAccents(input string) string {
	stripped, _, err := transform.String(accentStripper, input)
	if err != nil {
		stripped = input
	}
	return strings.ToLower(stripped)
}

// NormalizeText returns the canonical comparable form of a free-form
// string: lowercase, accents stripped, punctuation replaced by spaces,
// whitespace collapsed. Empty input yields an empty string.
func NormalizeText(input string) string {
	if input == "" {
		return ""
	}

	lowered := stripAccents(input)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// SignificantWords extracts the comparison-relevant words of a text:
// normalized words of at least 3 characters that are not stop-words.
func SignificantWords(input string) []string {
	normalized := NormalizeText(input)
	if normalized == "" {
		return nil
	}

	var words []string
	for _, w := range strings.Split(normalized, " ") {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}

	return words
}
