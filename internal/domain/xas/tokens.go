package xas

import (
	"strings"
	"unicode"
)

// unicodeHyphen is U+2010 HYPHEN as emitted by some publishers' XML.
const unicodeHyphen = "‐"

// NormalizedTokens is the matchable view of a sentence: the sub-tokens that
// carry at least one ASCII letter, in their original casing, with a parallel
// lowercase view.
type NormalizedTokens struct {
	Tokens []string
	Lower  []string
}

// Len returns the number of sub-tokens.
func (n NormalizedTokens) Len() int { return len(n.Tokens) }

// NormalizeTokens splits fused surface forms such as "Cu-K" or "L3‐edge"
// into independent sub-tokens and drops those without an ASCII letter.
//
// A token whose lowercase form contains U+2010 followed by "edge" is split on
// U+2010 only; otherwise a token containing "-" is split on every "-".
func NormalizeTokens(surfaces []string) NormalizedTokens {
	var split []string
	for _, tok := range surfaces {
		switch {
		case strings.Contains(strings.ToLower(tok), unicodeHyphen+"edge"):
			split = append(split, strings.Split(tok, unicodeHyphen)...)
		case strings.Contains(tok, "-"):
			split = append(split, strings.Split(tok, "-")...)
		default:
			split = append(split, tok)
		}
	}

	out := NormalizedTokens{}
	for _, tok := range split {
		if !hasASCIILetter(tok) {
			continue
		}
		out.Tokens = append(out.Tokens, tok)
		out.Lower = append(out.Lower, strings.ToLower(tok))
	}
	return out
}

func hasASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

// isAlnum reports whether s is non-empty and made only of letters and digits.
func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isLetterOrDigit(r) {
			return false
		}
	}
	return true
}

func isLetterOrDigit(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// AlnumTokens returns the surfaces that are purely alphanumeric, dropping
// anything with punctuation (e.g. "in-plane", "K-edge").  This is the coarse
// view used by the corpus survey.
func AlnumTokens(surfaces []string) []string {
	var out []string
	for _, s := range surfaces {
		if isAlnum(s) {
			out = append(out, s)
		}
	}
	return out
}
