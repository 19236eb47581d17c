package xas

import (
	"regexp"
	"strings"
)

// Region is a spectral region of an X-ray absorption spectrum.
type Region string

const (
	RegionEXAFS Region = "EXAFS"
	RegionXANES Region = "XANES"
)

// Regions lists every region in seeding order.
var Regions = []Region{RegionEXAFS, RegionXANES}

// ID returns the lowercase form used in taxonomy ids.
func (r Region) ID() string { return strings.ToLower(string(r)) }

// ParseRegion accepts a region name in any case; NEXAFS maps to XANES.
func ParseRegion(s string) (Region, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EXAFS":
		return RegionEXAFS, true
	case "XANES", "NEXAFS":
		return RegionXANES, true
	}
	return "", false
}

var nonAlnumRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

const (
	exafsPhrase  = "extended x ray absorption fine structure"
	xanesPhrase  = "x ray absorption near edge structure"
	nexafsPhrase = "near edge x ray absorption fine structure"
)

// normalizeSentence replaces every non-alphanumeric run with one space,
// trims and lowercases, so spelled-out region names match regardless of
// punctuation.
func normalizeSentence(sentence string) string {
	s := nonAlnumRun.ReplaceAllString(sentence, " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ResolveRegions returns the regions a sentence discusses.  lower is the
// sentence's lowercase token view.  Both tests always run, so the result may
// hold zero, one or both regions; EXAFS precedes XANES.
func ResolveRegions(sentence string, lower []string) []Region {
	s := normalizeSentence(sentence)
	var out []Region
	if containsToken(lower, "exafs") || strings.Contains(s, exafsPhrase) {
		out = append(out, RegionEXAFS)
	}
	if containsToken(lower, "xanes") || containsToken(lower, "nexafs") ||
		strings.Contains(s, xanesPhrase) || strings.Contains(s, nexafsPhrase) {
		out = append(out, RegionXANES)
	}
	return out
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}
