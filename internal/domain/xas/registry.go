// Package xas implements the rule-based X-ray absorption spectroscopy
// mention extractor: element lookup, token normalisation, spectral region
// resolution, absorption-edge segmentation and classification tuple building.
package xas

import (
	"golang.org/x/text/cases"
)

// Element is one tracked transition metal.
type Element struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// transitionMetals is the fixed whitelist, in the order the taxonomy tree is
// seeded.
var transitionMetals = []Element{
	{"Sc", "Scandium"},
	{"Ti", "Titanium"},
	{"V", "Vanadium"},
	{"Cr", "Chromium"},
	{"Mn", "Manganese"},
	{"Fe", "Iron"},
	{"Co", "Cobalt"},
	{"Ni", "Nickel"},
	{"Cu", "Copper"},
	{"Zn", "Zinc"},
	{"Y", "Yttrium"},
	{"Zr", "Zirconium"},
	{"Nb", "Niobium"},
	{"Mo", "Molybdenum"},
	{"Tc", "Technetium"},
	{"Ru", "Ruthenium"},
	{"Rh", "Rhodium"},
	{"Pd", "Palladium"},
	{"Ag", "Silver"},
	{"Cd", "Cadmium"},
	{"La", "Lanthanum"},
	{"Hf", "Hafnium"},
	{"Ta", "Tantalum"},
	{"W", "Tungsten"},
	{"Re", "Rhenium"},
	{"Os", "Osmium"},
	{"Ir", "Iridium"},
	{"Pt", "Platinum"},
	{"Au", "Gold"},
	{"Hg", "Mercury"},
}

// Registry resolves tokens to tracked elements.  Symbols match exactly
// (case-sensitive); names match caselessly.  A Registry is immutable after
// construction and safe for concurrent use.
type Registry struct {
	elements []Element
	bySymbol map[string]Element
	byName   map[string]Element
}

// fold returns the caseless form of s.  A Caser is stateful, so each call
// takes a fresh one.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NewRegistry builds a Registry over elems.
func NewRegistry(elems []Element) *Registry {
	r := &Registry{
		elements: append([]Element(nil), elems...),
		bySymbol: make(map[string]Element, len(elems)),
		byName:   make(map[string]Element, len(elems)),
	}
	for _, e := range r.elements {
		r.bySymbol[e.Symbol] = e
		r.byName[fold(e.Name)] = e
	}
	return r
}

var defaultRegistry = NewRegistry(transitionMetals)

// DefaultRegistry returns the registry of the tracked transition metals.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Elements returns the tracked elements in seeding order.
func (r *Registry) Elements() []Element {
	return append([]Element(nil), r.elements...)
}

// Symbols returns the tracked symbols in seeding order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.elements))
	for i, e := range r.elements {
		out[i] = e.Symbol
	}
	return out
}

// Lookup resolves a single token.
func (r *Registry) Lookup(token string) (Element, bool) {
	if e, ok := r.bySymbol[token]; ok {
		return e, true
	}
	e, ok := r.byName[fold(token)]
	return e, ok
}

// BySymbol returns the element with the exact symbol.
func (r *Registry) BySymbol(symbol string) (Element, bool) {
	e, ok := r.bySymbol[symbol]
	return e, ok
}

// Find returns the symbol of every token that resolves to an element, in
// token order.  Repeats are kept; callers deduplicate at the tuple level.
func (r *Registry) Find(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if e, ok := r.Lookup(tok); ok {
			out = append(out, e.Symbol)
		}
	}
	return out
}

// MatchKey returns the survey bucket for a token: the symbol for a symbol
// match, the lowercase name for a name match.
func (r *Registry) MatchKey(token string) (string, bool) {
	if e, ok := r.bySymbol[token]; ok {
		return e.Symbol, true
	}
	if e, ok := r.byName[fold(token)]; ok {
		return fold(e.Name), true
	}
	return "", false
}
