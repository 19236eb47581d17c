package xas

import (
	"regexp"
	"strings"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Edge categories
// ─────────────────────────────────────────────────────────────────────────────

// Edge is an absorption-edge category.
type Edge string

const (
	EdgeK Edge = "K"
	EdgeL Edge = "L"
	EdgeM Edge = "M"
)

// Edges lists every edge category in seeding order.
var Edges = []Edge{EdgeK, EdgeL, EdgeM}

// ID returns the lowercase form used in taxonomy ids.
func (e Edge) ID() string { return strings.ToLower(string(e)) }

// Label returns the display text of the category node, e.g. "K-edge".
func (e Edge) Label() string { return string(e) + "-edge" }

// ParseEdge accepts "K", "l", "M-edge" and similar.
func ParseEdge(s string) (Edge, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	switch Edge(s[:1]) {
	case EdgeK:
		return EdgeK, true
	case EdgeL:
		return EdgeL, true
	case EdgeM:
		return EdgeM, true
	}
	return "", false
}

// subscriptedCategory matches L/M categories with a subscript, e.g. "L3",
// "LIII", "L2,3", "Mi".  K never carries one.  The match is anchored at the
// start only.
var subscriptedCategory = regexp.MustCompile(`^[LM][iI0-9]+`)

// categoryOf reports the edge category a token denotes.
func categoryOf(tok string) (Edge, bool) {
	switch tok {
	case "K":
		return EdgeK, true
	case "L":
		return EdgeL, true
	case "M":
		return EdgeM, true
	}
	if subscriptedCategory.MatchString(tok) {
		return Edge(tok[:1]), true
	}
	return "", false
}

// ─────────────────────────────────────────────────────────────────────────────
// Tuples
// ─────────────────────────────────────────────────────────────────────────────

// Tuple is one classification: figure id, region, element symbol and edge.
type Tuple struct {
	FigID   string `json:"fig_id"`
	Region  Region `json:"region"`
	Element string `json:"element"`
	Edge    Edge   `json:"edge"`
}

// Class returns the taxonomy class id "{region}_{Element}_{edge}", with
// region and edge lowercased and the element symbol as-is.
func (t Tuple) Class() string {
	return ClassID(t.Region, t.Element, t.Edge)
}

// Label returns the lowercase evaluation label of the tuple.
func (t Tuple) Label() string {
	return strings.ToLower(t.Class())
}

// Record converts the tuple to its persisted form.
func (t Tuple) Record() corpus.XASRecord {
	return corpus.XASRecord{
		FigID:   t.FigID,
		Region:  string(t.Region),
		Element: t.Element,
		Edge:    string(t.Edge),
	}
}

// TupleFromRecord parses a persisted record.  ok is false when any of
// region, element or edge is missing or unknown.
func TupleFromRecord(r corpus.XASRecord) (Tuple, bool) {
	region, ok := ParseRegion(r.Region)
	if !ok || r.Element == "" {
		return Tuple{}, false
	}
	edge, ok := ParseEdge(r.Edge)
	if !ok {
		return Tuple{}, false
	}
	return Tuple{FigID: r.FigID, Region: region, Element: r.Element, Edge: edge}, true
}

// ClassID builds the taxonomy class id for a region, element and edge.
func ClassID(region Region, element string, edge Edge) string {
	return region.ID() + "_" + element + "_" + edge.ID()
}

// ─────────────────────────────────────────────────────────────────────────────
// Extractor
// ─────────────────────────────────────────────────────────────────────────────

// Mention is one edge category found in a sentence, with the elements found
// in its search window and the sentence-wide regions.
type Mention struct {
	Edge     Edge
	Elements []string
	Regions  []Region
	Window   []string
}

// Extractor finds absorption-edge mentions in annotated sentences.  It never
// fails: sentences that do not qualify contribute nothing.
type Extractor struct {
	registry *Registry
	logger   logging.Logger
}

// NewExtractor creates an Extractor over registry.
func NewExtractor(registry *Registry, logger logging.Logger) *Extractor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{registry: registry, logger: logger}
}

// Registry returns the element registry the extractor resolves against.
func (x *Extractor) Registry() *Registry { return x.registry }

// Mentions scans one sentence.  Sentences without a chemical entity are not
// scanned.
//
// The normalised token stream is cut at every "edge"/"edges" anchor; segment
// i runs from just after anchor i-1 up to anchor i.  Inside a segment every
// category token (K, L, M, or L/M with a subscript) opens a window running
// back to the previous category token, and elements are looked up in that
// window only.  Regions are resolved once for the whole sentence.
func (x *Extractor) Mentions(s corpus.Sentence) []Mention {
	if !s.HasEntities() {
		return nil
	}
	toks := NormalizeTokens(s.Surfaces())

	var anchors []int
	for i, lc := range toks.Lower {
		if lc == "edge" || lc == "edges" {
			anchors = append(anchors, i)
		}
	}
	if len(anchors) == 0 {
		return nil
	}

	var regions []Region
	regionsResolved := false

	var out []Mention
	prevAnchor := -1
	for _, anchor := range anchors {
		segment := toks.Tokens[prevAnchor+1 : anchor]
		prevAnchor = anchor

		var seen Edge
		prevCat := -1
		for i, tok := range segment {
			edge, ok := categoryOf(tok)
			if !ok {
				continue
			}
			if seen != "" && seen != edge {
				x.logger.Debug("conflicting edge categories in one segment",
					logging.String("sentence", s.Text),
					logging.String("previous", string(seen)),
					logging.String("current", string(edge)))
			}
			seen = edge

			window := segment[prevCat+1 : i]
			prevCat = i

			elements := x.registry.Find(window)
			if !regionsResolved {
				regions = ResolveRegions(s.Text, toks.Lower)
				regionsResolved = true
			}
			out = append(out, Mention{
				Edge:     edge,
				Elements: elements,
				Regions:  regions,
				Window:   window,
			})
		}
	}
	return out
}

// ExtractSentence returns the classification tuples of one sentence, tagged
// with figID: one per region × element of every mention.
func (x *Extractor) ExtractSentence(figID string, s corpus.Sentence) []Tuple {
	var out []Tuple
	for _, m := range x.Mentions(s) {
		if len(m.Regions) == 0 || len(m.Elements) == 0 {
			continue
		}
		for _, r := range m.Regions {
			for _, e := range m.Elements {
				out = append(out, Tuple{FigID: figID, Region: r, Element: e, Edge: m.Edge})
			}
		}
	}
	return out
}
