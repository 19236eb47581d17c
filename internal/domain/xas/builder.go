package xas

import (
	"sort"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
)

// Scope selects which sentences of an article are scanned.
type Scope string

const (
	// ScopeCaptions scans figure captions; tuples carry the figure id.
	ScopeCaptions Scope = "captions"
	// ScopeArticle scans abstract and body text; tuples carry an empty
	// figure id.  Used for coarse filtering, never for the taxonomy tree.
	ScopeArticle Scope = "article"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeCaptions, ScopeArticle:
		return Scope(s), true
	}
	return "", false
}

// TupleSet is an insertion-ordered set of tuples.  Two tuples are the same
// when all four fields are equal.
type TupleSet struct {
	order []Tuple
	index map[Tuple]struct{}
}

// NewTupleSet creates a set holding ts.
func NewTupleSet(ts ...Tuple) *TupleSet {
	s := &TupleSet{index: make(map[Tuple]struct{})}
	s.Add(ts...)
	return s
}

// Add inserts tuples not already present.
func (s *TupleSet) Add(ts ...Tuple) {
	for _, t := range ts {
		if _, ok := s.index[t]; ok {
			continue
		}
		s.index[t] = struct{}{}
		s.order = append(s.order, t)
	}
}

// Contains reports membership.
func (s *TupleSet) Contains(t Tuple) bool {
	_, ok := s.index[t]
	return ok
}

// Len returns the number of distinct tuples.
func (s *TupleSet) Len() int { return len(s.order) }

// Tuples returns the tuples in first-insertion order.
func (s *TupleSet) Tuples() []Tuple {
	return append([]Tuple(nil), s.order...)
}

// Sorted returns the tuples ordered by fig id, region, element, edge.
func (s *TupleSet) Sorted() []Tuple {
	out := s.Tuples()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FigID != b.FigID {
			return a.FigID < b.FigID
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Element != b.Element {
			return a.Element < b.Element
		}
		return a.Edge < b.Edge
	})
	return out
}

// Records converts the set to its persisted form.
func (s *TupleSet) Records() []corpus.XASRecord {
	out := make([]corpus.XASRecord, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, t.Record())
	}
	return out
}

// Builder collects the deduplicated tuples of whole articles.
type Builder struct {
	extractor *Extractor
}

// NewBuilder creates a Builder on top of x.
func NewBuilder(x *Extractor) *Builder {
	return &Builder{extractor: x}
}

// Extractor returns the underlying extractor.
func (b *Builder) Extractor() *Extractor { return b.extractor }

// Build scans the article in the requested scope.  Caption mentions of a
// figure without an id are discarded.
func (b *Builder) Build(a *corpus.Article, scope Scope) *TupleSet {
	set := NewTupleSet()
	if scope == ScopeArticle {
		for _, s := range a.Text() {
			set.Add(b.extractor.ExtractSentence("", s)...)
		}
		return set
	}
	for _, fig := range a.Figures {
		if fig.ID == "" {
			continue
		}
		for _, s := range fig.Caption {
			set.Add(b.extractor.ExtractSentence(fig.ID, s)...)
		}
	}
	return set
}

// BuildCaptions is Build with ScopeCaptions.
func (b *Builder) BuildCaptions(a *corpus.Article) *TupleSet {
	return b.Build(a, ScopeCaptions)
}

// FromRecords rebuilds a set from an article's stored xas_info, skipping
// records with missing fields.
func FromRecords(records []corpus.XASRecord) *TupleSet {
	set := NewTupleSet()
	for _, r := range records {
		if t, ok := TupleFromRecord(r); ok {
			set.Add(t)
		}
	}
	return set
}
