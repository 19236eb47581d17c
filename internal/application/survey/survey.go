// Package survey runs the whole-article pass over a corpus: which articles
// mention K/L/M edges of a transition metal anywhere in their text, how
// often each metal occurs, and which articles look like pair distribution
// function studies or never name an XAS region at all.
package survey

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

var (
	pairDistributionTerms = []string{"pair distribution function", "pair distribution functions"}
	regionTerms           = map[string]struct{}{"exafs": {}, "xanes": {}, "nexafs": {}}
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// ArticleRef identifies an article in a report list.
type ArticleRef struct {
	UID    string `json:"uid"`
	Link   string `json:"link"`
	Origin string `json:"origin,omitempty"`
}

// SentenceMatch is one sentence that mentions an edge of a metal.
type SentenceMatch struct {
	Sentence string              `json:"sentence"`
	Metals   []string            `json:"match_tokens"`
	Entities []corpus.EntitySpan `json:"chemical_entity"`
	// CitesFigure is set when a token of the sentence starts with "fig".
	CitesFigure bool `json:"cites_figure"`
}

// FigureDigest lists the body sentences that cite a figure whose caption
// yielded classification tuples.
type FigureDigest struct {
	FigID      string                `json:"fig_id"`
	Label      string                `json:"label"`
	Tuples     []xas.Tuple           `json:"tuples"`
	References []xas.FigureReference `json:"references"`
}

// ArticleDigest is the survey result of one matching article.
type ArticleDigest struct {
	UID       string          `json:"uid"`
	Title     string          `json:"title"`
	Link      string          `json:"link"`
	Sentences []SentenceMatch `json:"sentences"`
	Figures   []FigureDigest  `json:"figures,omitempty"`
}

// MetalCount lists the articles that mention one metal, each once.
type MetalCount struct {
	Metal    string   `json:"metal"`
	Articles []string `json:"articles"`
}

// Report is the outcome of a survey pass.
type Report struct {
	Scanned            int             `json:"scanned"`
	Matched            int             `json:"matched"`
	PairDistribution   []ArticleRef    `json:"pair_distribution"`
	WithoutRegionTerms []ArticleRef    `json:"without_region_terms"`
	Metals             []MetalCount    `json:"metals"`
	Digests            []ArticleDigest `json:"digests"`
	Duration           time.Duration   `json:"duration"`
}

// ---------------------------------------------------------------------------
// Surveyor
// ---------------------------------------------------------------------------

// Surveyor scans articles one at a time and accumulates a Report.
type Surveyor struct {
	registry *xas.Registry
	builder  *xas.Builder
	logger   logging.Logger
}

// NewSurveyor creates a Surveyor.  builder supplies both the element registry
// and the caption extraction used for the figure digest.
func NewSurveyor(builder *xas.Builder, logger logging.Logger) *Surveyor {
	if builder == nil {
		panic("survey: builder must not be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Surveyor{
		registry: builder.Extractor().Registry(),
		builder:  builder,
		logger:   logger.Named("survey"),
	}
}

// Run surveys every article of src.  Articles without uid are rejected
// with ErrCodeArticleMissingUID.
func (s *Surveyor) Run(ctx context.Context, src corpus.Source) (*Report, error) {
	start := time.Now()
	rep := &Report{}
	byMetal := make(map[string][]string)
	var order []string

	err := src.Each(ctx, func(_ context.Context, a *corpus.Article) error {
		if a == nil || a.UID == "" {
			origin := ""
			if a != nil {
				origin = a.Origin
			}
			s.logger.Error("article has no uid, aborting survey", logging.String("origin", origin))
			return errors.New(errors.ErrCodeArticleMissingUID, "article has no uid").WithDetail(origin)
		}
		rep.Scanned++

		digest, metals, ok := s.Article(a)
		if !ok {
			return nil
		}
		rep.Matched++
		rep.Digests = append(rep.Digests, digest)
		for _, m := range metals {
			if _, seen := byMetal[m]; !seen {
				order = append(order, m)
			}
			byMetal[m] = append(byMetal[m], a.UID)
		}

		ref := ArticleRef{UID: a.UID, Link: a.Link(), Origin: a.Origin}
		pdf, region := termPresence(a.Text())
		if pdf {
			rep.PairDistribution = append(rep.PairDistribution, ref)
		}
		if !region {
			rep.WithoutRegionTerms = append(rep.WithoutRegionTerms, ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, m := range order {
		rep.Metals = append(rep.Metals, MetalCount{Metal: m, Articles: byMetal[m]})
	}
	sort.SliceStable(rep.Metals, func(i, j int) bool {
		return len(rep.Metals[i].Articles) > len(rep.Metals[j].Articles)
	})

	rep.Duration = time.Since(start)
	s.logger.Info("survey complete",
		logging.Int("scanned", rep.Scanned),
		logging.Int("matched", rep.Matched),
		logging.Int("metals", len(rep.Metals)),
		logging.Int("pair_distribution", len(rep.PairDistribution)),
		logging.Int("without_region_terms", len(rep.WithoutRegionTerms)),
		logging.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// Article surveys a single article.  metals holds the survey bucket of every
// metal mentioned, each once, in first-mention order.  ok is false when no
// sentence matches.
func (s *Surveyor) Article(a *corpus.Article) (digest ArticleDigest, metals []string, ok bool) {
	seen := make(map[string]struct{})
	for _, sent := range a.Text() {
		m, keys, hit := s.matchSentence(sent)
		if !hit {
			continue
		}
		digest.Sentences = append(digest.Sentences, m)
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			metals = append(metals, k)
		}
	}
	if len(digest.Sentences) == 0 {
		return ArticleDigest{}, nil, false
	}

	digest.UID = a.UID
	digest.Title = a.TitleWithYear()
	digest.Link = a.Link()
	digest.Figures = s.figures(a)
	return digest, metals, true
}

// matchSentence applies the coarse edge filter: at least one chemical
// entity, an "edge" (else "edges") token, a token starting with K, L or M
// before it, and at least one metal symbol or name.  Only purely
// alphanumeric tokens take part.
func (s *Surveyor) matchSentence(sent corpus.Sentence) (SentenceMatch, []string, bool) {
	if !sent.HasEntities() {
		return SentenceMatch{}, nil, false
	}
	surfaces := sent.Surfaces()
	alnum := xas.AlnumTokens(surfaces)
	anchor := anchorIndex(alnum)
	if anchor < 0 || !hasCategoryBefore(alnum, anchor) {
		return SentenceMatch{}, nil, false
	}

	var matched, keys []string
	tokSeen := make(map[string]struct{})
	keySeen := make(map[string]struct{})
	for _, tok := range alnum {
		key, ok := s.registry.MatchKey(tok)
		if !ok {
			continue
		}
		if _, dup := tokSeen[tok]; !dup {
			tokSeen[tok] = struct{}{}
			matched = append(matched, tok)
		}
		if _, dup := keySeen[key]; !dup {
			keySeen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	if len(matched) == 0 {
		return SentenceMatch{}, nil, false
	}

	return SentenceMatch{
		Sentence:    sent.Text,
		Metals:      matched,
		Entities:    sent.Entities,
		CitesFigure: citesAnyFigure(surfaces),
	}, keys, true
}

// figures digests every figure whose caption yields tuples.
func (s *Surveyor) figures(a *corpus.Article) []FigureDigest {
	tuples := s.builder.BuildCaptions(a).Tuples()
	if len(tuples) == 0 {
		return nil
	}
	byFig := make(map[string][]xas.Tuple)
	for _, t := range tuples {
		byFig[t.FigID] = append(byFig[t.FigID], t)
	}

	var out []FigureDigest
	for _, fig := range a.Figures {
		ts, ok := byFig[fig.ID]
		if !ok {
			continue
		}
		refs, err := xas.FigureReferences(fig.ID, a.BodyText)
		if err != nil {
			s.logger.Debug("figure id without number", logging.String("uid", a.UID), logging.String("fig_id", fig.ID))
		}
		out = append(out, FigureDigest{FigID: fig.ID, Label: fig.Label, Tuples: ts, References: refs})
	}
	return out
}

// anchorIndex returns the first "edge" token, else the first "edges" token,
// else -1.
func anchorIndex(alnum []string) int {
	for _, want := range []string{"edge", "edges"} {
		for i, tok := range alnum {
			if strings.ToLower(tok) == want {
				return i
			}
		}
	}
	return -1
}

func hasCategoryBefore(alnum []string, anchor int) bool {
	for _, tok := range alnum[:anchor] {
		switch tok[0] {
		case 'K', 'L', 'M':
			return true
		}
	}
	return false
}

func citesAnyFigure(surfaces []string) bool {
	for _, tok := range surfaces {
		if strings.HasPrefix(strings.ToLower(tok), "fig") {
			return true
		}
	}
	return false
}

// termPresence reports whether any sentence mentions a pair distribution
// function and whether any names an XAS region.
func termPresence(text []corpus.Sentence) (pdf, region bool) {
	for _, sent := range text {
		if !pdf {
			lower := strings.ToLower(sent.Text)
			for _, term := range pairDistributionTerms {
				if strings.Contains(lower, term) {
					pdf = true
					break
				}
			}
		}
		if !region {
			for _, tok := range xas.AlnumTokens(sent.Surfaces()) {
				if _, ok := regionTerms[strings.ToLower(tok)]; ok {
					region = true
					break
				}
			}
		}
		if pdf && region {
			return
		}
	}
	return
}
