package survey

import (
	"fmt"
	"io"
	"strings"
)

const (
	rule    = "--------------------------------------------------------------------------"
	divider = "##########################################################################"
)

// WriteText renders the report in its plain-text layout: totals, per-metal
// article counts, the sentence digest of every matching article, then the
// pair distribution and missing-region article lists.
func (r *Report) WriteText(w io.Writer) error {
	p := &printer{w: w}

	p.printf(">> scanned_articles: %d\n", r.Scanned)
	p.printf(">> matched_articles: %d\n", r.Matched)
	p.printf(">> pair_distribution_articles: %d\n", len(r.PairDistribution))
	p.printf(">> without_region_terms_articles: %d\n", len(r.WithoutRegionTerms))
	p.printf("\n")

	for _, m := range r.Metals {
		p.printf("%s: %d\n", m.Metal, len(m.Articles))
	}
	p.printf("\n")

	for _, d := range r.Digests {
		p.printf(">> Title: %s\n", d.Title)
		p.printf(">> DOI: %s\n", d.Link)
		p.printf("%s\n", rule)
		for _, s := range d.Sentences {
			p.printf(">> Sent: %s\n", s.Sentence)
			p.printf(">> Match_tokens: %s\n", strings.Join(s.Metals, ", "))
			p.printf(">> Cems: %s\n", joinEntities(s))
			p.printf("%s\n", rule)
		}
		for _, f := range d.Figures {
			p.printf(">> Figure: %s (%s)\n", f.Label, f.FigID)
			for _, t := range f.Tuples {
				p.printf(">> Class: %s\n", t.Label())
			}
			for _, ref := range f.References {
				p.printf(">> Cited: %s\n", ref.Sentence)
			}
			p.printf("%s\n", rule)
		}
		p.printf("%s\n", divider)
	}

	p.printf("\n>> pair distribution function articles\n")
	for _, a := range r.PairDistribution {
		p.printf("%s -> %s\n", a.Origin, a.Link)
	}
	p.printf("\n>> articles without exafs/xanes/nexafs\n")
	for _, a := range r.WithoutRegionTerms {
		p.printf("%s -> %s\n", a.Origin, a.Link)
	}
	return p.err
}

func joinEntities(s SentenceMatch) string {
	parts := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
