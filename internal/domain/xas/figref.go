package xas

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// FigureReference is a body sentence that cites a figure.
type FigureReference struct {
	Sentence string              `json:"sentence"`
	Entities []corpus.EntitySpan `json:"chemical_entity"`
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// FigureNumber extracts the number of a figure id such as "fig3" or "F3".
func FigureNumber(figID string) (string, error) {
	num := nonDigit.ReplaceAllString(figID, "")
	if num == "" {
		return "", errors.New(errors.ErrCodeFigureNumberMissing, "figure id carries no number").
			WithDetail("fig_id=" + figID)
	}
	return num, nil
}

// FigureReferences returns the body sentences that cite the figure figID,
// e.g. "Fig. 6b" or "Figure 6(a,b)" for "fig6".  After a "fig"/"figure"
// token, following tokens are inspected until one starting with a letter.
func FigureReferences(figID string, body []corpus.Sentence) ([]FigureReference, error) {
	num, err := FigureNumber(figID)
	if err != nil {
		return nil, err
	}
	numbered := regexp.MustCompile(`^` + num + `[A-Za-z]*(?:[^0-9A-Za-z]|$)`)

	var out []FigureReference
	for _, s := range body {
		if citesFigure(s, num, numbered) {
			out = append(out, FigureReference{Sentence: s.Text, Entities: s.Entities})
		}
	}
	return out, nil
}

func citesFigure(s corpus.Sentence, num string, numbered *regexp.Regexp) bool {
	for i, tok := range s.Tokens {
		word := strings.ToLower(alnumOnly(tok.Surface))
		if word != "figure" && word != "fig" {
			continue
		}
		for _, next := range s.Tokens[i+1:] {
			w := next.Surface
			if w == num || numbered.MatchString(w) {
				return true
			}
			if startsWithLetter(w) {
				break
			}
		}
	}
	return false
}

func alnumOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if isLetterOrDigit(r) {
			return r
		}
		return -1
	}, s)
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r)
	}
	return false
}
