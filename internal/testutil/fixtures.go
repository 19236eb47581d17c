package testutil

import (
	"strings"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
)

// Sentence builds an annotated sentence from its surface tokens.  Offsets
// are located in text when present; the first token is flagged as the
// chemical entity so the sentence passes the entity gate.
func Sentence(text string, tokens ...string) corpus.Sentence {
	s := BareSentence(text, tokens...)
	if len(s.Tokens) > 0 {
		first := s.Tokens[0]
		s.Entities = []corpus.EntitySpan{{Text: first.Surface, Start: first.Start, End: first.End}}
	}
	return s
}

// BareSentence builds a sentence without chemical entities.
func BareSentence(text string, tokens ...string) corpus.Sentence {
	s := corpus.Sentence{Text: text}
	pos := 0
	for _, tok := range tokens {
		start := strings.Index(text[pos:], tok)
		if start < 0 {
			start = pos
		} else {
			start += pos
		}
		end := start + len(tok)
		if end <= len(text) {
			pos = end
		}
		s.Tokens = append(s.Tokens, corpus.Token{Surface: tok, Start: start, End: end, POS: "NN"})
	}
	return s
}

// Figure builds a figure whose file name derives from its id.
func Figure(id, label string, caption ...corpus.Sentence) corpus.Figure {
	return corpus.Figure{ID: id, Label: label, Caption: caption, File: id + ".jpg"}
}

// Article builds an article published in 2019 titled after its uid.
func Article(uid string, figures ...corpus.Figure) *corpus.Article {
	return &corpus.Article{
		UID:     uid,
		Year:    "2019",
		Title:   "Article " + uid,
		Figures: figures,
	}
}
