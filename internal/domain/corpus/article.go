// Package corpus models annotated scientific articles as produced by the
// upstream parsing and annotation pipeline (sentence splitting, tokenisation,
// POS tagging, chemical NER) and provides sources that yield them.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value Objects
// ─────────────────────────────────────────────────────────────────────────────

// Token is one annotated surface token.  Offsets are relative to the
// enclosing sentence.  On the wire a token is the array [surface, start, end, pos].
type Token struct {
	Surface string
	Start   int
	End     int
	POS     string
}

// UnmarshalJSON decodes the [surface, start, end, pos] array form.
func (t *Token) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("token: empty array")
	}
	if err := json.Unmarshal(parts[0], &t.Surface); err != nil {
		return fmt.Errorf("token surface: %w", err)
	}
	if len(parts) > 1 {
		if err := unmarshalOffset(parts[1], &t.Start); err != nil {
			return fmt.Errorf("token start: %w", err)
		}
	}
	if len(parts) > 2 {
		if err := unmarshalOffset(parts[2], &t.End); err != nil {
			return fmt.Errorf("token end: %w", err)
		}
	}
	if len(parts) > 3 {
		if err := json.Unmarshal(parts[3], &t.POS); err != nil {
			return fmt.Errorf("token pos: %w", err)
		}
	}
	return nil
}

// MarshalJSON encodes the token back to its array form.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{t.Surface, t.Start, t.End, t.POS})
}

// EntitySpan is a substring flagged as a chemical entity.  On the wire it is
// the array [text, start, end].
type EntitySpan struct {
	Text  string
	Start int
	End   int
}

// UnmarshalJSON decodes the [text, start, end] array form.
func (e *EntitySpan) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("entity: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("entity: empty array")
	}
	if err := json.Unmarshal(parts[0], &e.Text); err != nil {
		return fmt.Errorf("entity text: %w", err)
	}
	if len(parts) > 1 {
		if err := unmarshalOffset(parts[1], &e.Start); err != nil {
			return fmt.Errorf("entity start: %w", err)
		}
	}
	if len(parts) > 2 {
		if err := unmarshalOffset(parts[2], &e.End); err != nil {
			return fmt.Errorf("entity end: %w", err)
		}
	}
	return nil
}

// MarshalJSON encodes the span back to its array form.
func (e EntitySpan) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Text, e.Start, e.End})
}

// String renders the span the way the survey digest prints it.
func (e EntitySpan) String() string {
	return fmt.Sprintf("%s, %d, %d", e.Text, e.Start, e.End)
}

// unmarshalOffset accepts both JSON numbers and numeric strings.
func unmarshalOffset(raw json.RawMessage, dst *int) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	*dst = int(f)
	return nil
}

// Sentence is one annotated sentence of a caption, abstract or body.
type Sentence struct {
	Text        string       `json:"sent"`
	Tokens      []Token      `json:"token_pos"`
	Entities    []EntitySpan `json:"chemical_entity"`
	Section     string       `json:"section,omitempty"`
	ParagraphID string       `json:"paragraph_id,omitempty"`
}

// HasEntities reports whether the annotator flagged at least one chemical
// entity in the sentence.
func (s Sentence) HasEntities() bool {
	return len(s.Entities) > 0
}

// Surfaces returns the token surface forms in order.
func (s Sentence) Surfaces() []string {
	out := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		out[i] = tok.Surface
	}
	return out
}

// Sentences is a sentence list.  Some publishers' records carry the abstract
// or body as one unannotated string; those decode as an empty list.
type Sentences []Sentence

// UnmarshalJSON accepts an array of sentences, a bare string or null.
func (ss *Sentences) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*ss = nil
		return nil
	}
	var list []Sentence
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*ss = list
	return nil
}

// Figure is one figure of an article with its annotated caption.
type Figure struct {
	ID      string     `json:"fig_id"`
	Label   string     `json:"label"`
	Caption []Sentence `json:"caption"`
	File    string     `json:"fig_file"`
}

// CaptionTexts returns the raw text of every caption sentence.
func (f Figure) CaptionTexts() []string {
	out := make([]string, len(f.Caption))
	for i, s := range f.Caption {
		out[i] = s.Text
	}
	return out
}

// Year tolerates both numeric and string publication years.
type Year string

// UnmarshalJSON accepts a JSON string, number or null.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*y = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*y = Year(n.String())
	}
	return nil
}

// XASRecord is the persisted form of one classification tuple, stored on an
// article under "xas_info".
type XASRecord struct {
	FigID   string `json:"fig_id"`
	Region  string `json:"region"`
	Element string `json:"element"`
	Edge    string `json:"edge"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Article aggregate
// ─────────────────────────────────────────────────────────────────────────────

// Article is one annotated scientific article.
type Article struct {
	UID       string      `json:"uid"`
	Year      Year        `json:"year"`
	Title     string      `json:"title"`
	Publisher string      `json:"publisher,omitempty"`
	Abstract  Sentences   `json:"abstract"`
	BodyText  Sentences   `json:"body_text"`
	Figures   []Figure    `json:"figures"`
	XASInfo   []XASRecord `json:"xas_info,omitempty"`

	// Origin identifies where the record came from (file path, topic/offset).
	Origin string `json:"-"`
}

// DOIPrefix is prepended to a uid to form the article link.
const DOIPrefix = "http://doi.org/"

// Link returns the article's DOI URL.
func (a *Article) Link() string {
	return DOIPrefix + a.UID
}

// TitleWithYear renders "[year] title".
func (a *Article) TitleWithYear() string {
	return "[" + string(a.Year) + "] " + a.Title
}

// FigureByID returns the figure with the given id, if any.
func (a *Article) FigureByID(id string) (Figure, bool) {
	for _, f := range a.Figures {
		if f.ID == id {
			return f, true
		}
	}
	return Figure{}, false
}

// Text returns abstract followed by body sentences.
func (a *Article) Text() []Sentence {
	out := make([]Sentence, 0, len(a.Abstract)+len(a.BodyText))
	out = append(out, a.Abstract...)
	return append(out, a.BodyText...)
}

// DecodeArticle parses one article JSON document.
func DecodeArticle(data []byte) (*Article, error) {
	var a Article
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
