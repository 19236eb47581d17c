// Package taxonomy aggregates classification tuples into the browsable XAS
// count tree: root, region, region·element and region·element·edge nodes
// seeded up front, with one "paper" leaf per article and class.
package taxonomy

import (
	"strconv"
	"strings"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
)

// Fixed ids and texts of the skeleton.
const (
	RootID     = "xas"
	RootParent = "#"
	RootText   = "XAS"

	// LeafType marks article leaves.
	LeafType = "paper"
)

// Evidence is one figure that supports a leaf's classification.
type Evidence struct {
	FigLabel   string   `json:"fig_label"`
	FigCaption []string `json:"fig_caption"`
	FigFile    string   `json:"fig_file"`
}

// EvidenceFor looks up the article figure with figID.  A missing figure
// yields empty fields.
func EvidenceFor(a *corpus.Article, figID string) Evidence {
	fig, ok := a.FigureByID(figID)
	if !ok {
		return Evidence{FigCaption: []string{}}
	}
	return Evidence{FigLabel: fig.Label, FigCaption: fig.CaptionTexts(), FigFile: fig.File}
}

// Link holds the anchor attributes of a leaf.
type Link struct {
	Href string `json:"href"`
}

// Node is one tree node in its persisted form.  Aggregate nodes carry Count;
// leaves carry AAttr, Type and Data instead.
type Node struct {
	ID     string     `json:"id"`
	Parent string     `json:"parent"`
	Text   string     `json:"text"`
	Count  int        `json:"count,omitempty"`
	AAttr  *Link      `json:"a_attr,omitempty"`
	Type   string     `json:"type,omitempty"`
	Data   []Evidence `json:"data,omitempty"`

	parent  *Node
	article string
}

// IsLeaf reports whether n is an article leaf.
func (n *Node) IsLeaf() bool { return n.Type == LeafType }

// Href returns the leaf's article link, or "".
func (n *Node) Href() string {
	if n.AAttr == nil {
		return ""
	}
	return n.AAttr.Href
}

// ArticleID returns the uid of the article a leaf belongs to.
func (n *Node) ArticleID() string {
	if n.article != "" {
		return n.article
	}
	if href := n.Href(); strings.HasPrefix(href, corpus.DOIPrefix) {
		return strings.TrimPrefix(href, corpus.DOIPrefix)
	}
	if i := strings.LastIndex(n.ID, "_"); i > 0 {
		return n.ID[:i]
	}
	return n.ID
}

// clone copies the exported fields.
func (n *Node) clone() Node {
	c := Node{
		ID:     n.ID,
		Parent: n.Parent,
		Text:   n.Text,
		Count:  n.Count,
		Type:   n.Type,
	}
	if n.AAttr != nil {
		link := *n.AAttr
		c.AAttr = &link
	}
	if n.Data != nil {
		c.Data = make([]Evidence, len(n.Data))
		for i, e := range n.Data {
			if e.FigCaption != nil {
				e.FigCaption = append(make([]string, 0, len(e.FigCaption)), e.FigCaption...)
			}
			c.Data[i] = e
		}
	}
	return c
}

// withCount renders an aggregate's display text with its " (N)" suffix.
func withCount(text string, count int) string {
	return text + " (" + strconv.Itoa(count) + ")"
}
