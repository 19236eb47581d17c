package taxonomy

import (
	"strconv"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// AddResult summarises one article's contribution to the tree.
type AddResult struct {
	Leaves   int
	Evidence int
	Skipped  int
}

// Tree is the mutable aggregation state.  Nodes are kept in creation order
// and indexed by id; each node points at its parent so ancestor roll-up is a
// walk up the chain.  A Tree is not safe for concurrent use: one writer owns
// it for the whole pass.
type Tree struct {
	nodes []*Node
	index map[string]*Node

	// leaves maps article uid + class id to the article's leaf.
	leaves map[leafKey]*Node
	// next is the per-article leaf counter.
	next map[string]int
}

type leafKey struct {
	article string
	class   string
}

// NewTree seeds the skeleton for every element of registry: root, both
// regions, and per region the element nodes and their K/L/M children, all
// with count 0.
func NewTree(registry *xas.Registry) *Tree {
	if registry == nil {
		registry = xas.DefaultRegistry()
	}
	t := &Tree{
		index:  make(map[string]*Node),
		leaves: make(map[leafKey]*Node),
		next:   make(map[string]int),
	}
	t.insert(&Node{ID: RootID, Parent: RootParent, Text: RootText})
	for _, r := range xas.Regions {
		t.insert(&Node{ID: r.ID(), Parent: RootID, Text: string(r)})
	}
	for _, sym := range registry.Symbols() {
		for _, r := range xas.Regions {
			elemID := r.ID() + "_" + sym
			t.insert(&Node{ID: elemID, Parent: r.ID(), Text: sym})
		}
		for _, r := range xas.Regions {
			for _, e := range xas.Edges {
				t.insert(&Node{ID: xas.ClassID(r, sym, e), Parent: r.ID() + "_" + sym, Text: e.Label()})
			}
		}
	}
	return t
}

func (t *Tree) insert(n *Node) {
	n.parent = t.index[n.Parent]
	t.nodes = append(t.nodes, n)
	t.index[n.ID] = n
}

// Add records the tuples of one article.  Each tuple whose class has no
// leaf for this article yet creates one and increments the class, element,
// region and root counts; otherwise the tuple's figure is appended to the
// existing leaf's evidence.  Tuples naming an unseeded class are skipped.
// An article without uid is rejected with ErrCodeArticleMissingUID.
func (t *Tree) Add(a *corpus.Article, tuples []xas.Tuple) (AddResult, error) {
	var res AddResult
	if a == nil || a.UID == "" {
		origin := ""
		if a != nil {
			origin = a.Origin
		}
		return res, errors.New(errors.ErrCodeArticleMissingUID, "article has no uid").WithDetail(origin)
	}
	for _, tp := range tuples {
		if tp.Region == "" || tp.Element == "" || tp.Edge == "" {
			res.Skipped++
			continue
		}
		leaf := &Node{
			Parent: tp.Class(),
			Text:   a.TitleWithYear(),
			AAttr:  &Link{Href: a.Link()},
			Type:   LeafType,
			Data:   []Evidence{EvidenceFor(a, tp.FigID)},
		}
		created, ok := t.place(a.UID, leaf)
		switch {
		case !ok:
			res.Skipped++
		case created:
			res.Leaves++
		default:
			res.Evidence++
		}
	}
	return res, nil
}

// place attaches leaf under its class for article uid, or merges its
// evidence into the existing leaf.  ok is false when the class is unknown.
func (t *Tree) place(uid string, leaf *Node) (created, ok bool) {
	class, found := t.index[leaf.Parent]
	if !found {
		return false, false
	}
	key := leafKey{article: uid, class: leaf.Parent}
	if existing, dup := t.leaves[key]; dup {
		existing.Data = append(existing.Data, leaf.Data...)
		return false, true
	}

	n := t.next[uid]
	t.next[uid] = n + 1
	leaf.ID = uid + "_" + strconv.Itoa(n)
	leaf.article = uid
	leaf.parent = class
	t.nodes = append(t.nodes, leaf)
	t.index[leaf.ID] = leaf
	t.leaves[key] = leaf

	for p := class; p != nil; p = p.parent {
		p.Count++
	}
	return true, true
}

// Merge folds the leaves of other into t as if its articles had been added
// after t's own.  The skeletons must agree on class ids; leaves under an
// unknown class are dropped.
func (t *Tree) Merge(other *Tree) {
	for _, n := range other.nodes {
		if !n.IsLeaf() {
			continue
		}
		c := n.clone()
		c.ID = ""
		t.place(n.ArticleID(), &c)
	}
}

// Prune removes aggregate nodes whose count is 0 and returns how many were
// removed.  Leaves always keep their ancestors since every leaf contributed
// to each of them.
func (t *Tree) Prune() int {
	kept := t.nodes[:0]
	removed := 0
	for _, n := range t.nodes {
		if !n.IsLeaf() && n.Count == 0 {
			delete(t.index, n.ID)
			removed++
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(t.nodes); i++ {
		t.nodes[i] = nil
	}
	t.nodes = kept
	return removed
}

// Render returns copies of the current nodes in creation order with the
// " (N)" count suffix appended to aggregate texts.  Call Prune first for the
// persisted form.
func (t *Tree) Render() []Node {
	out := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		c := n.clone()
		if !n.IsLeaf() {
			c.Text = withCount(c.Text, c.Count)
		}
		out = append(out, c)
	}
	return out
}

// Node returns the node with id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// Count returns the count of node id, or 0 when absent.
func (t *Tree) Count(id string) int {
	if n, ok := t.index[id]; ok {
		return n.Count
	}
	return 0
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Leaves returns the article leaves in creation order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Aggregates returns the number of non-leaf nodes.
func (t *Tree) Aggregates() int {
	return len(t.nodes) - len(t.leaves)
}

// Ancestors returns the chain from n's parent up to the root.
func (t *Tree) Ancestors(id string) []*Node {
	n, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []*Node
	for p := n.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}
