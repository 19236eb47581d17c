package taxonomy

import (
	"github.com/turtacn/xas-miner/pkg/errors"
)

// Index is a read-only view over a persisted node list.
type Index struct {
	nodes    []Node
	byID     map[string]int
	children map[string][]int
}

// NewIndex indexes nodes by id and parent.  Later duplicates of an id
// shadow earlier ones.
func NewIndex(nodes []Node) *Index {
	idx := &Index{
		nodes:    nodes,
		byID:     make(map[string]int, len(nodes)),
		children: make(map[string][]int),
	}
	for i, n := range nodes {
		idx.byID[n.ID] = i
		idx.children[n.Parent] = append(idx.children[n.Parent], i)
	}
	return idx
}

// Nodes returns the full node list.
func (x *Index) Nodes() []Node { return x.nodes }

// Len returns the number of nodes.
func (x *Index) Len() int { return len(x.nodes) }

// Node returns the node with id or an ErrCodeTreeNodeUnknown error.
func (x *Index) Node(id string) (Node, error) {
	i, ok := x.byID[id]
	if !ok {
		return Node{}, errors.New(errors.ErrCodeTreeNodeUnknown, "tree node not found").WithDetail("id=" + id)
	}
	return x.nodes[i], nil
}

// Children returns the direct children of id in list order.
func (x *Index) Children(id string) []Node {
	pos := x.children[id]
	out := make([]Node, 0, len(pos))
	for _, i := range pos {
		out = append(out, x.nodes[i])
	}
	return out
}

// Papers returns the article leaves filed under class.
func (x *Index) Papers(class string) ([]Node, error) {
	n, err := x.Node(class)
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, c := range x.Children(n.ID) {
		if c.IsLeaf() {
			out = append(out, c)
		}
	}
	return out, nil
}

// Leaves returns every article leaf in list order.
func (x *Index) Leaves() []Node {
	var out []Node
	for _, n := range x.nodes {
		if n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}
