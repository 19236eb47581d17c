package taxonomy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/internal/testutil"
	"github.com/turtacn/xas-miner/pkg/errors"
)

func tup(fig string, r xas.Region, el string, e xas.Edge) xas.Tuple {
	return xas.Tuple{FigID: fig, Region: r, Element: el, Edge: e}
}

func articleA() (*corpus.Article, []xas.Tuple) {
	a := testutil.Article("10.1/a",
		testutil.Figure("fig1", "Figure 1", testutil.Sentence("Cu K-edge XANES.", "Cu", "K-edge", "XANES", ".")),
		testutil.Figure("fig2", "Figure 2", testutil.Sentence("Cu K-edge XANES fits.", "Cu", "K-edge", "XANES", "fits", ".")),
	)
	return a, []xas.Tuple{
		tup("fig1", xas.RegionXANES, "Cu", xas.EdgeK),
		tup("fig2", xas.RegionXANES, "Cu", xas.EdgeK),
		tup("fig2", xas.RegionEXAFS, "Fe", xas.EdgeL),
	}
}

func articleB() (*corpus.Article, []xas.Tuple) {
	b := testutil.Article("10.1/b",
		testutil.Figure("fig3", "Figure 3", testutil.Sentence("Cu K-edge XANES.", "Cu", "K-edge", "XANES", ".")),
	)
	return b, []xas.Tuple{tup("fig3", xas.RegionXANES, "Cu", xas.EdgeK)}
}

func TestNewTree_Skeleton(t *testing.T) {
	tree := NewTree(nil)
	n := len(xas.DefaultRegistry().Symbols())
	assert.Equal(t, 3+n*2+n*2*3, tree.Len())

	root, ok := tree.Node(RootID)
	require.True(t, ok)
	assert.Equal(t, RootParent, root.Parent)

	k, ok := tree.Node("xanes_Fe_k")
	require.True(t, ok)
	assert.Equal(t, "K-edge", k.Text)
	assert.Equal(t, "xanes_Fe", k.Parent)

	chain := tree.Ancestors("xanes_Fe_k")
	require.Len(t, chain, 3)
	assert.Equal(t, "xanes_Fe", chain[0].ID)
	assert.Equal(t, "xanes", chain[1].ID)
	assert.Equal(t, RootID, chain[2].ID)
}

func TestTree_AddCountsAndEvidence(t *testing.T) {
	tree := NewTree(nil)
	a, tuples := articleA()

	res, err := tree.Add(a, tuples)
	require.NoError(t, err)
	assert.Equal(t, AddResult{Leaves: 2, Evidence: 1}, res)

	assert.Equal(t, 2, tree.Count(RootID))
	assert.Equal(t, 1, tree.Count("xanes"))
	assert.Equal(t, 1, tree.Count("xanes_Cu"))
	assert.Equal(t, 1, tree.Count("xanes_Cu_k"))
	assert.Equal(t, 1, tree.Count("exafs_Fe_l"))
	assert.Equal(t, 0, tree.Count("exafs_Cu_k"))

	leaves := tree.Leaves()
	require.Len(t, leaves, 2)
	cu := leaves[0]
	assert.Equal(t, "10.1/a_0", cu.ID)
	assert.Equal(t, "xanes_Cu_k", cu.Parent)
	assert.Equal(t, "[2019] Article 10.1/a", cu.Text)
	assert.Equal(t, "http://doi.org/10.1/a", cu.Href())
	require.Len(t, cu.Data, 2)
	assert.Equal(t, "Figure 1", cu.Data[0].FigLabel)
	assert.Equal(t, []string{"Cu K-edge XANES."}, cu.Data[0].FigCaption)
	assert.Equal(t, "fig2.jpg", cu.Data[1].FigFile)
	assert.Equal(t, "10.1/a_1", leaves[1].ID)
}

func TestTree_AddSecondPassMergesEvidence(t *testing.T) {
	tree := NewTree(nil)
	a, tuples := articleA()
	_, err := tree.Add(a, tuples)
	require.NoError(t, err)

	res, err := tree.Add(a, tuples[:1])
	require.NoError(t, err)
	assert.Equal(t, AddResult{Evidence: 1}, res)
	assert.Equal(t, 2, tree.Count(RootID))
}

func TestTree_AddMissingUID(t *testing.T) {
	tree := NewTree(nil)
	a, tuples := articleA()
	a.UID = ""
	a.Origin = "corpus/a.json"

	_, err := tree.Add(a, tuples)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArticleMissingUID))
	assert.Empty(t, tree.Leaves())
}

func TestTree_AddSkipsUnsetAndUnknown(t *testing.T) {
	tree := NewTree(nil)
	a, _ := articleA()

	res, err := tree.Add(a, []xas.Tuple{
		{FigID: "fig1", Region: xas.RegionXANES, Element: "", Edge: xas.EdgeK},
		tup("fig1", xas.RegionXANES, "O", xas.EdgeK),
	})
	require.NoError(t, err)
	assert.Equal(t, AddResult{Skipped: 2}, res)
	assert.Equal(t, 0, tree.Count(RootID))
}

func TestTree_MissingFigureGivesEmptyEvidence(t *testing.T) {
	tree := NewTree(nil)
	a, _ := articleA()
	_, err := tree.Add(a, []xas.Tuple{tup("fig9", xas.RegionEXAFS, "Ni", xas.EdgeK)})
	require.NoError(t, err)

	leaf := tree.Leaves()[0]
	assert.Equal(t, Evidence{FigCaption: []string{}}, leaf.Data[0])
}

func TestTree_PruningLaw(t *testing.T) {
	tree := NewTree(nil)
	a, ta := articleA()
	b, tb := articleB()
	_, err := tree.Add(a, ta)
	require.NoError(t, err)
	_, err = tree.Add(b, tb)
	require.NoError(t, err)

	removed := tree.Prune()
	assert.Greater(t, removed, 0)

	nodes := tree.Render()
	idx := NewIndex(nodes)
	for _, n := range nodes {
		if n.IsLeaf() {
			id := n.Parent
			for id != RootParent {
				p, err := idx.Node(id)
				require.NoError(t, err, "leaf %s lost ancestor %s", n.ID, id)
				id = p.Parent
			}
			continue
		}
		assert.Greater(t, n.Count, 0, n.ID)
	}
	assert.Equal(t, 3, tree.Count(RootID))
	assert.Equal(t, 2, tree.Count("xanes_Cu_k"))
	assert.Equal(t, 3, len(tree.Leaves()))
	assert.Equal(t, tree.Len()-3, tree.Aggregates())
}

func TestTree_RenderSuffix(t *testing.T) {
	tree := NewTree(nil)
	b, tb := articleB()
	_, err := tree.Add(b, tb)
	require.NoError(t, err)
	tree.Prune()

	nodes := tree.Render()
	require.Len(t, nodes, 5)
	assert.Equal(t, Node{ID: "xas", Parent: "#", Text: "XAS (1)", Count: 1}, nodes[0])
	assert.Equal(t, "XANES (1)", nodes[1].Text)
	assert.Equal(t, "Cu (1)", nodes[2].Text)
	assert.Equal(t, "K-edge (1)", nodes[3].Text)
	assert.Equal(t, "[2019] Article 10.1/b", nodes[4].Text)
	assert.Zero(t, nodes[4].Count)
}

func TestTree_MergeIsAssociative(t *testing.T) {
	a, ta := articleA()
	b, tb := articleB()

	together := NewTree(nil)
	_, err := together.Add(a, ta)
	require.NoError(t, err)
	_, err = together.Add(b, tb)
	require.NoError(t, err)

	left := NewTree(nil)
	_, err = left.Add(a, ta)
	require.NoError(t, err)
	right := NewTree(nil)
	_, err = right.Add(b, tb)
	require.NoError(t, err)
	left.Merge(right)

	together.Prune()
	left.Prune()
	assert.Equal(t, together.Render(), left.Render())
}

func TestTree_MergeSameArticle(t *testing.T) {
	a, ta := articleA()
	left := NewTree(nil)
	_, err := left.Add(a, ta[:1])
	require.NoError(t, err)
	right := NewTree(nil)
	_, err = right.Add(a, ta[1:])
	require.NoError(t, err)

	left.Merge(right)
	assert.Equal(t, 2, left.Count(RootID))
	require.Len(t, left.Leaves(), 2)
	assert.Len(t, left.Leaves()[0].Data, 2)
	assert.Equal(t, "10.1/a_1", left.Leaves()[1].ID)
}

func TestIndex(t *testing.T) {
	tree := NewTree(nil)
	a, ta := articleA()
	_, err := tree.Add(a, ta)
	require.NoError(t, err)
	tree.Prune()
	idx := NewIndex(tree.Render())

	papers, err := idx.Papers("xanes_Cu_k")
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "10.1/a", papers[0].ArticleID())

	_, err = idx.Papers("xanes_Zn_k")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTreeNodeUnknown))
	assert.True(t, errors.IsNotFound(err))

	kids := idx.Children("xas")
	require.Len(t, kids, 2)
	assert.Equal(t, "exafs", kids[0].ID)
	assert.Len(t, idx.Leaves(), 2)
}

func TestFileRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "out", "xas_tree.json"))

	_, err := repo.Load(ctx)
	assert.True(t, errors.IsNotFound(err))

	tree := NewTree(nil)
	b, tb := articleB()
	_, err = tree.Add(b, tb)
	require.NoError(t, err)
	tree.Prune()
	nodes := tree.Render()

	require.NoError(t, repo.Save(ctx, nodes))
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, nodes, loaded)
	assert.Equal(t, "10.1/b", loaded[4].ArticleID())
}

func TestEncode_LeafShape(t *testing.T) {
	data, err := Encode([]Node{{
		ID: "u_0", Parent: "xanes_Cu_k", Text: "[2019] T",
		AAttr: &Link{Href: "http://doi.org/u"}, Type: LeafType,
		Data: []Evidence{{FigLabel: "Figure 1", FigCaption: []string{"a"}, FigFile: "f.jpg"}},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"u_0","parent":"xanes_Cu_k","text":"[2019] T",
		"a_attr":{"href":"http://doi.org/u"},"type":"paper",
		"data":[{"fig_label":"Figure 1","fig_caption":["a"],"fig_file":"f.jpg"}]}]`, string(data))
}
