package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/pkg/errors"
)

type memRepo struct {
	nodes []taxonomy.Node
	err   error
}

func (r *memRepo) Save(_ context.Context, nodes []taxonomy.Node) error {
	r.nodes = nodes
	return nil
}

func (r *memRepo) Load(context.Context) ([]taxonomy.Node, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.nodes, nil
}

func sampleTree() []taxonomy.Node {
	return []taxonomy.Node{
		{ID: "xas", Parent: "#", Text: "XAS (1)", Count: 1},
		{ID: "xanes", Parent: "xas", Text: "XANES (1)", Count: 1},
		{ID: "xanes_Cu", Parent: "xanes", Text: "Cu (1)", Count: 1},
		{ID: "xanes_Cu_k", Parent: "xanes_Cu", Text: "K-edge (1)", Count: 1},
		{
			ID: "10.1021/ja01_0", Parent: "xanes_Cu_k", Text: "[2019] Copper",
			AAttr: &taxonomy.Link{Href: "http://doi.org/10.1021/ja01"}, Type: taxonomy.LeafType,
			Data: []taxonomy.Evidence{{FigLabel: "Figure 1", FigCaption: []string{"Cu K-edge"}, FigFile: "f1.jpg"}},
		},
	}
}

func newTreeRouter(t *testing.T, repo taxonomy.Repository, load bool) *gin.Engine {
	t.Helper()
	store := NewTreeStore(repo, nil)
	if load {
		require.NoError(t, store.Reload(context.Background()))
	}
	r := gin.New()
	NewTreeHandler(store).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestTreeHandler_GetTree(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree")
	require.Equal(t, http.StatusOK, w.Code)

	var nodes []taxonomy.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nodes))
	assert.Len(t, nodes, 5)
	assert.Equal(t, "xas", nodes[0].ID)
}

func TestTreeHandler_GetNode(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree/nodes/xanes_Cu")
	require.Equal(t, http.StatusOK, w.Code)

	var resp NodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Cu (1)", resp.Node.Text)
	require.Len(t, resp.Children, 1)
	assert.Equal(t, "xanes_Cu_k", resp.Children[0].ID)
}

func TestTreeHandler_GetLeafWithSlashInID(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree/nodes/10.1021/ja01_0")
	require.Equal(t, http.StatusOK, w.Code)

	var resp NodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "http://doi.org/10.1021/ja01", resp.Node.Href())
	assert.Empty(t, resp.Children)
}

func TestTreeHandler_GetNodeUnknown(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree/nodes/exafs_Zz_k")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeTreeNodeUnknown), resp.Code)
	assert.Equal(t, "id=exafs_Zz_k", resp.Detail)
}

func TestTreeHandler_ListPapers(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree/papers?class=xanes_Cu_k")
	require.Equal(t, http.StatusOK, w.Code)

	var resp PapersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "10.1021/ja01_0", resp.Papers[0].ID)
}

func TestTreeHandler_ListPapersEmptyClass(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree/papers?class=xanes_Cu")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"papers":[]`)
}

func TestTreeHandler_ListPapersRequiresClass(t *testing.T) {
	r := newTreeRouter(t, &memRepo{nodes: sampleTree()}, true)

	w := get(r, "/api/v1/tree/papers")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTreeHandler_NotLoaded(t *testing.T) {
	r := newTreeRouter(t, &memRepo{}, false)

	w := get(r, "/api/v1/tree")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTreeStore_ReloadFailureKeepsTree(t *testing.T) {
	repo := &memRepo{nodes: sampleTree()}
	store := NewTreeStore(repo, nil)
	require.NoError(t, store.Reload(context.Background()))
	require.NoError(t, store.Check(context.Background()))

	repo.err = errors.New(errors.ErrCodeDatabaseError, "connection reset")
	assert.Error(t, store.Reload(context.Background()))

	idx, err := store.Index()
	require.NoError(t, err)
	assert.Equal(t, 5, idx.Len())
}

func TestWriteAppError_MasksServerErrors(t *testing.T) {
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		writeAppError(c, errors.New(errors.ErrCodeDatabaseError, "password authentication failed").WithDetail("dsn"))
	})

	w := get(r, "/boom")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), "database error")
}
