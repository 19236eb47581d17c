package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// TreeStore keeps the persisted tree in memory, indexed for lookups.
type TreeStore struct {
	repo   taxonomy.Repository
	logger logging.Logger

	mu       sync.RWMutex
	index    *taxonomy.Index
	loadedAt time.Time
}

// NewTreeStore creates an empty store backed by repo.
func NewTreeStore(repo taxonomy.Repository, logger logging.Logger) *TreeStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TreeStore{repo: repo, logger: logger}
}

// Reload replaces the served tree with the repository's current one.  On
// failure the previous tree stays in place.
func (s *TreeStore) Reload(ctx context.Context) error {
	nodes, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load taxonomy tree", logging.Err(err))
		return err
	}
	idx := taxonomy.NewIndex(nodes)

	s.mu.Lock()
	s.index = idx
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("taxonomy tree loaded",
		logging.Int("nodes", idx.Len()),
		logging.Int("leaves", len(idx.Leaves())),
	)
	return nil
}

// Index returns the served tree, or ErrCodeServiceUnavailable before the
// first successful load.
func (s *TreeStore) Index() (*taxonomy.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "taxonomy tree not loaded")
	}
	return s.index, nil
}

// Name implements HealthChecker.
func (s *TreeStore) Name() string { return "tree" }

// Check implements HealthChecker.
func (s *TreeStore) Check(context.Context) error {
	_, err := s.Index()
	return err
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

// NodeResponse is a node with its direct children.
type NodeResponse struct {
	Node     taxonomy.Node   `json:"node"`
	Children []taxonomy.Node `json:"children"`
}

// PapersResponse lists the article leaves of one class.
type PapersResponse struct {
	Class  string          `json:"class"`
	Total  int             `json:"total"`
	Papers []taxonomy.Node `json:"papers"`
}

// TreeHandler serves the taxonomy tree.
type TreeHandler struct {
	store *TreeStore
}

func NewTreeHandler(store *TreeStore) *TreeHandler {
	return &TreeHandler{store: store}
}

// RegisterRoutes mounts the tree endpoints on rg.  Node ids of leaves embed
// DOIs, so the id is a catch-all path parameter.
func (h *TreeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tree := rg.Group("/tree")
	tree.GET("", h.GetTree)
	tree.GET("/papers", h.ListPapers)
	tree.GET("/nodes/*id", h.GetNode)
}

// GetTree handles GET /api/v1/tree.
func (h *TreeHandler) GetTree(c *gin.Context) {
	idx, err := h.store.Index()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, idx.Nodes())
}

// GetNode handles GET /api/v1/tree/nodes/:id.
func (h *TreeHandler) GetNode(c *gin.Context) {
	idx, err := h.store.Index()
	if err != nil {
		writeAppError(c, err)
		return
	}
	id := strings.TrimPrefix(c.Param("id"), "/")
	if id == "" {
		writeAppError(c, errors.InvalidParam("node id is required"))
		return
	}
	n, err := idx.Node(id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, NodeResponse{Node: n, Children: idx.Children(id)})
}

// ListPapers handles GET /api/v1/tree/papers?class=xanes_Cu_k.
func (h *TreeHandler) ListPapers(c *gin.Context) {
	idx, err := h.store.Index()
	if err != nil {
		writeAppError(c, err)
		return
	}
	class := c.Query("class")
	if class == "" {
		writeAppError(c, errors.InvalidParam("class query parameter is required"))
		return
	}
	papers, err := idx.Papers(class)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if papers == nil {
		papers = []taxonomy.Node{}
	}
	c.JSON(http.StatusOK, PapersResponse{Class: class, Total: len(papers), Papers: papers})
}
