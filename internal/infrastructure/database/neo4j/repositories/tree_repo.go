// Package repositories holds the Neo4j implementations of domain
// repositories.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	driver "github.com/turtacn/xas-miner/internal/infrastructure/database/neo4j"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// DefaultBatchSize bounds the rows sent per UNWIND statement.
const DefaultBatchSize = 500

const (
	cypherConstraint = `CREATE CONSTRAINT taxonomy_node_id IF NOT EXISTS
		FOR (n:TaxonomyNode) REQUIRE n.id IS UNIQUE`

	cypherClear = `MATCH (n:TaxonomyNode) DETACH DELETE n`

	cypherCreateNodes = `UNWIND $rows AS row
		CREATE (n:TaxonomyNode {
			id: row.id, parent: row.parent, text: row.text, count: row.count,
			href: row.href, type: row.type, data: row.data, position: row.position
		})`

	cypherLinkParents = `MATCH (c:TaxonomyNode) WHERE c.parent <> $root
		MATCH (p:TaxonomyNode {id: c.parent})
		CREATE (p)-[:PARENT_OF]->(c)
		RETURN count(*) AS edges`

	cypherLoad = `MATCH (n:TaxonomyNode)
		RETURN n.id AS id, n.parent AS parent, n.text AS text, n.count AS count,
		       n.href AS href, n.type AS type, n.data AS data
		ORDER BY n.position`
)

// TreeRepository stores the tree as :TaxonomyNode vertices joined by
// PARENT_OF edges.  Node order is kept in a position property.
type TreeRepository struct {
	exec      driver.Executor
	logger    logging.Logger
	batchSize int
}

var _ taxonomy.Repository = (*TreeRepository)(nil)

// NewTreeRepository constructs a TreeRepository over exec.
func NewTreeRepository(exec driver.Executor, log logging.Logger) *TreeRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TreeRepository{exec: exec, logger: log, batchSize: DefaultBatchSize}
}

// EnsureSchema creates the node id uniqueness constraint.
func (r *TreeRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.exec.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherConstraint, nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "ensure taxonomy constraint")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────────────────────

// Save replaces the stored graph with nodes in one write transaction.
func (r *TreeRepository) Save(ctx context.Context, nodes []taxonomy.Node) error {
	rows := make([]map[string]any, 0, len(nodes))
	for i := range nodes {
		row, err := nodeRow(&nodes[i], i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	out, err := r.exec.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		if _, err := tx.Run(ctx, cypherClear, nil); err != nil {
			return nil, fmt.Errorf("clear tree: %w", err)
		}
		for start := 0; start < len(rows); start += r.batchSize {
			end := start + r.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			if _, err := tx.Run(ctx, cypherCreateNodes, map[string]any{"rows": rows[start:end]}); err != nil {
				return nil, fmt.Errorf("create nodes %d-%d: %w", start, end, err)
			}
		}
		res, err := tx.Run(ctx, cypherLinkParents, map[string]any{"root": taxonomy.RootParent})
		if err != nil {
			return nil, fmt.Errorf("link parents: %w", err)
		}
		return driver.ExtractSingleRecord(ctx, res, func(rec *neo4j.Record) (int64, error) {
			v, _ := rec.Get("edges")
			n, _ := v.(int64)
			return n, nil
		})
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "save tree graph")
	}

	edges, _ := out.(int64)
	r.logger.Info("tree graph saved",
		logging.Int("nodes", len(nodes)),
		logging.Int64("edges", edges),
	)
	return nil
}

func nodeRow(n *taxonomy.Node, position int) (map[string]any, error) {
	row := map[string]any{
		"id":       n.ID,
		"parent":   n.Parent,
		"text":     n.Text,
		"count":    int64(n.Count),
		"href":     nil,
		"type":     nil,
		"data":     nil,
		"position": int64(position),
	}
	if n.AAttr != nil {
		row["href"] = n.AAttr.Href
	}
	if n.Type != "" {
		row["type"] = n.Type
	}
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode leaf evidence").WithDetail(n.ID)
		}
		row["data"] = string(raw)
	}
	return row, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads the graph back in saved order.
func (r *TreeRepository) Load(ctx context.Context) ([]taxonomy.Node, error) {
	out, err := r.exec.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherLoad, nil)
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, res, recordNode)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "load tree graph")
	}
	nodes, _ := out.([]taxonomy.Node)
	if len(nodes) == 0 {
		return nil, errors.NotFound("tree not persisted yet")
	}
	return nodes, nil
}

func recordNode(rec *neo4j.Record) (taxonomy.Node, error) {
	var n taxonomy.Node
	n.ID = stringProp(rec, "id")
	n.Parent = stringProp(rec, "parent")
	n.Text = stringProp(rec, "text")
	n.Type = stringProp(rec, "type")
	if v, ok := rec.Get("count"); ok {
		if c, ok := v.(int64); ok {
			n.Count = int(c)
		}
	}
	if v, ok := rec.Get("href"); ok && v != nil {
		n.AAttr = &taxonomy.Link{Href: fmt.Sprint(v)}
	}
	if data := stringProp(rec, "data"); data != "" {
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return n, errors.Wrap(err, errors.ErrCodeSerialization, "decode leaf evidence").WithDetail(n.ID)
		}
	}
	return n, nil
}

func stringProp(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
