// Package repositories holds the PostgreSQL implementations of domain
// repositories.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/infrastructure/database/postgres"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// DefaultKeepSnapshots is how many tree snapshots Save retains.
const DefaultKeepSnapshots = 5

// TreeRepository stores each saved tree as an immutable snapshot and loads
// the newest one.
type TreeRepository struct {
	conn   *postgres.Connection
	logger logging.Logger
	keep   int
	newID  func() uuid.UUID
}

var _ taxonomy.Repository = (*TreeRepository)(nil)

// NewTreeRepository constructs a TreeRepository.  keep bounds the number of
// retained snapshots; 0 keeps all of them.
func NewTreeRepository(conn *postgres.Connection, keep int, log logging.Logger) *TreeRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TreeRepository{conn: conn, logger: log, keep: keep, newID: uuid.New}
}

// ─────────────────────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────────────────────

func (r *TreeRepository) Save(ctx context.Context, nodes []taxonomy.Node) (err error) {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "begin tree snapshot")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id := r.newID()
	leaves := 0
	for i := range nodes {
		if nodes[i].IsLeaf() {
			leaves++
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO tree_snapshots (id, node_count, leaf_count) VALUES ($1, $2, $3)`,
		id, len(nodes), leaves,
	); err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "insert tree snapshot")
	}

	for i, n := range nodes {
		var data interface{}
		if n.Data != nil {
			raw, mErr := json.Marshal(n.Data)
			if mErr != nil {
				return errors.Wrap(mErr, errors.ErrCodeSerialization, "encode leaf evidence").WithDetail(n.ID)
			}
			data = string(raw)
		}
		href := sql.NullString{String: n.Href(), Valid: n.AAttr != nil}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tree_nodes (snapshot_id, position, id, parent, text, count, href, type, data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, i, n.ID, n.Parent, n.Text, n.Count, href, n.Type, data,
		); err != nil {
			return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "insert tree node").WithDetail(n.ID)
		}
	}

	if r.keep > 0 {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM tree_snapshots WHERE id NOT IN (
				SELECT id FROM tree_snapshots ORDER BY created_at DESC LIMIT $1)`,
			r.keep,
		); err != nil {
			return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "prune tree snapshots")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "commit tree snapshot")
	}
	r.logger.Info("tree snapshot saved",
		logging.String("snapshot_id", id.String()),
		logging.Int("nodes", len(nodes)),
		logging.Int("leaves", leaves),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

func (r *TreeRepository) Load(ctx context.Context) ([]taxonomy.Node, error) {
	db := r.conn.DB()

	var id uuid.UUID
	err := db.QueryRowContext(ctx,
		`SELECT id FROM tree_snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("tree not persisted yet")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query latest tree snapshot")
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, parent, text, count, href, type, data
		 FROM tree_nodes WHERE snapshot_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query tree nodes")
	}
	defer rows.Close()

	var nodes []taxonomy.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate tree nodes")
	}
	return nodes, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(s scanner) (taxonomy.Node, error) {
	var (
		n    taxonomy.Node
		href sql.NullString
		data []byte
	)
	if err := s.Scan(&n.ID, &n.Parent, &n.Text, &n.Count, &href, &n.Type, &data); err != nil {
		return n, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan tree node")
	}
	if href.Valid {
		n.AAttr = &taxonomy.Link{Href: href.String}
	}
	if data != nil {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return n, errors.Wrap(err, errors.ErrCodeSerialization, "decode leaf evidence").WithDetail(n.ID)
		}
	}
	return n, nil
}
