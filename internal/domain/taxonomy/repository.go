package taxonomy

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/turtacn/xas-miner/pkg/errors"
)

// Repository persists the rendered tree.
type Repository interface {
	// Save replaces the stored tree with nodes.
	Save(ctx context.Context, nodes []Node) error

	// Load returns the stored tree.  Returns an ErrCodeNotFound error when
	// nothing has been saved yet.
	Load(ctx context.Context) ([]Node, error)
}

// Encode serialises nodes as the JSON array consumed by the tree browser.
func Encode(nodes []Node) ([]byte, error) {
	if nodes == nil {
		nodes = []Node{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nodes); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode tree")
	}
	return buf.Bytes(), nil
}

// Decode parses a JSON node array.
func Decode(data []byte) ([]Node, error) {
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode tree")
	}
	return nodes, nil
}

// FileRepository stores the tree as one JSON file.
type FileRepository struct {
	path string
}

// NewFileRepository creates a FileRepository writing to path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file.
func (r *FileRepository) Path() string { return r.path }

// Save writes the tree atomically via a temp file in the same directory.
func (r *FileRepository) Save(ctx context.Context, nodes []Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(nodes)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "create tree directory").WithDetail(dir)
	}
	tmp, err := os.CreateTemp(dir, ".xas_tree-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "create temp tree file").WithDetail(dir)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "write tree").WithDetail(r.path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "write tree").WithDetail(r.path)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "replace tree file").WithDetail(r.path)
	}
	return nil
}

// Load reads the tree file.
func (r *FileRepository) Load(ctx context.Context) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, errors.NotFound("tree not persisted yet").WithDetail(r.path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTreePersistFailed, "read tree").WithDetail(r.path)
	}
	return Decode(data)
}
