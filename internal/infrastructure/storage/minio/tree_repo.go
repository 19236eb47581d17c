package minio

import (
	"bytes"
	"context"
	"strconv"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

const (
	contentTypeJSON = "application/json"
	metaNodeCount   = "Node-Count"
)

// TreeRepository stores the tree as one JSON object, in the same format the
// file backend writes.
type TreeRepository struct {
	client *MinIOClient
	logger logging.Logger
}

var _ taxonomy.Repository = (*TreeRepository)(nil)

// NewTreeRepository constructs a TreeRepository.
func NewTreeRepository(client *MinIOClient, log logging.Logger) *TreeRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TreeRepository{client: client, logger: log}
}

// Save uploads the encoded tree, replacing the previous object.
func (r *TreeRepository) Save(ctx context.Context, nodes []taxonomy.Node) error {
	api, err := r.client.API()
	if err != nil {
		return err
	}
	data, err := taxonomy.Encode(nodes)
	if err != nil {
		return err
	}
	info, err := api.PutObject(ctx, r.client.Bucket(), r.client.ObjectKey(),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentTypeJSON,
			UserMetadata: map[string]string{metaNodeCount: strconv.Itoa(len(nodes))},
		})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTreePersistFailed, "upload tree object").
			WithDetail(r.client.Bucket() + "/" + r.client.ObjectKey())
	}
	r.logger.Info("tree object saved",
		logging.String("bucket", r.client.Bucket()),
		logging.String("key", r.client.ObjectKey()),
		logging.String("etag", info.ETag),
		logging.Int("nodes", len(nodes)),
	)
	return nil
}

// Load downloads and decodes the tree object.
func (r *TreeRepository) Load(ctx context.Context) ([]taxonomy.Node, error) {
	api, err := r.client.API()
	if err != nil {
		return nil, err
	}
	data, err := api.ReadObject(ctx, r.client.Bucket(), r.client.ObjectKey())
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.NotFound("tree not persisted yet").WithDetail(r.client.ObjectKey())
		}
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "download tree object").
			WithDetail(r.client.Bucket() + "/" + r.client.ObjectKey())
	}
	return taxonomy.Decode(data)
}
