package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

// Loader computes the tuples of a key on a cache miss.
type Loader func(ctx context.Context) ([]xas.Tuple, error)

// TupleCache stores the extraction result of one article, keyed by scope and
// content digest.  An empty result is a valid cached value.
type TupleCache interface {
	Get(ctx context.Context, key string) ([]xas.Tuple, error)
	Set(ctx context.Context, key string, tuples []xas.Tuple) error
	GetOrLoad(ctx context.Context, key string, load Loader) ([]xas.Tuple, error)
}

// AccessRecorder observes cache lookups per tier.
type AccessRecorder interface {
	RecordCacheAccess(tier string, hit bool)
}

type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

const tierRedis = "redis"

type redisTupleCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	ttl        time.Duration
	jitter     float64
	serializer Serializer
	recorder   AccessRecorder
	group      singleflight.Group
}

type CacheOption func(*redisTupleCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisTupleCache) { c.prefix = prefix }
}

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *redisTupleCache) { c.ttl = ttl }
}

// WithJitter spreads expirations by ±fraction of the TTL; 0 disables it.
func WithJitter(fraction float64) CacheOption {
	return func(c *redisTupleCache) { c.jitter = fraction }
}

func WithSerializer(s Serializer) CacheOption {
	return func(c *redisTupleCache) { c.serializer = s }
}

func WithRecorder(r AccessRecorder) CacheOption {
	return func(c *redisTupleCache) { c.recorder = r }
}

// NewTupleCache creates a Redis-backed TupleCache.
func NewTupleCache(client *Client, log logging.Logger, opts ...CacheOption) TupleCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &redisTupleCache{
		client:     client,
		logger:     log,
		prefix:     "xasminer:",
		ttl:        24 * time.Hour,
		jitter:     0.1,
		serializer: jsonSerializer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisTupleCache) fullKey(key string) string {
	return c.prefix + "tuples:" + key
}

func (c *redisTupleCache) jitterTTL() time.Duration {
	if c.ttl == 0 || c.jitter == 0 {
		return c.ttl
	}
	d := float64(c.ttl) * c.jitter * (rand.Float64()*2 - 1)
	return c.ttl + time.Duration(d)
}

func (c *redisTupleCache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheAccess(tierRedis, hit)
	}
}

func (c *redisTupleCache) Get(ctx context.Context, key string) ([]xas.Tuple, error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		c.record(false)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	var tuples []xas.Tuple
	if err := c.serializer.Unmarshal(data, &tuples); err != nil {
		return nil, ErrSerializationFailed.WithCause(err)
	}
	c.record(true)
	if tuples == nil {
		tuples = []xas.Tuple{}
	}
	return tuples, nil
}

func (c *redisTupleCache) Set(ctx context.Context, key string, tuples []xas.Tuple) error {
	if tuples == nil {
		tuples = []xas.Tuple{}
	}
	data, err := c.serializer.Marshal(tuples)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, c.jitterTTL()).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache")
	}
	return nil
}

// GetOrLoad returns the cached tuples or loads, stores and returns them.
// Concurrent misses for one key share a single load.  A failing Redis never
// fails the lookup; the loader result is returned instead.
func (c *redisTupleCache) GetOrLoad(ctx context.Context, key string, load Loader) ([]xas.Tuple, error) {
	tuples, err := c.Get(ctx, key)
	if err == nil {
		return tuples, nil
	}
	if err != ErrCacheMiss {
		c.logger.Warn("tuple cache read failed", logging.String("key", key), logging.Err(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		loaded, loadErr := load(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if setErr := c.Set(ctx, key, loaded); setErr != nil {
			c.logger.Warn("tuple cache write failed", logging.String("key", key), logging.Err(setErr))
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]xas.Tuple), nil
}
