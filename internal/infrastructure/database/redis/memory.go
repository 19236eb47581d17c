package redis

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/xas-miner/internal/domain/xas"
)

const tierMemory = "memory"

// MemoryTupleCache is an in-process TupleCache with per-entry expiry.
type MemoryTupleCache struct {
	store    *gocache.Cache
	recorder AccessRecorder
	group    singleflight.Group
}

// NewMemoryTupleCache creates a MemoryTupleCache; entries expire after ttl
// and are swept every 2*ttl.
func NewMemoryTupleCache(ttl time.Duration, recorder AccessRecorder) *MemoryTupleCache {
	return &MemoryTupleCache{
		store:    gocache.New(ttl, 2*ttl),
		recorder: recorder,
	}
}

func (m *MemoryTupleCache) record(hit bool) {
	if m.recorder != nil {
		m.recorder.RecordCacheAccess(tierMemory, hit)
	}
}

func (m *MemoryTupleCache) Get(_ context.Context, key string) ([]xas.Tuple, error) {
	v, ok := m.store.Get(key)
	m.record(ok)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v.([]xas.Tuple), nil
}

func (m *MemoryTupleCache) Set(_ context.Context, key string, tuples []xas.Tuple) error {
	if tuples == nil {
		tuples = []xas.Tuple{}
	}
	m.store.SetDefault(key, tuples)
	return nil
}

func (m *MemoryTupleCache) GetOrLoad(ctx context.Context, key string, load Loader) ([]xas.Tuple, error) {
	if tuples, err := m.Get(ctx, key); err == nil {
		return tuples, nil
	}
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = m.Set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]xas.Tuple), nil
}

// Len returns the number of live entries.
func (m *MemoryTupleCache) Len() int { return m.store.ItemCount() }

// LayeredTupleCache checks the in-process tier before the shared one and
// fills the in-process tier on the way back.
type LayeredTupleCache struct {
	l1 *MemoryTupleCache
	l2 TupleCache
}

func NewLayeredTupleCache(l1 *MemoryTupleCache, l2 TupleCache) *LayeredTupleCache {
	return &LayeredTupleCache{l1: l1, l2: l2}
}

func (c *LayeredTupleCache) Get(ctx context.Context, key string) ([]xas.Tuple, error) {
	if tuples, err := c.l1.Get(ctx, key); err == nil {
		return tuples, nil
	}
	tuples, err := c.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = c.l1.Set(ctx, key, tuples)
	return tuples, nil
}

func (c *LayeredTupleCache) Set(ctx context.Context, key string, tuples []xas.Tuple) error {
	_ = c.l1.Set(ctx, key, tuples)
	return c.l2.Set(ctx, key, tuples)
}

func (c *LayeredTupleCache) GetOrLoad(ctx context.Context, key string, load Loader) ([]xas.Tuple, error) {
	if tuples, err := c.l1.Get(ctx, key); err == nil {
		return tuples, nil
	}
	tuples, err := c.l2.GetOrLoad(ctx, key, load)
	if err != nil {
		return nil, err
	}
	_ = c.l1.Set(ctx, key, tuples)
	return tuples, nil
}
