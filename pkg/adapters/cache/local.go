package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

// LocalCache is an in-process snapshot cache for single-node deployments.
type LocalCache struct {
	items *gocache.Cache
}

func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{items: gocache.New(ttl, 2*ttl)}
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (c *LocalCache) Set(_ context.Context, key string, value []byte) error {
	c.items.Set(key, append([]byte(nil), value...), gocache.DefaultExpiration)
	return nil
}

// Len reports the number of live entries.
func (c *LocalCache) Len() int { return c.items.ItemCount() }

var _ ports.SnapshotCache = (*LocalCache)(nil)
