package cache

import (
	"context"
	"log"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

// Open returns a Redis cache when redisURL is set and reachable, and an
// in-process cache otherwise. The returned func releases the connection.
func Open(redisURL string, ttl time.Duration) (ports.SnapshotCache, func()) {
	if redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := NewRedisCacheFromURL(ctx, redisURL, ttl)
		if err == nil {
			log.Println("redis connected")
			return rc, func() { _ = rc.Close() }
		}
		log.Printf("redis unavailable, using in-process cache: %v", err)
	}
	return NewLocalCache(ttl), func() {}
}
