package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

const (
	DefaultBucketWidth = 24 * time.Hour
	minBucketWidth     = time.Second
)

// Aggregator derives dashboard views from a link's visit log by scanning
// it at query time. Results are memoised per log length when a cache is set.
// Cache entries are scoped to this aggregator: log length only identifies a
// log within the process that appended it.
type Aggregator struct {
	registry     *LinkRegistry
	cache        ports.SnapshotCache // optional
	instance     string
	defaultWidth time.Duration
}

func NewAggregator(registry *LinkRegistry, cache ports.SnapshotCache, defaultWidth time.Duration) *Aggregator {
	if defaultWidth <= 0 {
		defaultWidth = DefaultBucketWidth
	}
	return &Aggregator{registry: registry, cache: cache, instance: uuid.NewString(), defaultWidth: defaultWidth}
}

// Snapshot returns device, time-series and referrer aggregates for code.
// Expired links still report their analytics.
func (a *Aggregator) Snapshot(ctx context.Context, code string, width time.Duration) (*domain.AnalyticsSnapshot, error) {
	if width <= 0 {
		width = a.defaultWidth
	}
	if width < minBucketWidth {
		return nil, fmt.Errorf("%w: bucket width must be at least %s", domain.ErrValidation, minBucketWidth)
	}

	var (
		events []domain.Visit
		link   domain.Link
	)
	err := a.registry.withCell(code, func(c *linkCell) error {
		// The log is append-only; a capped slice is a stable view of it.
		n := len(c.visits)
		events = c.visits[:n:n]
		link = c.link
		return nil
	})
	if err != nil {
		return nil, err
	}

	key := snapshotKey(a.instance, link, width, len(events))
	if snap, ok := a.cached(ctx, key); ok {
		snap.BucketWidth = width
		return snap, nil
	}

	snap := aggregate(events, width)
	snap.ShortCode = code
	snap.TotalVisits = link.TotalVisits
	snap.UniqueVisitors = link.UniqueVisitors
	a.store(ctx, key, snap)
	return snap, nil
}

func aggregate(events []domain.Visit, width time.Duration) *domain.AnalyticsSnapshot {
	snap := &domain.AnalyticsSnapshot{
		DeviceType:  make(map[domain.DeviceType]int64),
		TimeSeries:  []domain.TimeBucket{},
		Referrers:   make(map[string]int64),
		BucketWidth: width,
	}
	buckets := make(map[int64]int64)
	for _, e := range events {
		snap.DeviceType[e.DeviceType]++
		snap.Referrers[e.Referrer]++
		buckets[bucketStart(e.Timestamp, width)]++
	}
	for start, count := range buckets {
		snap.TimeSeries = append(snap.TimeSeries, domain.TimeBucket{
			Time:  time.Unix(0, start).UTC(),
			Count: count,
		})
	}
	sort.Slice(snap.TimeSeries, func(i, j int) bool {
		return snap.TimeSeries[i].Time.Before(snap.TimeSeries[j].Time)
	})
	return snap
}

// bucketStart floors t to a multiple of width since the Unix epoch, in nanoseconds.
func bucketStart(t time.Time, width time.Duration) int64 {
	n, w := t.UnixNano(), int64(width)
	r := n % w
	if r < 0 {
		r += w
	}
	return n - r
}

// snapshotKey identifies one state of one link's log as seen by instance.
func snapshotKey(instance string, link domain.Link, width time.Duration, length int) string {
	return fmt.Sprintf("snapshot:%s:%s:%d:%d:%d", instance, link.ShortCode, link.CreatedAt.UnixNano(), int64(width), length)
}

func (a *Aggregator) cached(ctx context.Context, key string) (*domain.AnalyticsSnapshot, bool) {
	if a.cache == nil {
		return nil, false
	}
	raw, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Printf("snapshot cache get %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var snap domain.AnalyticsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("snapshot cache decode %s: %v", key, err)
		return nil, false
	}
	return &snap, true
}

func (a *Aggregator) store(ctx context.Context, key string, snap *domain.AnalyticsSnapshot) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, raw); err != nil {
		log.Printf("snapshot cache set %s: %v", key, err)
	}
}

// Percentage returns count/total as a percentage rounded to one decimal.
// A zero total yields 0.
func Percentage(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// RankReferrers orders referrers by count (ties by name) and keeps the first n.
// n <= 0 keeps all of them.
func RankReferrers(referrers map[string]int64, total int64, n int) []domain.ReferrerRank {
	ranks := make([]domain.ReferrerRank, 0, len(referrers))
	for source, count := range referrers {
		ranks = append(ranks, domain.ReferrerRank{
			Source:     source,
			Count:      count,
			Percentage: Percentage(count, total),
		})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Count != ranks[j].Count {
			return ranks[i].Count > ranks[j].Count
		}
		return ranks[i].Source < ranks[j].Source
	})
	if n > 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}
