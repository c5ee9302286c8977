package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

var errStoreDown = errors.New("store unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// sequenceGenerator returns its codes in order, repeating the last one.
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *sequenceGenerator) NewCode(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

// memoryRepo is a LinkRepository kept in maps, with switchable failures.
type memoryRepo struct {
	mu         sync.Mutex
	links      map[string]domain.Link
	order      []string
	visits     []domain.Visit
	failCreate bool
	failVisit  bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{links: make(map[string]domain.Link)}
}

func (r *memoryRepo) Create(_ context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errStoreDown
	}
	if _, ok := r.links[link.ShortCode]; ok {
		return fmt.Errorf("%w: %s", domain.ErrCodeConflict, link.ShortCode)
	}
	r.links[link.ShortCode] = link.Clone()
	r.order = append(r.order, link.ShortCode)
	return nil
}

func (r *memoryRepo) RecordVisit(_ context.Context, visit *domain.Visit, unique bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failVisit {
		return errStoreDown
	}
	l, ok := r.links[visit.ShortCode]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, visit.ShortCode)
	}
	l.TotalVisits++
	if unique {
		l.UniqueVisitors++
	}
	r.links[visit.ShortCode] = l
	r.visits = append(r.visits, *visit)
	return nil
}

func (r *memoryRepo) Dump(context.Context) ([]domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	links := make([]domain.Link, 0, len(r.order))
	for _, code := range r.order {
		links = append(links, r.links[code].Clone())
	}
	return links, nil
}

func (r *memoryRepo) Visits(context.Context) ([]domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Visit(nil), r.visits...), nil
}

func (r *memoryRepo) Close() error { return nil }

func (r *memoryRepo) visitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visits)
}

var _ ports.LinkRepository = (*memoryRepo)(nil)

// countingCache is a SnapshotCache that records hits.
type countingCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
	sets    int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string][]byte)}
}

func (c *countingCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func visitAt(code, fingerprint string, device domain.DeviceType, referrer string, at time.Time) domain.VisitInput {
	return domain.VisitInput{
		ShortCode:          code,
		Timestamp:          at,
		VisitorFingerprint: fingerprint,
		DeviceType:         device,
		Referrer:           referrer,
	}
}
