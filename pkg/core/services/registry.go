package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

const maxURLLength = 2048

// linkCell holds everything mutable about one link. mu serializes
// counters, the fingerprint set and the visit log together.
//
// Lock order: LinkRegistry.mu before linkCell.mu, never the reverse.
type linkCell struct {
	mu     sync.Mutex
	ready  bool // false while the code is only reserved
	link   domain.Link
	seen   map[string]struct{}
	visits []domain.Visit
}

// appendVisit applies a committed visit to the cell. Caller holds c.mu.
func (c *linkCell) appendVisit(v domain.Visit, unique bool) {
	c.visits = append(c.visits, v)
	if unique {
		c.seen[v.VisitorFingerprint] = struct{}{}
	}
	c.incrementVisit(unique)
}

func (c *linkCell) incrementVisit(unique bool) {
	c.link.TotalVisits++
	if unique {
		c.link.UniqueVisitors++
	}
}

// LinkRegistry owns the code namespace and the per-link cells.
type LinkRegistry struct {
	mu    sync.RWMutex
	cells map[string]*linkCell
	repo  ports.LinkRepository // may be nil: memory only
	now   ports.Clock
}

func NewLinkRegistry(repo ports.LinkRepository, now ports.Clock) *LinkRegistry {
	if now == nil {
		now = time.Now
	}
	return &LinkRegistry{
		cells: make(map[string]*linkCell),
		repo:  repo,
		now:   now,
	}
}

// Reservation is a claimed but not yet created code.
type Reservation struct {
	code     string
	cell     *linkCell
	registry *LinkRegistry
}

func (r *Reservation) Code() string { return r.code }

// Release gives the code back if the link was never created.
func (r *Reservation) Release() {
	reg := r.registry
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.cells[r.code] != r.cell {
		return
	}
	r.cell.mu.Lock()
	ready := r.cell.ready
	r.cell.mu.Unlock()
	if !ready {
		delete(reg.cells, r.code)
	}
}

// Reserve claims code in the namespace. Codes of expired links stay taken.
func (r *LinkRegistry) Reserve(code string) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cells[code]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeConflict, code)
	}
	cell := &linkCell{seen: make(map[string]struct{})}
	r.cells[code] = cell
	return &Reservation{code: code, cell: cell, registry: r}, nil
}

// Create completes a reservation into a visible link. The link is
// persisted before it becomes visible to readers.
func (r *LinkRegistry) Create(ctx context.Context, res *Reservation, originalURL string, tags []string, expiresAt *time.Time, custom bool) (domain.Link, error) {
	normalized, err := normalizeURL(originalURL)
	if err != nil {
		return domain.Link{}, err
	}
	if res == nil || res.registry != r {
		return domain.Link{}, fmt.Errorf("%w: code is not reserved", domain.ErrValidation)
	}

	link := domain.Link{
		ShortCode:   res.code,
		OriginalURL: normalized,
		CustomCode:  custom,
		Tags:        append([]string{}, tags...),
		CreatedAt:   r.now().UTC(),
	}
	if expiresAt != nil {
		t := expiresAt.UTC()
		link.ExpiresAt = &t
	}
	return r.commit(ctx, res, link)
}

// Restore completes a reservation with a link taken from an archive,
// keeping its creation time. Counters start at zero and are rebuilt by
// replaying the archived visits.
func (r *LinkRegistry) Restore(ctx context.Context, res *Reservation, link domain.Link) (domain.Link, error) {
	if _, err := normalizeURL(link.OriginalURL); err != nil {
		return domain.Link{}, err
	}
	if res == nil || res.registry != r || res.code != link.ShortCode {
		return domain.Link{}, fmt.Errorf("%w: code is not reserved", domain.ErrValidation)
	}
	link = link.Clone()
	link.TotalVisits, link.UniqueVisitors = 0, 0
	link.CreatedAt = link.CreatedAt.UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = r.now().UTC()
	}
	if link.ExpiresAt != nil {
		t := link.ExpiresAt.UTC()
		link.ExpiresAt = &t
	}
	return r.commit(ctx, res, link)
}

func (r *LinkRegistry) commit(ctx context.Context, res *Reservation, link domain.Link) (domain.Link, error) {
	cell := res.cell
	cell.mu.Lock()
	defer cell.mu.Unlock()
	if cell.ready {
		return domain.Link{}, fmt.Errorf("%w: %s", domain.ErrCodeConflict, res.code)
	}
	if err := ctx.Err(); err != nil {
		return domain.Link{}, err
	}

	if r.repo != nil {
		if err := r.repo.Create(ctx, &link); err != nil {
			if domain.IsConflict(err) {
				return domain.Link{}, err
			}
			return domain.Link{}, fmt.Errorf("%w: create link: %v", domain.ErrInternal, err)
		}
	}

	cell.link = link
	cell.ready = true
	return link.Clone(), nil
}

func (r *LinkRegistry) lookup(code string) *linkCell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cells[code]
}

// withCell runs fn with the link's lock held. Reserved-only codes are NotFound.
func (r *LinkRegistry) withCell(code string, fn func(c *linkCell) error) error {
	cell := r.lookup(code)
	if cell == nil {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	if !cell.ready {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	return fn(cell)
}

// Get returns the link whether or not it has expired.
func (r *LinkRegistry) Get(code string) (domain.Link, error) {
	var link domain.Link
	err := r.withCell(code, func(c *linkCell) error {
		link = c.link.Clone()
		return nil
	})
	return link, err
}

// Resolve returns an active link. Expiry is evaluated against the clock
// on every call; expired links are reported as ErrExpired, not ErrNotFound.
func (r *LinkRegistry) Resolve(code string) (domain.Link, error) {
	link, err := r.Get(code)
	if err != nil {
		return domain.Link{}, err
	}
	if link.Expired(r.now()) {
		return domain.Link{}, fmt.Errorf("%w: %s", domain.ErrExpired, code)
	}
	return link, nil
}

// List returns all links, most recent first.
func (r *LinkRegistry) List() []domain.Link {
	return r.collect(func(domain.Link) bool { return true })
}

// ListByTag returns links carrying tag (case-sensitive), most recent first.
func (r *LinkRegistry) ListByTag(tag string) []domain.Link {
	return r.collect(func(l domain.Link) bool { return l.HasTag(tag) })
}

func (r *LinkRegistry) collect(keep func(domain.Link) bool) []domain.Link {
	r.mu.RLock()
	cells := make([]*linkCell, 0, len(r.cells))
	for _, c := range r.cells {
		cells = append(cells, c)
	}
	r.mu.RUnlock()

	links := make([]domain.Link, 0, len(cells))
	for _, c := range cells {
		c.mu.Lock()
		if c.ready && keep(c.link) {
			links = append(links, c.link.Clone())
		}
		c.mu.Unlock()
	}
	sortLinks(links)
	return links
}

// Archive copies every link and its visit log, links most recent first
// and visits in log order per link.
func (r *LinkRegistry) Archive() domain.Archive {
	r.mu.RLock()
	cells := make([]*linkCell, 0, len(r.cells))
	for _, c := range r.cells {
		cells = append(cells, c)
	}
	r.mu.RUnlock()

	var archive domain.Archive
	logs := make(map[string][]domain.Visit, len(cells))
	for _, c := range cells {
		c.mu.Lock()
		if c.ready {
			archive.Links = append(archive.Links, c.link.Clone())
			logs[c.link.ShortCode] = append([]domain.Visit(nil), c.visits...)
		}
		c.mu.Unlock()
	}
	sortLinks(archive.Links)
	for _, l := range archive.Links {
		archive.Visits = append(archive.Visits, logs[l.ShortCode]...)
	}
	return archive
}

func sortLinks(links []domain.Link) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ShortCode < links[j].ShortCode
	})
}

// Load replaces the registry contents with stored state. Counters are
// recomputed from the visit log so they always agree with it.
func (r *LinkRegistry) Load(links []domain.Link, visits []domain.Visit) {
	cells := make(map[string]*linkCell, len(links))
	for _, l := range links {
		l = l.Clone()
		l.TotalVisits, l.UniqueVisitors = 0, 0
		cells[l.ShortCode] = &linkCell{ready: true, link: l, seen: make(map[string]struct{})}
	}
	for _, v := range visits {
		c, ok := cells[v.ShortCode]
		if !ok {
			continue
		}
		_, seen := c.seen[v.VisitorFingerprint]
		c.appendVisit(v, !seen)
	}

	r.mu.Lock()
	r.cells = cells
	r.mu.Unlock()
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return "", domain.ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", domain.ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}
	return raw, nil
}
