package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

const (
	maxTagLength        = 64
	DefaultTopReferrers = 5
)

// Options tunes a LinkService. Zero values select the defaults.
type Options struct {
	Cache        ports.SnapshotCache // nil disables snapshot caching
	Generator    ports.CodeGenerator // nil: crypto-random base62 of CodeLength
	Clock        ports.Clock         // nil: time.Now
	CodeLength   int                 // 0: DefaultCodeLength
	BucketWidth  time.Duration       // 0: DefaultBucketWidth
	TopReferrers int                 // 0: DefaultTopReferrers
}

// LinkService is the entry point used by the HTTP layer and the CLI.
type LinkService struct {
	repo       ports.LinkRepository
	registry   *LinkRegistry
	allocator  *CodeAllocator
	recorder   *VisitRecorder
	aggregator *Aggregator
	now        ports.Clock
	topN       int
}

// NewLinkService wires the engine. repo may be nil for a memory-only engine.
func NewLinkService(repo ports.LinkRepository, opts Options) *LinkService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = NewRandomCodeGenerator(opts.CodeLength)
	}
	if opts.TopReferrers <= 0 {
		opts.TopReferrers = DefaultTopReferrers
	}

	registry := NewLinkRegistry(repo, opts.Clock)
	return &LinkService{
		repo:       repo,
		registry:   registry,
		allocator:  NewCodeAllocator(registry, opts.Generator),
		recorder:   NewVisitRecorder(registry, repo, opts.Clock),
		aggregator: NewAggregator(registry, opts.Cache, opts.BucketWidth),
		now:        opts.Clock,
		topN:       opts.TopReferrers,
	}
}

// Recover rebuilds in-memory state from the repository.
func (s *LinkService) Recover(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	links, err := s.repo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("load links: %w", err)
	}
	visits, err := s.repo.Visits(ctx)
	if err != nil {
		return fmt.Errorf("load visits: %w", err)
	}
	s.registry.Load(links, visits)
	return nil
}

func (s *LinkService) Shorten(ctx context.Context, req domain.ShortenRequest) (*domain.Link, error) {
	if strings.TrimSpace(req.OriginalURL) == "" {
		return nil, fmt.Errorf("%w: original URL is required", domain.ErrInvalidURL)
	}
	if _, err := normalizeURL(req.OriginalURL); err != nil {
		return nil, err
	}
	tags, err := NormalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}

	custom := strings.TrimSpace(req.CustomCode)
	res, err := s.allocator.Allocate(ctx, custom)
	if err != nil {
		return nil, err
	}

	link, err := s.registry.Create(ctx, res, req.OriginalURL, tags, req.ExpiresAt, custom != "")
	if err != nil {
		res.Release()
		return nil, err
	}
	return &link, nil
}

func (s *LinkService) ListLinks(ctx context.Context) ([]domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.registry.List(), nil
}

func (s *LinkService) ListLinksByTag(ctx context.Context, tag string) ([]domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, fmt.Errorf("%w: tag is required", domain.ErrValidation)
	}
	return s.registry.ListByTag(tag), nil
}

// GetLink returns metadata for code, expired or not.
func (s *LinkService) GetLink(ctx context.Context, code string) (*domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	link, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Expired reports whether link is past its expiry by the service clock.
func (s *LinkService) Expired(link *domain.Link) bool {
	return link.Expired(s.now())
}

func (s *LinkService) GetAnalytics(ctx context.Context, code string, bucketWidth time.Duration) (*domain.AnalyticsSnapshot, error) {
	snap, err := s.aggregator.Snapshot(ctx, code, bucketWidth)
	if err != nil {
		return nil, err
	}
	snap.TopReferrers = RankReferrers(snap.Referrers, snap.TotalVisits, s.topN)
	return snap, nil
}

// ResolveForRedirect returns the destination of an active link and records
// the visit. Nothing is recorded for missing or expired links.
func (s *LinkService) ResolveForRedirect(ctx context.Context, visit domain.VisitInput) (string, error) {
	link, err := s.registry.Resolve(visit.ShortCode)
	if err != nil {
		return "", err
	}
	if _, err := s.recorder.Record(ctx, visit); err != nil {
		return "", err
	}
	return link.OriginalURL, nil
}

// Record stores a visit without resolving a redirect (imports, tracking pixels).
func (s *LinkService) Record(ctx context.Context, visit domain.VisitInput) (domain.Visit, error) {
	return s.recorder.Record(ctx, visit)
}

// Export returns every link with its visit log.
func (s *LinkService) Export(ctx context.Context) (domain.Archive, error) {
	if err := ctx.Err(); err != nil {
		return domain.Archive{}, err
	}
	return s.registry.Archive(), nil
}

// ImportResult counts what Import did.
type ImportResult struct {
	Links   int
	Visits  int
	Skipped []string // codes already taken
}

// Import adds archived links whose codes are free and replays their
// visits. Links already present are skipped along with their visits.
func (s *LinkService) Import(ctx context.Context, archive domain.Archive) (ImportResult, error) {
	var result ImportResult
	imported := make(map[string]bool, len(archive.Links))

	for _, l := range archive.Links {
		tags, err := NormalizeTags(l.Tags)
		if err != nil {
			return result, fmt.Errorf("link %s: %w", l.ShortCode, err)
		}
		l.Tags = tags

		res, err := s.registry.Reserve(l.ShortCode)
		if domain.IsConflict(err) {
			result.Skipped = append(result.Skipped, l.ShortCode)
			continue
		}
		if err != nil {
			return result, err
		}
		if _, err := s.registry.Restore(ctx, res, l); err != nil {
			res.Release()
			if domain.IsConflict(err) {
				result.Skipped = append(result.Skipped, l.ShortCode)
				continue
			}
			return result, fmt.Errorf("link %s: %w", l.ShortCode, err)
		}
		imported[l.ShortCode] = true
		result.Links++
	}

	for _, v := range archive.Visits {
		if !imported[v.ShortCode] {
			continue
		}
		if err := s.recorder.Replay(ctx, v); err != nil {
			return result, fmt.Errorf("visit %s: %w", v.ID, err)
		}
		result.Visits++
	}
	return result, nil
}

// NormalizeTags trims tags, drops empty ones and removes duplicates,
// keeping first occurrences. Matching stays case-sensitive.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > maxTagLength {
			return nil, fmt.Errorf("%w: tag %q longer than %d characters", domain.ErrValidation, t, maxTagLength)
		}
		if strings.ContainsAny(t, "/?#") {
			return nil, fmt.Errorf("%w: tag %q contains a reserved character", domain.ErrValidation, t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// SplitTags parses the comma-separated form used by the dashboard.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// IsClientError reports whether err belongs to the caller-facing taxonomy.
func IsClientError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidURL, domain.ErrCodeConflict, domain.ErrAllocationExhausted,
		domain.ErrNotFound, domain.ErrExpired, domain.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ ports.LinkService = (*LinkService)(nil)
