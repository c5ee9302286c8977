package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
)

// Clock returns the current instant. Services never read time.Now directly.
type Clock func() time.Time

// LinkRepository defines durable storage for links and their visit log.
// One process owns a namespace: its in-memory registry is authoritative
// while it runs and the repository is only read back on startup.
type LinkRepository interface {
	// Create inserts a link. Must fail with domain.ErrCodeConflict if the code is taken.
	Create(ctx context.Context, link *domain.Link) error
	// RecordVisit appends the visit and bumps the link counters in one transaction.
	RecordVisit(ctx context.Context, visit *domain.Visit, unique bool) error
	Dump(ctx context.Context) ([]domain.Link, error) // For migration and recovery
	// Visits returns every stored visit in insertion order.
	Visits(ctx context.Context) ([]domain.Visit, error)
	Close() error
}

// SnapshotCache stores encoded analytics snapshots.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CodeGenerator creates candidate short codes.
type CodeGenerator interface {
	NewCode(ctx context.Context) (string, error)
}

// LinkService defines the operations exposed to the presentation client
type LinkService interface {
	Shorten(ctx context.Context, req domain.ShortenRequest) (*domain.Link, error)
	ListLinks(ctx context.Context) ([]domain.Link, error)
	ListLinksByTag(ctx context.Context, tag string) ([]domain.Link, error)
	GetLink(ctx context.Context, code string) (*domain.Link, error)
	Expired(link *domain.Link) bool

	// Stats
	GetAnalytics(ctx context.Context, code string, bucketWidth time.Duration) (*domain.AnalyticsSnapshot, error)
	ResolveForRedirect(ctx context.Context, visit domain.VisitInput) (string, error)
}
