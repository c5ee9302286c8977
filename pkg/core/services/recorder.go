package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

// VisitRecorder appends visit events and keeps the link counters in step.
type VisitRecorder struct {
	registry *LinkRegistry
	repo     ports.LinkRepository
	now      ports.Clock
}

func NewVisitRecorder(registry *LinkRegistry, repo ports.LinkRepository, now ports.Clock) *VisitRecorder {
	if now == nil {
		now = time.Now
	}
	return &VisitRecorder{registry: registry, repo: repo, now: now}
}

// Record stores one visit against an active link. The store write, the
// log append and the counter update happen under the link's lock; if
// the store write fails nothing is applied and ErrInternal is returned.
func (r *VisitRecorder) Record(ctx context.Context, in domain.VisitInput) (domain.Visit, error) {
	if err := ctx.Err(); err != nil {
		return domain.Visit{}, err
	}

	visit := domain.Visit{
		ID:                 uuid.NewString(),
		ShortCode:          in.ShortCode,
		Timestamp:          in.Timestamp.UTC(),
		VisitorFingerprint: in.VisitorFingerprint,
		DeviceType:         domain.ParseDeviceType(string(in.DeviceType)),
		Referrer:           in.Referrer,
	}

	err := r.registry.withCell(in.ShortCode, func(c *linkCell) error {
		now := r.now()
		if c.link.Expired(now) {
			return fmt.Errorf("%w: %s", domain.ErrExpired, in.ShortCode)
		}
		if visit.Timestamp.IsZero() {
			visit.Timestamp = now.UTC()
		}
		_, seen := c.seen[visit.VisitorFingerprint]
		unique := !seen

		if r.repo != nil {
			if err := r.repo.RecordVisit(ctx, &visit, unique); err != nil {
				return fmt.Errorf("%w: record visit: %v", domain.ErrInternal, err)
			}
		}
		c.appendVisit(visit, unique)
		return nil
	})
	if err != nil {
		return domain.Visit{}, err
	}
	return visit, nil
}

// Replay stores an archived visit as-is. Unlike Record it accepts visits
// on expired links, since the archive already holds them.
func (r *VisitRecorder) Replay(ctx context.Context, visit domain.Visit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	if visit.Timestamp.IsZero() {
		return fmt.Errorf("%w: visit %s has no timestamp", domain.ErrValidation, visit.ID)
	}
	visit.Timestamp = visit.Timestamp.UTC()
	visit.DeviceType = domain.ParseDeviceType(string(visit.DeviceType))

	return r.registry.withCell(visit.ShortCode, func(c *linkCell) error {
		_, seen := c.seen[visit.VisitorFingerprint]
		unique := !seen
		if r.repo != nil {
			if err := r.repo.RecordVisit(ctx, &visit, unique); err != nil {
				return fmt.Errorf("%w: replay visit: %v", domain.ErrInternal, err)
			}
		}
		c.appendVisit(visit, unique)
		return nil
	})
}
