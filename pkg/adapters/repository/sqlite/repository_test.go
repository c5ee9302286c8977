package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	repo, err := NewSQLiteRepository(dsn)
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// dumped returns the stored link for code, or nil.
func dumped(t *testing.T, repo *SQLiteRepository, code string) *domain.Link {
	t.Helper()
	links, err := repo.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	for i := range links {
		if links[i].ShortCode == code {
			return &links[i]
		}
	}
	return nil
}

func TestCreateAndDump(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := created.Add(48 * time.Hour)
	link := &domain.Link{
		ShortCode:   "promo",
		OriginalURL: "https://example.com/a",
		CustomCode:  true,
		Tags:        []string{"news", "spring"},
		ExpiresAt:   &expiry,
		CreatedAt:   created,
	}
	if err := repo.Create(ctx, link); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got := dumped(t, repo, "promo")
	if got == nil {
		t.Fatal("promo missing from dump")
	}
	if got.OriginalURL != link.OriginalURL || !got.CustomCode || strings.Join(got.Tags, ",") != "news,spring" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
		t.Errorf("timestamps: created=%s expires=%v", got.CreatedAt, got.ExpiresAt)
	}
}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	link := &domain.Link{ShortCode: "dup", OriginalURL: "https://example.com", Tags: []string{}, CreatedAt: time.Now()}
	if err := repo.Create(ctx, link); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, link); !domain.IsConflict(err) {
		t.Fatalf("expected CodeConflict, got %v", err)
	}
}

func TestRecordVisit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, &domain.Link{ShortCode: "abc", OriginalURL: "https://example.com", Tags: []string{}, CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	visits := []struct {
		fp     string
		device domain.DeviceType
		ref    string
		unique bool
	}{
		{"A", domain.DeviceDesktop, "google.com", true},
		{"A", domain.DeviceDesktop, "google.com", false},
		{"B", domain.DeviceMobile, "", true},
	}
	for i, v := range visits {
		err := repo.RecordVisit(ctx, &domain.Visit{
			ID:                 fmt.Sprintf("visit-%d", i),
			ShortCode:          "abc",
			Timestamp:          base.Add(time.Duration(i) * time.Minute),
			VisitorFingerprint: v.fp,
			DeviceType:         v.device,
			Referrer:           v.ref,
		}, v.unique)
		if err != nil {
			t.Fatalf("RecordVisit %d: %v", i, err)
		}
	}

	got := dumped(t, repo, "abc")
	if got == nil {
		t.Fatal("abc missing from dump")
	}
	if got.TotalVisits != 3 || got.UniqueVisitors != 2 {
		t.Errorf("counters: total=%d unique=%d", got.TotalVisits, got.UniqueVisitors)
	}

	stored, err := repo.Visits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d visits", len(stored))
	}
	for i, v := range stored {
		if v.ID != fmt.Sprintf("visit-%d", i) || v.DeviceType != visits[i].device || v.Referrer != visits[i].ref {
			t.Errorf("visit %d = %+v", i, v)
		}
		if !v.Timestamp.Equal(base.Add(time.Duration(i) * time.Minute)) {
			t.Errorf("visit %d timestamp %s", i, v.Timestamp)
		}
	}
}

func TestRecordVisitUnknownLinkRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	err := repo.RecordVisit(ctx, &domain.Visit{ID: "v1", ShortCode: "ghost", Timestamp: time.Now(), DeviceType: domain.DeviceDesktop}, true)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	stored, err := repo.Visits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("visit row survived the rollback: %+v", stored)
	}
}

func TestDumpOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, code := range []string{"first", "second", "third"} {
		link := &domain.Link{ShortCode: code, OriginalURL: "https://example.com/" + code, Tags: []string{}, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(ctx, link); err != nil {
			t.Fatal(err)
		}
	}

	links, err := repo.Dump(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 || links[0].ShortCode != "third" || links[2].ShortCode != "first" {
		t.Errorf("Dump order: %+v", links)
	}
	if links[0].ExpiresAt != nil {
		t.Errorf("unexpected expiry %v", links[0].ExpiresAt)
	}
}
