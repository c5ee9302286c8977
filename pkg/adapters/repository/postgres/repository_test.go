package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
)

func TestIsDuplicateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Unique Violation", &pgconn.PgError{Code: "23505"}, true},
		{"Wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"Foreign Key", &pgconn.PgError{Code: "23503"}, false},
		{"Message Only", errors.New(`duplicate key value violates unique constraint "links_short_code_key"`), true},
		{"Other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		if got := isDuplicateError(tt.err); got != tt.want {
			t.Errorf("%s: isDuplicateError = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// Runs against a real server when TEST_DATABASE_URL is set.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := NewPostgresRepository(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	code := "t" + uuid.NewString()[:8]
	link := &domain.Link{ShortCode: code, OriginalURL: "https://example.com", Tags: []string{"pg"}, CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, link); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, link); !domain.IsConflict(err) {
		t.Fatalf("expected CodeConflict, got %v", err)
	}

	visit := &domain.Visit{ID: uuid.NewString(), ShortCode: code, Timestamp: time.Now().UTC(), VisitorFingerprint: "A", DeviceType: domain.DeviceMobile}
	if err := repo.RecordVisit(ctx, visit, true); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	ghost := &domain.Visit{ID: uuid.NewString(), ShortCode: "ghost-" + code, Timestamp: time.Now().UTC(), DeviceType: domain.DeviceMobile}
	if err := repo.RecordVisit(ctx, ghost, true); err == nil {
		t.Fatal("visit on unknown link was stored")
	}

	links, err := repo.Dump(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, l := range links {
		if l.ShortCode == code {
			found = true
			if l.TotalVisits != 1 || l.UniqueVisitors != 1 || !l.HasTag("pg") {
				t.Errorf("stored link %+v", l)
			}
		}
	}
	if !found {
		t.Errorf("link %s missing from dump", code)
	}
}
