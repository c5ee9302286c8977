package repository

import (
	"strings"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

// Open picks a store from the shape of dbURL:
// postgres:// or postgresql:// -> PostgreSQL, "memory" -> none (nil),
// anything else -> SQLite / libsql.
func Open(dbURL string) (ports.LinkRepository, error) {
	switch {
	case dbURL == "memory":
		return nil, nil
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		repo, err := postgres.NewPostgresRepository(dbURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		repo, err := sqlite.NewSQLiteRepository(dbURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}
