package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// One writer keeps visit transactions from failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		short_code TEXT NOT NULL UNIQUE,
		original_url TEXT NOT NULL,
		custom_code INTEGER NOT NULL DEFAULT 0,
		tags JSON,
		expires_at DATETIME,
		created_at DATETIME NOT NULL,
		total_visits INTEGER NOT NULL DEFAULT 0,
		unique_visitors INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_links_created_at ON links(created_at);

	CREATE TABLE IF NOT EXISTS visits (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		short_code TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		device_type TEXT NOT NULL,
		referrer TEXT NOT NULL DEFAULT '',
		visited_at DATETIME NOT NULL,
		FOREIGN KEY(short_code) REFERENCES links(short_code)
	);
	CREATE INDEX IF NOT EXISTS idx_visits_short_code ON visits(short_code);
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (short_code, original_url, custom_code, tags, expires_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return err
	}

	var expires interface{}
	if link.ExpiresAt != nil {
		expires = link.ExpiresAt.UTC()
	}

	_, err = r.db.ExecContext(ctx, query, link.ShortCode, link.OriginalURL, link.CustomCode, tagsJSON, expires, link.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrCodeConflict, link.ShortCode)
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	query := `SELECT short_code, original_url, custom_code, tags, expires_at, created_at, total_visits, unique_visitors
			  FROM links ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// RecordVisit inserts the visit row and bumps the link counters atomically.
func (r *SQLiteRepository) RecordVisit(ctx context.Context, visit *domain.Visit, unique bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Insert Visit Record
	queryVisit := `INSERT INTO visits (id, short_code, fingerprint, device_type, referrer, visited_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryVisit, visit.ID, visit.ShortCode, visit.VisitorFingerprint, string(visit.DeviceType), visit.Referrer, visit.Timestamp.UTC())
	if err != nil {
		return err
	}

	// 2. Increment Link Counters
	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}
	queryCount := `UPDATE links SET total_visits = total_visits + 1, unique_visitors = unique_visitors + ? WHERE short_code = ?`
	res, err := tx.ExecContext(ctx, queryCount, uniqueDelta, visit.ShortCode)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, visit.ShortCode)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) Visits(ctx context.Context) ([]domain.Visit, error) {
	query := `SELECT id, short_code, fingerprint, device_type, referrer, visited_at FROM visits ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []domain.Visit
	for rows.Next() {
		var v domain.Visit
		var device string
		if err := rows.Scan(&v.ID, &v.ShortCode, &v.VisitorFingerprint, &device, &v.Referrer, &v.Timestamp); err != nil {
			return nil, err
		}
		v.DeviceType = domain.ParseDeviceType(device)
		v.Timestamp = v.Timestamp.UTC()
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var l domain.Link
	var tagsJSON []byte
	var expiresAt sql.NullTime

	if err := row.Scan(&l.ShortCode, &l.OriginalURL, &l.CustomCode, &tagsJSON, &expiresAt, &l.CreatedAt, &l.TotalVisits, &l.UniqueVisitors); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		l.ExpiresAt = &t
	}
	_ = json.Unmarshal(tagsJSON, &l.Tags)
	return &l, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: unique")
}

// Ensure interface compliance
var _ ports.LinkRepository = (*SQLiteRepository)(nil)
