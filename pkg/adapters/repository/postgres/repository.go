package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS links (
	id BIGSERIAL PRIMARY KEY,
	short_code TEXT NOT NULL UNIQUE,
	original_url TEXT NOT NULL,
	custom_code BOOLEAN NOT NULL DEFAULT FALSE,
	tags JSONB NOT NULL DEFAULT '[]',
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	total_visits BIGINT NOT NULL DEFAULT 0,
	unique_visitors BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_links_created_at ON links(created_at);

CREATE TABLE IF NOT EXISTS visits (
	seq BIGSERIAL PRIMARY KEY,
	id UUID NOT NULL UNIQUE,
	short_code TEXT NOT NULL REFERENCES links(short_code),
	fingerprint TEXT NOT NULL,
	device_type TEXT NOT NULL,
	referrer TEXT NOT NULL DEFAULT '',
	visited_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visits_short_code ON visits(short_code);
`

type PostgresRepository struct {
	DB               *sql.DB
	createStmt       *sql.Stmt
	insertVisitStmt  *sql.Stmt
	bumpCountersStmt *sql.Stmt
	initOnce         sync.Once
	initErr          error
}

// NewPostgresRepository connects through the pgx stdlib driver, applies
// the schema and prepares the hot-path statements.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	repo := &PostgresRepository{DB: db}
	repo.initOnce.Do(repo.initStatements)
	if repo.initErr != nil {
		_ = db.Close()
		return nil, repo.initErr
	}
	return repo, nil
}

func (r *PostgresRepository) initStatements() {
	var err error

	r.createStmt, err = r.DB.Prepare(`
		INSERT INTO links (short_code, original_url, custom_code, tags, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		r.initErr = fmt.Errorf("prepare create statement: %w", err)
		return
	}

	r.insertVisitStmt, err = r.DB.Prepare(`
		INSERT INTO visits (id, short_code, fingerprint, device_type, referrer, visited_at)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		r.initErr = fmt.Errorf("prepare insert visit statement: %w", err)
		return
	}

	r.bumpCountersStmt, err = r.DB.Prepare(`
		UPDATE links
		SET total_visits = total_visits + 1, unique_visitors = unique_visitors + $2
		WHERE short_code = $1`)
	if err != nil {
		r.initErr = fmt.Errorf("prepare counters statement: %w", err)
	}
}

func (r *PostgresRepository) Close() error { return r.DB.Close() }

func (r *PostgresRepository) Create(ctx context.Context, link *domain.Link) error {
	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return err
	}
	if link.Tags == nil {
		tagsJSON = []byte("[]")
	}
	var expires interface{}
	if link.ExpiresAt != nil {
		expires = link.ExpiresAt.UTC()
	}

	_, err = r.createStmt.ExecContext(ctx, link.ShortCode, link.OriginalURL, link.CustomCode, string(tagsJSON), expires, link.CreatedAt.UTC())
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("%w: %s", domain.ErrCodeConflict, link.ShortCode)
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) RecordVisit(ctx context.Context, visit *domain.Visit, unique bool) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, r.insertVisitStmt).ExecContext(ctx,
		visit.ID, visit.ShortCode, visit.VisitorFingerprint, string(visit.DeviceType), visit.Referrer, visit.Timestamp.UTC(),
	); err != nil {
		return err
	}

	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}
	res, err := tx.StmtContext(ctx, r.bumpCountersStmt).ExecContext(ctx, visit.ShortCode, uniqueDelta)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, visit.ShortCode)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT short_code, original_url, custom_code, tags, expires_at, created_at, total_visits, unique_visitors
		FROM links ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		var l domain.Link
		var tagsJSON []byte
		var expiresAt sql.NullTime
		if err := rows.Scan(&l.ShortCode, &l.OriginalURL, &l.CustomCode, &tagsJSON, &expiresAt, &l.CreatedAt, &l.TotalVisits, &l.UniqueVisitors); err != nil {
			return nil, err
		}
		l.CreatedAt = l.CreatedAt.UTC()
		if expiresAt.Valid {
			t := expiresAt.Time.UTC()
			l.ExpiresAt = &t
		}
		_ = json.Unmarshal(tagsJSON, &l.Tags)
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *PostgresRepository) Visits(ctx context.Context) ([]domain.Visit, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id::text, short_code, fingerprint, device_type, referrer, visited_at
		FROM visits ORDER BY seq ASC`)
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

func isDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

var _ ports.LinkRepository = (*PostgresRepository)(nil)
