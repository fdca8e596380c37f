package sessionkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS lazyload_session_kv (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (session_id, key)
);`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS lazyload_session_kv (
    session_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (session_id, key)
);`

// SQLite stores values in a local database file.
type SQLite struct {
	db      *sql.DB
	session string
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string, session string) (*SQLite, error) {
	if strings.TrimSpace(session) == "" {
		return nil, fmt.Errorf("open sqlite store: session is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db, session: session}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM lazyload_session_kv WHERE session_id = ? AND key = ?`,
		s.session, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO lazyload_session_kv (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.session, key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLite) Del(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM lazyload_session_kv WHERE session_id = ? AND key = ?`,
		s.session, key,
	)
	return err
}

// Postgres stores values in a shared PostgreSQL table.
type Postgres struct {
	pool    *pgxpool.Pool
	session string
}

func NewPostgres(pool *pgxpool.Pool, session string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("new postgres store: pool is nil")
	}
	if strings.TrimSpace(session) == "" {
		return nil, fmt.Errorf("new postgres store: session is empty")
	}
	return &Postgres{pool: pool, session: session}, nil
}

// EnsureSchema creates the backing table.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM lazyload_session_kv WHERE session_id=$1 AND key=$2`,
		s.session, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *Postgres) Set(ctx context.Context, key string, value string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO lazyload_session_kv (session_id, key, value, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (session_id, key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		s.session, key, value,
	)
	return err
}

func (s *Postgres) Del(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM lazyload_session_kv WHERE session_id=$1 AND key=$2`, s.session, key)
	return err
}
