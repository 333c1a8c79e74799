package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type DBDialect string

const (
	dialectSQLite   DBDialect = "sqlite"
	dialectPostgres DBDialect = "postgres"
)

// Every storage call runs under this deadline; a hung database surfaces as
// an error instead of a stuck request.
const storageTimeout = 5 * time.Second

type Store struct {
	db      *sql.DB
	dialect DBDialect
}

func openStoreFromEnv() (*Store, error) {
	dialectRaw := strings.TrimSpace(strings.ToLower(os.Getenv("DB_DIALECT")))
	if dialectRaw == "" {
		dialectRaw = string(dialectSQLite)
	}
	dialect := DBDialect(dialectRaw)

	var driverName string
	var dsn string
	switch dialect {
	case dialectSQLite:
		driverName = "sqlite"
		path := strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
		if path == "" {
			path = "ma_base_de_donnees.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		dsn = path
	case dialectPostgres:
		driverName = "postgres"
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		if dsn == "" {
			return nil, errors.New("DB_DIALECT=postgres requires DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialectRaw)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == dialectSQLite {
		// Serializes all access; the file-level write lock never bites.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	store := &Store{db: db, dialect: dialect}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("database: dialect=%s", dialect)
	return store, nil
}

func openStore(dialect DBDialect, dsn string) (*Store, error) {
	driverName := "sqlite"
	if dialect == dialectPostgres {
		driverName = "postgres"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == dialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	store := &Store{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// q rewrites ? placeholders to $1..$n for postgres. Queries in this file and
// the rest of the package are written once with ? and bound per dialect.
func (s *Store) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) opCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, storageTimeout)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	// Schema kept compatible with the historical SQLite file: same table and
	// column names, pseudo as the unique identity key.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS utilisateurs (
			pseudo TEXT PRIMARY KEY,
			mot_de_passe TEXT NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			multiplier BIGINT NOT NULL DEFAULT 1,
			autoclicker BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			pseudo TEXT NOT NULL DEFAULT '',
			is_admin BIGINT NOT NULL DEFAULT 0,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_pseudo ON sessions (pseudo)`,
		`CREATE TABLE IF NOT EXISTS pages_soon (
			page TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS maintenance (
			id BIGINT PRIMARY KEY,
			enabled BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	// Single maintenance row, seeded off.
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO maintenance (id, enabled)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING
	`)); err != nil {
		return fmt.Errorf("seed maintenance row: %w", err)
	}
	return nil
}
