package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// schemaSQL is the single source of truth for the database schema
//
//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert collides with a unique key
	ErrConflict = errors.New("already exists")
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists stations, schedules and perturbation overrides
type Store struct {
	db      *sql.DB
	driver  string
	closeFn func()
	writeMu sync.Mutex // serialises multi-statement writes on SQLite
}

// Open connects to the configured database and ensures the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var s *Store
	switch driver {
	case DriverSQLite:
		db, err := NewSQLiteDB(dsn)
		if err != nil {
			return nil, err
		}
		s = NewStore(db, DriverSQLite)
	case DriverPostgres:
		db, closeFn, err := NewPostgresDB(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s = NewStore(db, DriverPostgres)
		s.closeFn = closeFn
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open connection
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close releases the connection
func (s *Store) Close() error {
	if s.closeFn != nil {
		s.closeFn()
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates tables if they don't exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders as $1..$n for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inTx runs fn in a transaction, committing on success
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "--") {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime reads an RFC3339 column; unparseable values yield the zero time
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
