// Package sqlite implements the store interfaces on SQLite via the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/orgstack/identity/internal/identity/store"
)

// Store wraps a SQLite database. The pool is capped at a single connection:
// serialized transactions cost little at this service's write volume, and it
// keeps ":memory:" databases coherent in tests.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) the database at path. Use ":memory:" for an
// ephemeral database.
func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Accounts() store.AccountRepo { return &accountRepo{q: s.db} }
func (s *Store) Tenants() store.TenantRepo { return &tenantRepo{q: s.db} }
func (s *Store) Plans() store.PlanRepo { return &planRepo{q: s.db} }
func (s *Store) LifecycleTokens() store.LifecycleTokenRepo { return &tokenRepo{q: s.db} }
func (s *Store) PaymentCredentials() store.PaymentCredentialsRepo { return &credentialsRepo{q: s.db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&tx{sqlTx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	sqlTx *sql.Tx
}

func (t *tx) Accounts() store.AccountRepo { return &accountRepo{q: t.sqlTx} }
func (t *tx) Tenants() store.TenantRepo { return &tenantRepo{q: t.sqlTx} }
func (t *tx) Plans() store.PlanRepo { return &planRepo{q: t.sqlTx} }
func (t *tx) LifecycleTokens() store.LifecycleTokenRepo { return &tokenRepo{q: t.sqlTx} }
func (t *tx) PaymentCredentials() store.PaymentCredentialsRepo { return &credentialsRepo{q: t.sqlTx} }

// queryer is satisfied by both *sql.DB and *sql.Tx so repos work inside and
// outside transactions.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapErr translates driver errors into the store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// Timestamps are stored as RFC 3339 text so the schema stays inspectable.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
