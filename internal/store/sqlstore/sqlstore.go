// Package sqlstore implements store.Store on database/sql for PostgreSQL
// (lib/pq) and SQLite (go-sqlite3).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/store"
)

const dateLayout = "2006-01-02"

// Options configures the connection pool and the ledger's amount scale.
type Options struct {
	// Scale is the number of decimal places kept for amounts.
	Scale           int32
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions returns pool settings for a small service.
func DefaultOptions() Options {
	return Options{
		Scale:           2,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Store is a store.Store backed by a SQL database.
type Store struct {
	db    *sql.DB
	d     dialect
	scale int32
}

var _ store.Store = (*Store)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to driver (DriverPostgres or DriverSQLite) and pings it.
// For SQLite a bare file path is expanded to a DSN with foreign keys, WAL,
// a busy timeout and immediate write transactions.
func Open(ctx context.Context, driver, dsn string, opts Options) (*Store, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if opts.Scale < 0 || opts.Scale > 6 {
		return nil, fmt.Errorf("amount scale %d out of range 0..6", opts.Scale)
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection serialises writers; SQLite allows a single writer anyway.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxIdleConns)
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, d: d, scale: opts.Scale}, nil
}

func sqliteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dsn)
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Scale returns the amount scale.
func (s *Store) Scale() int32 {
	return s.scale
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema and records the amount scale. Opening an
// existing ledger with a different scale fails.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	_, err := s.db.ExecContext(ctx, s.d.rebind(
		`INSERT INTO ledger_meta (key, value) VALUES ('amount_scale', ?) ON CONFLICT (key) DO NOTHING`),
		strconv.Itoa(int(s.scale)))
	if err != nil {
		return fmt.Errorf("recording amount scale: %w", err)
	}

	var stored string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = 'amount_scale'`).Scan(&stored)
	if err != nil {
		return fmt.Errorf("reading amount scale: %w", err)
	}
	if stored != strconv.Itoa(int(s.scale)) {
		return fmt.Errorf("ledger amount scale is %s, configured %d", stored, s.scale)
	}
	return nil
}

// InTx runs fn in a transaction. A panic in fn rolls back and re-panics.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore{s: s, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.wrap(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// wrap marks transient conflicts with store.ErrConflict.
func (s *Store) wrap(err error) error {
	if err == nil {
		return nil
	}
	if s.d.conflict(err) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	return err
}

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// toMinor converts d to integer minor units at the store scale. Amounts
// with more places than the scale or outside the BIGINT range are refused.
func (s *Store) toMinor(d decimal.Decimal) (int64, error) {
	m := d.Shift(s.scale)
	if !m.IsInteger() || m.GreaterThan(maxMinor) || m.LessThan(minMinor) {
		return 0, fmt.Errorf("amount %s cannot be stored in minor units at scale %d", d, s.scale)
	}
	return m.IntPart(), nil
}

func (s *Store) fromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -s.scale)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing posting date %q: %w", s, err)
	}
	return t, nil
}
