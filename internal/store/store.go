// Package store defines the persistence contract of the ledger.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned for transient write conflicts (serialization
	// failures, busy databases, duplicate keys) that may succeed on retry.
	ErrConflict = errors.New("store: write conflict")
)

// Store is the unified storage interface. Every method honours ctx.
type Store interface {
	// Master data (read-only from the ledger's perspective).
	Accounts(ctx context.Context) ([]model.Account, error)
	SubAccounts(ctx context.Context) ([]model.SubAccount, error)
	ReferenceActive(ctx context.Context, kind model.RefKind, code string) (bool, error)

	// Master data seeding used by operator tooling.
	SaveAccounts(ctx context.Context, accounts []model.Account) error
	SaveSubAccounts(ctx context.Context, subs []model.SubAccount) error
	SaveReferences(ctx context.Context, refs []model.Reference) error

	// Journals.
	GetJournal(ctx context.Context, number string) (*model.Journal, error)
	ListJournals(ctx context.Context, from, to time.Time) ([]model.Journal, error)

	// Movements returns per (account, sub-account) sums: opening = postings
	// dated before from, period = postings dated in [from, to].
	Movements(ctx context.Context, from, to time.Time) ([]model.Movement, error)

	// ReadSnapshot runs fn against one read-only transaction, so the chart
	// and the movements read through it are mutually consistent.
	ReadSnapshot(ctx context.Context, fn func(snap Snapshot) error) error

	// InTx runs fn inside one transaction: committed if fn returns nil,
	// rolled back otherwise (including on ctx cancellation).
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Snapshot is a consistent read view used by reports.
type Snapshot interface {
	Accounts(ctx context.Context) ([]model.Account, error)
	SubAccounts(ctx context.Context) ([]model.SubAccount, error)
	Movements(ctx context.Context, from, to time.Time) ([]model.Movement, error)
}

// Tx is the set of writes performed atomically by the posting engine.
type Tx interface {
	// IncrementCounter atomically bumps the journal counter for day and
	// returns the new value.
	IncrementCounter(ctx context.Context, day string) (int64, error)
	JournalExists(ctx context.Context, number string) (bool, error)
	// LastJournalNumber returns the highest journal number issued for day
	// (YYYYMMDD), or "" when there is none.
	LastJournalNumber(ctx context.Context, day string) (string, error)
	InsertJournal(ctx context.Context, j *model.Journal) error
	// ReplaceJournal updates the header and replaces all lines.
	ReplaceJournal(ctx context.Context, j *model.Journal) error
	DeleteJournal(ctx context.Context, number string) error
}
