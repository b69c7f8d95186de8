// Package sequence allocates date-scoped journal numbers.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/store"
)

// MaxAttempts bounds how many candidate numbers Next tries before giving up.
const MaxAttempts = 5

// ErrExhausted is returned when no unused number could be issued, either
// because every attempt collided or the day's counter passed id.MaxSeq.
var ErrExhausted = errors.New("sequence exhausted")

// Allocator issues journal numbers. Next runs inside the posting
// transaction: when the transaction rolls back, the number is never
// visible. Gaps are allowed, duplicates are not.
type Allocator interface {
	Next(ctx context.Context, tx store.Tx, date time.Time) (string, error)
}

// counterFunc bumps the per-day counter and returns the new value.
type counterFunc func(ctx context.Context, day string) (int64, error)

// allocate draws counter values until one yields a number that is not yet
// taken in tx.
func allocate(ctx context.Context, tx store.Tx, date time.Time, next counterFunc) (string, error) {
	day := id.DayKey(date)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		n, err := next(ctx, day)
		if err != nil {
			return "", err
		}
		if n > id.MaxSeq {
			return "", fmt.Errorf("%w: counter for %s reached %d", ErrExhausted, day, n)
		}
		number, err := id.FormatJournalNumber(date, n)
		if err != nil {
			return "", err
		}
		taken, err := tx.JournalExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("%w: %d candidates for %s already used", ErrExhausted, MaxAttempts, day)
}

// Counter allocates from the journal_sequence row of the posting store.
// The row lock taken by the upsert serialises allocators for the same date
// until the posting transaction ends.
type Counter struct{}

// NewCounter returns the store-backed allocator.
func NewCounter() *Counter {
	return &Counter{}
}

// Next implements Allocator.
func (Counter) Next(ctx context.Context, tx store.Tx, date time.Time) (string, error) {
	return allocate(ctx, tx, date, tx.IncrementCounter)
}
