//go:build integration

package sqlstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/store"
)

// Run with: LEDGER_TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/store/sqlstore
func openPostgres(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, DriverPostgres, dsn, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.DB().ExecContext(ctx, `DROP TABLE IF EXISTS journal_detail, journal_header, journal_sequence,
		sub_account, reference_code, account, ledger_meta CASCADE`)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgres_ConcurrentCounter(t *testing.T) {
	s := openPostgres(t)
	ctx := context.Background()

	const n = 20
	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx store.Tx) error {
				v, err := tx.IncrementCounter(ctx, "20250115")
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if seen[v] {
					return fmt.Errorf("duplicate counter value %d", v)
				}
				seen[v] = true
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestPostgres_Movements(t *testing.T) {
	s := openPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccounts(ctx, openTestAccounts()))
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertJournal(ctx, sale("202501150000001", day(2025, 1, 15), "12.34"))
	}))

	ms, err := s.Movements(ctx, day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.True(t, ms[0].PeriodDebit.Equal(dec("12.34")))

	j, err := s.GetJournal(ctx, "202501150000001")
	require.NoError(t, err)
	assert.True(t, j.Date.Equal(day(2025, 1, 15)))
}
