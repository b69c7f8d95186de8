package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Movements sums posted line totals per account and sub-account. Postings
// dated before from count as opening; postings within [from, to] count as
// period movement. Later postings are ignored.
func (s *Store) Movements(ctx context.Context, from, to time.Time) ([]model.Movement, error) {
	return s.queryMovements(ctx, s.db, from, to)
}

func (s *Store) queryMovements(ctx context.Context, q querier, from, to time.Time) ([]model.Movement, error) {
	f, t := formatDate(from), formatDate(to)

	rows, err := q.QueryContext(ctx, s.d.rebind(`
		SELECT d.account_code, d.sub_account_code,
			COALESCE(SUM(CASE WHEN h.posting_date < ? AND d.side = 'D' THEN d.total_minor END), 0),
			COALESCE(SUM(CASE WHEN h.posting_date < ? AND d.side = 'C' THEN d.total_minor END), 0),
			COALESCE(SUM(CASE WHEN h.posting_date >= ? AND d.side = 'D' THEN d.total_minor END), 0),
			COALESCE(SUM(CASE WHEN h.posting_date >= ? AND d.side = 'C' THEN d.total_minor END), 0)
		FROM journal_detail d
		JOIN journal_header h ON h.journal_number = d.journal_number
		WHERE h.posting_date <= ?
		GROUP BY d.account_code, d.sub_account_code
		ORDER BY d.account_code, d.sub_account_code`), f, f, f, f, t)
	if err != nil {
		return nil, fmt.Errorf("summing movements: %w", err)
	}
	defer rows.Close()

	var out []model.Movement
	for rows.Next() {
		var (
			m                        model.Movement
			openD, openC, perD, perC int64
		)
		if err := rows.Scan(&m.AccountCode, &m.SubAccountCode, &openD, &openC, &perD, &perC); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		m.OpeningDebit = s.fromMinor(openD)
		m.OpeningCredit = s.fromMinor(openC)
		m.PeriodDebit = s.fromMinor(perD)
		m.PeriodCredit = s.fromMinor(perC)
		out = append(out, m)
	}
	return out, rows.Err()
}

// snapshot reads through one read-only transaction.
type snapshot struct {
	s *Store
	q querier
}

func (sn snapshot) Accounts(ctx context.Context) ([]model.Account, error) {
	return queryAccounts(ctx, sn.q)
}

func (sn snapshot) SubAccounts(ctx context.Context) ([]model.SubAccount, error) {
	return querySubAccounts(ctx, sn.q)
}

func (sn snapshot) Movements(ctx context.Context, from, to time.Time) ([]model.Movement, error) {
	return sn.s.queryMovements(ctx, sn.q, from, to)
}

// ReadSnapshot runs fn in a read-only transaction. Postgres uses REPEATABLE
// READ so every statement sees the same snapshot; SQLite transactions are
// already serializable.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(snap store.Snapshot) error) error {
	var opts *sql.TxOptions
	if s.d.name == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return s.wrap(fmt.Errorf("failed to begin read transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(snapshot{s: s, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}
