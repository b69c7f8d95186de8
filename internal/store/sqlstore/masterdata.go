package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/ledger/internal/model"
)

// Accounts returns the chart of accounts ordered by code.
func (s *Store) Accounts(ctx context.Context) ([]model.Account, error) {
	return queryAccounts(ctx, s.db)
}

func queryAccounts(ctx context.Context, q querier) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT code, name, account_type, COALESCE(parent_code, ''), detail, active, sort_order
		FROM account
		ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		var typ string
		if err := rows.Scan(&a.Code, &a.Name, &typ, &a.ParentCode, &a.Detail, &a.Active, &a.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		a.Type = model.AccountType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SubAccounts returns every sub-account ordered by account and code.
func (s *Store) SubAccounts(ctx context.Context) ([]model.SubAccount, error) {
	return querySubAccounts(ctx, s.db)
}

func querySubAccounts(ctx context.Context, q querier) ([]model.SubAccount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT account_code, code, name, active
		FROM sub_account
		ORDER BY account_code, code`)
	if err != nil {
		return nil, fmt.Errorf("querying sub-accounts: %w", err)
	}
	defer rows.Close()

	var out []model.SubAccount
	for rows.Next() {
		var sa model.SubAccount
		if err := rows.Scan(&sa.AccountCode, &sa.Code, &sa.Name, &sa.Active); err != nil {
			return nil, fmt.Errorf("scanning sub-account: %w", err)
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}

// ReferenceActive reports whether a partner, analysis or tax code exists and
// is active. Unknown codes return false without error.
func (s *Store) ReferenceActive(ctx context.Context, kind model.RefKind, code string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT active FROM reference_code WHERE kind = ? AND code = ?`),
		string(kind), code).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s %s: %w", kind, code, err)
	}
	return active, nil
}

// SaveAccounts upserts accounts in one transaction. Parent references are
// checked at commit so input order does not matter.
func (s *Store) SaveAccounts(ctx context.Context, accounts []model.Account) error {
	q := s.d.rebind(`
		INSERT INTO account (code, name, account_type, parent_code, detail, active, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			parent_code = excluded.parent_code,
			detail = excluded.detail,
			active = excluded.active,
			sort_order = excluded.sort_order`)
	return s.batch(ctx, "accounts", len(accounts), func(tx *sql.Tx, i int) error {
		a := accounts[i]
		parent := sql.NullString{String: a.ParentCode, Valid: a.ParentCode != ""}
		_, err := tx.ExecContext(ctx, q, a.Code, a.Name, string(a.Type), parent, a.Detail, a.Active, a.SortOrder)
		return err
	})
}

// SaveSubAccounts upserts sub-accounts in one transaction.
func (s *Store) SaveSubAccounts(ctx context.Context, subs []model.SubAccount) error {
	q := s.d.rebind(`
		INSERT INTO sub_account (account_code, code, name, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (account_code, code) DO UPDATE SET
			name = excluded.name,
			active = excluded.active`)
	return s.batch(ctx, "sub-accounts", len(subs), func(tx *sql.Tx, i int) error {
		sa := subs[i]
		_, err := tx.ExecContext(ctx, q, sa.AccountCode, sa.Code, sa.Name, sa.Active)
		return err
	})
}

// SaveReferences upserts partner, analysis and tax codes in one transaction.
func (s *Store) SaveReferences(ctx context.Context, refs []model.Reference) error {
	q := s.d.rebind(`
		INSERT INTO reference_code (kind, code, name, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, code) DO UPDATE SET
			name = excluded.name,
			active = excluded.active`)
	return s.batch(ctx, "references", len(refs), func(tx *sql.Tx, i int) error {
		r := refs[i]
		_, err := tx.ExecContext(ctx, q, string(r.Kind), r.Code, r.Name, r.Active)
		return err
	})
}

func (s *Store) batch(ctx context.Context, what string, n int, exec func(tx *sql.Tx, i int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving %s: %w", what, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := 0; i < n; i++ {
		if err := exec(tx, i); err != nil {
			return fmt.Errorf("saving %s row %d: %w", what, i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving %s: %w", what, err)
	}
	return nil
}
