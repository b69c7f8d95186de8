package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

func (s *Store) headerColumns() string {
	return `journal_number, ` + s.d.dateExpr("posting_date") + `, description, total_minor, created_at, updated_at`
}

const lineColumns = `journal_number, line_no, side, account_code, sub_account_code, partner_code,
	analysis_code, tax_code, base_minor, tax_minor, total_minor, description`

// GetJournal returns one journal with its lines, or store.ErrNotFound.
func (s *Store) GetJournal(ctx context.Context, number string) (*model.Journal, error) {
	row := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT `+s.headerColumns()+` FROM journal_header WHERE journal_number = ?`), number)
	j, err := s.scanHeader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", number, err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.d.rebind(`SELECT `+lineColumns+` FROM journal_detail WHERE journal_number = ? ORDER BY line_no`), number)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s lines: %w", number, err)
	}
	defer rows.Close()

	for rows.Next() {
		_, l, err := s.scanLine(rows)
		if err != nil {
			return nil, err
		}
		j.Lines = append(j.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return j, nil
}

// ListJournals returns journals dated within [from, to] ordered by date and
// number.
func (s *Store) ListJournals(ctx context.Context, from, to time.Time) ([]model.Journal, error) {
	f, t := formatDate(from), formatDate(to)

	hrows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT `+s.headerColumns()+`
		FROM journal_header
		WHERE posting_date >= ? AND posting_date <= ?
		ORDER BY posting_date, journal_number`), f, t)
	if err != nil {
		return nil, fmt.Errorf("listing journals: %w", err)
	}
	defer hrows.Close()

	var out []model.Journal
	pos := make(map[string]int)
	for hrows.Next() {
		j, err := s.scanHeader(hrows)
		if err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		pos[j.Number] = len(out)
		out = append(out, *j)
	}
	if err := hrows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lrows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT `+lineColumns+`
		FROM journal_detail
		WHERE journal_number IN (
			SELECT journal_number FROM journal_header WHERE posting_date >= ? AND posting_date <= ?)
		ORDER BY journal_number, line_no`), f, t)
	if err != nil {
		return nil, fmt.Errorf("listing journal lines: %w", err)
	}
	defer lrows.Close()

	for lrows.Next() {
		number, l, err := s.scanLine(lrows)
		if err != nil {
			return nil, err
		}
		if i, ok := pos[number]; ok {
			out[i].Lines = append(out[i].Lines, l)
		}
	}
	return out, lrows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanHeader(sc scanner) (*model.Journal, error) {
	var (
		j     model.Journal
		date  string
		total int64
	)
	if err := sc.Scan(&j.Number, &date, &j.Description, &total, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	j.Date = d
	j.TotalAmount = s.fromMinor(total)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}

func (s *Store) scanLine(sc scanner) (string, model.JournalLine, error) {
	var (
		number            string
		l                 model.JournalLine
		side              string
		base, tax, amount int64
	)
	err := sc.Scan(&number, &l.LineNo, &side, &l.AccountCode, &l.SubAccountCode, &l.PartnerCode,
		&l.AnalysisCode, &l.TaxCode, &base, &tax, &amount, &l.Description)
	if err != nil {
		return "", l, fmt.Errorf("scanning journal line: %w", err)
	}
	l.Side = model.Side(side)
	l.BaseAmount = s.fromMinor(base)
	l.TaxAmount = s.fromMinor(tax)
	l.TotalAmount = s.fromMinor(amount)
	return number, l, nil
}

// txStore implements store.Tx on an open transaction.
type txStore struct {
	s *Store
	q querier
}

func (t *txStore) IncrementCounter(ctx context.Context, day string) (int64, error) {
	var n int64
	err := t.q.QueryRowContext(ctx, t.s.d.rebind(`
		INSERT INTO journal_sequence (seq_date, last_value) VALUES (?, 1)
		ON CONFLICT (seq_date) DO UPDATE SET last_value = journal_sequence.last_value + 1
		RETURNING last_value`), day).Scan(&n)
	if err != nil {
		return 0, t.s.wrap(fmt.Errorf("incrementing counter for %s: %w", day, err))
	}
	return n, nil
}

func (t *txStore) JournalExists(ctx context.Context, number string) (bool, error) {
	var one int
	err := t.q.QueryRowContext(ctx,
		t.s.d.rebind(`SELECT 1 FROM journal_header WHERE journal_number = ?`), number).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, t.s.wrap(fmt.Errorf("checking journal %s: %w", number, err))
	}
	return true, nil
}

func (t *txStore) LastJournalNumber(ctx context.Context, day string) (string, error) {
	var last sql.NullString
	err := t.q.QueryRowContext(ctx, t.s.d.rebind(`
		SELECT MAX(journal_number) FROM journal_header
		WHERE journal_number >= ? AND journal_number <= ?`),
		day+"0000000", day+"9999999").Scan(&last)
	if err != nil {
		return "", t.s.wrap(fmt.Errorf("reading last journal number for %s: %w", day, err))
	}
	return last.String, nil
}

func (t *txStore) InsertJournal(ctx context.Context, j *model.Journal) error {
	total, err := t.s.toMinor(j.TotalAmount)
	if err != nil {
		return fmt.Errorf("journal %s total: %w", j.Number, err)
	}
	_, err = t.q.ExecContext(ctx, t.s.d.rebind(`
		INSERT INTO journal_header (journal_number, posting_date, description, total_minor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		j.Number, formatDate(j.Date), j.Description, total, j.CreatedAt.UTC(), j.UpdatedAt.UTC())
	if err != nil {
		return t.s.wrap(fmt.Errorf("inserting journal %s: %w", j.Number, err))
	}
	return t.insertLines(ctx, j)
}

func (t *txStore) ReplaceJournal(ctx context.Context, j *model.Journal) error {
	total, err := t.s.toMinor(j.TotalAmount)
	if err != nil {
		return fmt.Errorf("journal %s total: %w", j.Number, err)
	}
	res, err := t.q.ExecContext(ctx, t.s.d.rebind(`
		UPDATE journal_header
		SET posting_date = ?, description = ?, total_minor = ?, updated_at = ?
		WHERE journal_number = ?`),
		formatDate(j.Date), j.Description, total, j.UpdatedAt.UTC(), j.Number)
	if err != nil {
		return t.s.wrap(fmt.Errorf("updating journal %s: %w", j.Number, err))
	}
	if err := affected(res); err != nil {
		return err
	}

	if _, err := t.q.ExecContext(ctx,
		t.s.d.rebind(`DELETE FROM journal_detail WHERE journal_number = ?`), j.Number); err != nil {
		return t.s.wrap(fmt.Errorf("clearing journal %s lines: %w", j.Number, err))
	}
	return t.insertLines(ctx, j)
}

func (t *txStore) DeleteJournal(ctx context.Context, number string) error {
	if _, err := t.q.ExecContext(ctx,
		t.s.d.rebind(`DELETE FROM journal_detail WHERE journal_number = ?`), number); err != nil {
		return t.s.wrap(fmt.Errorf("deleting journal %s lines: %w", number, err))
	}
	res, err := t.q.ExecContext(ctx,
		t.s.d.rebind(`DELETE FROM journal_header WHERE journal_number = ?`), number)
	if err != nil {
		return t.s.wrap(fmt.Errorf("deleting journal %s: %w", number, err))
	}
	return affected(res)
}

func (t *txStore) insertLines(ctx context.Context, j *model.Journal) error {
	q := t.s.d.rebind(`
		INSERT INTO journal_detail (` + lineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, l := range j.Lines {
		var amounts [3]int64
		for i, d := range []decimal.Decimal{l.BaseAmount, l.TaxAmount, l.TotalAmount} {
			n, err := t.s.toMinor(d)
			if err != nil {
				return fmt.Errorf("journal %s line %d: %w", j.Number, l.LineNo, err)
			}
			amounts[i] = n
		}
		_, err := t.q.ExecContext(ctx, q,
			j.Number, l.LineNo, string(l.Side), l.AccountCode, l.SubAccountCode, l.PartnerCode,
			l.AnalysisCode, l.TaxCode, amounts[0], amounts[1], amounts[2], l.Description)
		if err != nil {
			return t.s.wrap(fmt.Errorf("inserting journal %s line %d: %w", j.Number, l.LineNo, err))
		}
	}
	return nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
