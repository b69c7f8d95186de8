package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"), DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))

	require.NoError(t, s.SaveAccounts(ctx, openTestAccounts()))
	require.NoError(t, s.SaveSubAccounts(ctx, []model.SubAccount{
		{AccountCode: "1110", Code: "001", Name: "Till", Active: true},
	}))
	return s
}

func openTestAccounts() []model.Account {
	return []model.Account{
		{Code: "1110", Name: "Cash", Type: model.AccountTypeAsset, ParentCode: "1000", Detail: true, Active: true},
		{Code: "1000", Name: "Current assets", Type: model.AccountTypeAsset, Active: true},
		{Code: "4110", Name: "Sales", Type: model.AccountTypeRevenue, Detail: true, Active: true},
	}
}

func sale(number string, date time.Time, amount string) *model.Journal {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := dec(amount)
	return &model.Journal{
		Number:      number,
		Date:        date,
		Description: "sale",
		TotalAmount: a,
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines: []model.JournalLine{
			{LineNo: 1, Side: model.SideDebit, AccountCode: "1110", SubAccountCode: "001", BaseAmount: a, TaxAmount: decimal.Zero, TotalAmount: a},
			{LineNo: 2, Side: model.SideCredit, AccountCode: "4110", BaseAmount: a, TaxAmount: decimal.Zero, TotalAmount: a},
		},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestMigrate_ScaleMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := Open(ctx, DriverSQLite, path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Close())

	opts := DefaultOptions()
	opts.Scale = 4
	s, err = Open(ctx, DriverSQLite, path, opts)
	require.NoError(t, err)
	defer s.Close()
	assert.Error(t, s.Migrate(ctx))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", DefaultOptions())
	assert.Error(t, err)
}

func TestMasterData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	accts, err := s.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accts, 3)
	assert.Equal(t, "1000", accts[0].Code)
	assert.Equal(t, "", accts[0].ParentCode)
	assert.Equal(t, "1000", accts[1].ParentCode)
	assert.True(t, accts[1].Detail)

	// Upsert renames in place.
	require.NoError(t, s.SaveAccounts(ctx, []model.Account{
		{Code: "4110", Name: "Product sales", Type: model.AccountTypeRevenue, Detail: true, Active: true},
	}))
	accts, err = s.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accts, 3)
	assert.Equal(t, "Product sales", accts[2].Name)

	subs, err := s.SubAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Till", subs[0].Name)

	require.NoError(t, s.SaveReferences(ctx, []model.Reference{
		{Kind: model.RefPartner, Code: "P001", Name: "Acme", Active: true},
		{Kind: model.RefTax, Code: "T10", Name: "VAT 10%", Active: false},
	}))
	ok, err := s.ReferenceActive(ctx, model.RefPartner, "P001")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ReferenceActive(ctx, model.RefTax, "T10")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.ReferenceActive(ctx, model.RefAnalysis, "P001")
	require.NoError(t, err)
	assert.False(t, ok, "kind is part of the key")
}

func TestSaveAccounts_UnknownParentRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SaveAccounts(ctx, []model.Account{
		{Code: "5110", Name: "Rent", Type: model.AccountTypeExpense, ParentCode: "5000", Detail: true, Active: true},
	})
	require.Error(t, err)

	accts, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accts, 3)
}

func TestIncrementCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var got []int64
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
			n, err := tx.IncrementCounter(ctx, "20250115")
			got = append(got, n)
			return err
		}))
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.IncrementCounter(ctx, "20250116")
		assert.Equal(t, int64(1), n, "counters are per day")
		return err
	}))
}

func TestInTx_RollbackReleasesCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.IncrementCounter(ctx, "20250115")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.IncrementCounter(ctx, "20250115")
		assert.Equal(t, int64(1), n)
		return err
	}))
}

func TestJournalRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := sale("202501150000001", day(2025, 1, 15), "110.50")
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertJournal(ctx, j)
	}))

	got, err := s.GetJournal(ctx, j.Number)
	require.NoError(t, err)
	assert.Equal(t, j.Number, got.Number)
	assert.True(t, got.Date.Equal(j.Date))
	assert.True(t, got.TotalAmount.Equal(dec("110.50")))
	assert.True(t, got.CreatedAt.Equal(j.CreatedAt))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, model.SideDebit, got.Lines[0].Side)
	assert.Equal(t, "001", got.Lines[0].SubAccountCode)
	assert.True(t, got.Lines[1].TotalAmount.Equal(dec("110.50")))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		exists, err := tx.JournalExists(ctx, j.Number)
		assert.True(t, exists)
		return err
	}))

	_, err = s.GetJournal(ctx, "202501150000099")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLastJournalNumber(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, n := range []string{"202501150000002", "202501150000010", "202501160000001"} {
		j := sale(n, day(2025, 1, 15), "10")
		require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.InsertJournal(ctx, j) }))
	}

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		last, err := tx.LastJournalNumber(ctx, "20250115")
		require.NoError(t, err)
		assert.Equal(t, "202501150000010", last)

		last, err = tx.LastJournalNumber(ctx, "20250117")
		require.NoError(t, err)
		assert.Empty(t, last)
		return nil
	}))
}

func TestInsertJournal_DuplicateIsConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := sale("202501150000001", day(2025, 1, 15), "10")
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.InsertJournal(ctx, j) }))

	err := s.InTx(ctx, func(tx store.Tx) error { return tx.InsertJournal(ctx, j) })
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestInsertJournal_AmountOutOfRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := sale("202501150000001", day(2025, 1, 15), "184467440737095516.17")
	err := s.InTx(ctx, func(tx store.Tx) error { return tx.InsertJournal(ctx, j) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be stored in minor units")

	_, err = s.GetJournal(ctx, j.Number)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToMinor(t *testing.T) {
	s := &Store{scale: 2}
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "110.50", want: 11050},
		{in: "92233720368547758.07", want: 9223372036854775807},
		{in: "92233720368547758.08", wantErr: true},
		{in: "-92233720368547758.09", wantErr: true},
		{in: "1.005", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := s.toMinor(dec(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplaceAndDeleteJournal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := sale("202501150000001", day(2025, 1, 15), "10")
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.InsertJournal(ctx, j) }))

	updated := sale(j.Number, day(2025, 2, 1), "25")
	updated.Lines = append(updated.Lines[:1], model.JournalLine{
		LineNo: 2, Side: model.SideCredit, AccountCode: "4110",
		BaseAmount: dec("20"), TaxAmount: dec("5"), TotalAmount: dec("25"),
	})
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.ReplaceJournal(ctx, updated) }))

	got, err := s.GetJournal(ctx, j.Number)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(day(2025, 2, 1)))
	assert.True(t, got.TotalAmount.Equal(dec("25")))
	require.Len(t, got.Lines, 2)
	assert.True(t, got.Lines[1].TaxAmount.Equal(dec("5")))

	missing := sale("202501150000009", day(2025, 1, 15), "1")
	err = s.InTx(ctx, func(tx store.Tx) error { return tx.ReplaceJournal(ctx, missing) })
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.DeleteJournal(ctx, j.Number) }))
	_, err = s.GetJournal(ctx, j.Number)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.InTx(ctx, func(tx store.Tx) error { return tx.DeleteJournal(ctx, j.Number) })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListJournals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		for _, j := range []*model.Journal{
			sale("202502010000001", day(2025, 2, 1), "3"),
			sale("202501150000002", day(2025, 1, 15), "2"),
			sale("202501150000001", day(2025, 1, 15), "1"),
			sale("202501100000001", day(2025, 1, 10), "9"),
		} {
			if err := tx.InsertJournal(ctx, j); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := s.ListJournals(ctx, day(2025, 1, 15), day(2025, 2, 1))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "202501150000001", list[0].Number)
	assert.Equal(t, "202501150000002", list[1].Number)
	assert.Equal(t, "202502010000001", list[2].Number)
	for _, j := range list {
		assert.Len(t, j.Lines, 2)
	}

	list, err = s.ListJournals(ctx, day(2024, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMovements(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		for _, j := range []*model.Journal{
			sale("202412310000001", day(2024, 12, 31), "100.00"),
			sale("202501150000001", day(2025, 1, 15), "40.25"),
			sale("202501310000001", day(2025, 1, 31), "9.75"),
			sale("202502010000001", day(2025, 2, 1), "1000"),
		} {
			if err := tx.InsertJournal(ctx, j); err != nil {
				return err
			}
		}
		return nil
	}))

	ms, err := s.Movements(ctx, day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Len(t, ms, 2)

	cash := ms[0]
	assert.Equal(t, "1110", cash.AccountCode)
	assert.Equal(t, "001", cash.SubAccountCode)
	assert.True(t, cash.OpeningDebit.Equal(dec("100")))
	assert.True(t, cash.OpeningCredit.IsZero())
	assert.True(t, cash.PeriodDebit.Equal(dec("50")), "both period bounds are inclusive")
	assert.True(t, cash.PeriodCredit.IsZero())

	sales := ms[1]
	assert.Equal(t, "4110", sales.AccountCode)
	assert.Equal(t, "", sales.SubAccountCode)
	assert.True(t, sales.OpeningCredit.Equal(dec("100")))
	assert.True(t, sales.PeriodCredit.Equal(dec("50")))
}

func TestReadSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := sale("202501150000001", day(2025, 1, 15), "40.25")
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.InsertJournal(ctx, j) }))

	err := s.ReadSnapshot(ctx, func(snap store.Snapshot) error {
		accts, err := snap.Accounts(ctx)
		require.NoError(t, err)
		assert.Len(t, accts, 3)

		subs, err := snap.SubAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, subs, 1)

		ms, err := snap.Movements(ctx, day(2025, 1, 1), day(2025, 1, 31))
		require.NoError(t, err)
		require.Len(t, ms, 2)
		assert.True(t, ms[0].PeriodDebit.Equal(dec("40.25")))
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.ReadSnapshot(ctx, func(store.Snapshot) error { return boom }), boom)

	// the connection is released after the snapshot ends
	_, err = s.Accounts(ctx)
	assert.NoError(t, err)
}
