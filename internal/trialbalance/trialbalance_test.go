package trialbalance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/metrics"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/sequence"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/sqlstore"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func chart() []model.Account {
	return []model.Account{
		{Code: "1000", Name: "Assets", Type: model.AccountTypeAsset, Active: true},
		{Code: "1100", Name: "Cash and bank", Type: model.AccountTypeAsset, ParentCode: "1000", Active: true},
		{Code: "1110", Name: "Cash", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "1120", Name: "Bank", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "2301", Name: "VAT payable", Type: model.AccountTypeLiability, Detail: true, Active: true},
		{Code: "3100", Name: "Capital", Type: model.AccountTypeEquity, Detail: true, Active: true},
		{Code: "4110", Name: "Sales", Type: model.AccountTypeRevenue, Detail: true, Active: true},
		{Code: "5110", Name: "Rent", Type: model.AccountTypeExpense, Detail: true, Active: true},
	}
}

type fixture struct {
	store *sqlstore.Store
	svc   *journal.Service
	agg   *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"), sqlstore.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.SaveAccounts(ctx, chart()))
	require.NoError(t, st.SaveSubAccounts(ctx, []model.SubAccount{
		{AccountCode: "1120", Code: "001", Name: "Main", Active: true},
		{AccountCode: "1120", Code: "002", Name: "Payroll", Active: true},
	}))

	return &fixture{
		store: st,
		svc:   journal.NewService(st, sequence.NewCounter(), zap.NewNop()),
		agg:   NewAggregator(st, zap.NewNop(), metrics.New(prometheus.NewRegistry())),
	}
}

func (f *fixture) post(t *testing.T, d time.Time, debit, debitSub, credit, amount string) {
	t.Helper()
	a := dec(amount)
	_, err := f.svc.Create(context.Background(), journal.Entry{
		Date: d,
		Lines: []journal.Line{
			{Side: model.SideDebit, AccountCode: debit, SubAccountCode: debitSub, BaseAmount: a, TaxAmount: decimal.Zero, TotalAmount: a},
			{Side: model.SideCredit, AccountCode: credit, BaseAmount: a, TaxAmount: decimal.Zero, TotalAmount: a},
		},
	})
	require.NoError(t, err)
}

func (f *fixture) seed(t *testing.T) {
	f.post(t, date(2023, 12, 31), "1120", "001", "3100", "1000")
	f.post(t, date(2024, 1, 10), "1110", "", "4110", "300")
	f.post(t, date(2024, 1, 20), "5110", "", "1120", "200")
	f.post(t, date(2024, 1, 31), "1120", "002", "4110", "50")
	f.post(t, date(2024, 2, 5), "5110", "", "1110", "75")
}

func findRow(rows []Row, code, sub string) (Row, bool) {
	for _, r := range rows {
		if r.AccountCode == code && r.SubAccountCode == sub {
			return r, true
		}
	}
	return Row{}, false
}

func assertAmounts(t *testing.T, got Amounts, opening, debit, credit, closing string) {
	t.Helper()
	assert.True(t, got.Opening.Equal(dec(opening)), "opening %s, want %s", got.Opening, opening)
	assert.True(t, got.Debit.Equal(dec(debit)), "debit %s, want %s", got.Debit, debit)
	assert.True(t, got.Credit.Equal(dec(credit)), "credit %s, want %s", got.Credit, credit)
	assert.True(t, got.Closing.Equal(dec(closing)), "closing %s, want %s", got.Closing, closing)
}

func TestCompute_January(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rep, err := f.agg.Compute(context.Background(), Request{From: date(2024, 1, 1), To: date(2024, 1, 31)})
	require.NoError(t, err)

	var codes []string
	for _, r := range rep.Rows {
		codes = append(codes, r.AccountCode)
	}
	assert.Equal(t, []string{"1000", "1100", "1110", "1120", "3100", "4110", "5110"}, codes,
		"types in canonical order, pre-order within a type, zero rows dropped")

	cash, _ := findRow(rep.Rows, "1110", "")
	assertAmounts(t, cash.Amounts, "0", "300", "0", "300")
	assert.Equal(t, 2, cash.Depth)

	bank, _ := findRow(rep.Rows, "1120", "")
	assertAmounts(t, bank.Amounts, "1000", "50", "200", "850")

	group, _ := findRow(rep.Rows, "1100", "")
	assert.False(t, group.Detail)
	assertAmounts(t, group.Amounts, "1000", "350", "200", "1150")

	root, _ := findRow(rep.Rows, "1000", "")
	assertAmounts(t, root.Amounts, "1000", "350", "200", "1150")

	sales, _ := findRow(rep.Rows, "4110", "")
	assertAmounts(t, sales.Amounts, "0", "0", "350", "350")

	capital, _ := findRow(rep.Rows, "3100", "")
	assertAmounts(t, capital.Amounts, "1000", "0", "0", "1000")

	rent, _ := findRow(rep.Rows, "5110", "")
	assertAmounts(t, rent.Amounts, "0", "200", "0", "200")

	require.Len(t, rep.Subtotals, 5)
	assert.Equal(t, model.AccountTypeAsset, rep.Subtotals[0].AccountType)
	assertAmounts(t, rep.Subtotals[0].Amounts, "1000", "350", "200", "1150")

	assertAmounts(t, rep.GrandTotal, "0", "550", "550", "0")
}

func TestCompute_GrandTotalBalances(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	for _, r := range []Request{
		{From: date(2023, 1, 1), To: date(2023, 12, 31)},
		{From: date(2024, 1, 1), To: date(2024, 1, 31)},
		{From: date(2024, 1, 15), To: date(2024, 2, 28)},
		{From: date(2025, 1, 1), To: date(2025, 1, 1)},
	} {
		rep, err := f.agg.Compute(context.Background(), r)
		require.NoError(t, err)
		assert.True(t, rep.GrandTotal.Debit.Equal(rep.GrandTotal.Credit))
		assert.True(t, rep.GrandTotal.Opening.IsZero())
		assert.True(t, rep.GrandTotal.Closing.IsZero())
	}
}

func TestCompute_PeriodContinuity(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	jan, err := f.agg.Compute(ctx, Request{From: date(2024, 1, 1), To: date(2024, 1, 31), IncludeZeroBalance: true, IncludeSubAccounts: true})
	require.NoError(t, err)
	feb, err := f.agg.Compute(ctx, Request{From: date(2024, 2, 1), To: date(2024, 2, 29), IncludeZeroBalance: true, IncludeSubAccounts: true})
	require.NoError(t, err)

	require.Equal(t, len(jan.Rows), len(feb.Rows))
	for i := range jan.Rows {
		assert.Equal(t, jan.Rows[i].AccountCode, feb.Rows[i].AccountCode)
		assert.Equal(t, jan.Rows[i].SubAccountCode, feb.Rows[i].SubAccountCode)
		assert.True(t, jan.Rows[i].Closing.Equal(feb.Rows[i].Opening),
			"%s/%s: january closing %s != february opening %s",
			jan.Rows[i].AccountCode, jan.Rows[i].SubAccountCode, jan.Rows[i].Closing, feb.Rows[i].Opening)
	}
}

func TestCompute_ScenarioD_EmptyRange(t *testing.T) {
	f := newFixture(t)

	rep, err := f.agg.Compute(context.Background(), Request{From: date(2024, 1, 1), To: date(2024, 1, 31)})
	require.NoError(t, err)
	assert.Empty(t, rep.Rows)
	assert.True(t, rep.GrandTotal.IsZero())
}

func TestCompute_IncludeZeroBalance(t *testing.T) {
	f := newFixture(t)

	rep, err := f.agg.Compute(context.Background(), Request{From: date(2024, 1, 1), To: date(2024, 1, 31), IncludeZeroBalance: true})
	require.NoError(t, err)
	assert.Len(t, rep.Rows, len(chart()))
}

func TestCompute_InvalidRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.agg.Compute(context.Background(), Request{From: date(2024, 2, 1), To: date(2024, 1, 31)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)

	_, err = f.agg.Compute(context.Background(), Request{From: date(2024, 1, 31), To: date(2024, 1, 31)})
	assert.NoError(t, err, "a single day is a valid range")
}

func TestCompute_TypeFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rep, err := f.agg.Compute(context.Background(), Request{
		From:  date(2024, 1, 1),
		To:    date(2024, 1, 31),
		Types: []model.AccountType{model.AccountTypeExpense, model.AccountTypeRevenue},
	})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "4110", rep.Rows[0].AccountCode, "canonical order regardless of filter order")
	assert.Equal(t, "5110", rep.Rows[1].AccountCode)
	require.Len(t, rep.Subtotals, 2)
	assert.True(t, rep.GrandTotal.Debit.Equal(dec("200")))
	assert.True(t, rep.GrandTotal.Credit.Equal(dec("350")))

	_, err = f.agg.Compute(context.Background(), Request{
		From: date(2024, 1, 1), To: date(2024, 1, 31),
		Types: []model.AccountType{"income"},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCompute_SubAccounts(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rep, err := f.agg.Compute(context.Background(), Request{
		From:               date(2024, 1, 1),
		To:                 date(2024, 1, 31),
		IncludeSubAccounts: true,
	})
	require.NoError(t, err)

	var idx int
	for i, r := range rep.Rows {
		if r.AccountCode == "1120" && !r.SubAccount {
			idx = i
		}
	}
	require.Greater(t, len(rep.Rows), idx+2)
	main, payroll := rep.Rows[idx+1], rep.Rows[idx+2]
	assert.True(t, main.SubAccount)
	assert.Equal(t, "001", main.SubAccountCode)
	assert.Equal(t, "Main", main.SubAccountName)
	assert.Equal(t, rep.Rows[idx].Depth+1, main.Depth)
	assertAmounts(t, main.Amounts, "1000", "0", "0", "1000")
	assert.Equal(t, "002", payroll.SubAccountCode)
	assertAmounts(t, payroll.Amounts, "0", "50", "0", "50")

	assertAmounts(t, rep.Subtotals[0].Amounts, "1000", "350", "200", "1150")
	assertAmounts(t, rep.GrandTotal, "0", "550", "550", "0")
}

type fakeSource struct {
	accounts  []model.Account
	movements []model.Movement
	err       error
	beginErr  error
	snapshots *int
}

func (f fakeSource) ReadSnapshot(_ context.Context, fn func(store.Snapshot) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	if f.snapshots != nil {
		*f.snapshots++
	}
	return fn(f)
}

func (f fakeSource) Accounts(context.Context) ([]model.Account, error) { return f.accounts, nil }

func (f fakeSource) SubAccounts(context.Context) ([]model.SubAccount, error) { return nil, nil }

func (f fakeSource) Movements(context.Context, time.Time, time.Time) ([]model.Movement, error) {
	return f.movements, f.err
}

func TestCompute_AggregationErrors(t *testing.T) {
	ctx := context.Background()
	req := Request{From: date(2024, 1, 1), To: date(2024, 1, 31)}

	agg := NewAggregator(fakeSource{accounts: chart(), err: errors.New("pq: connection refused")}, zap.NewNop(), nil)
	_, err := agg.Compute(ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrAggregation)
	assert.NotContains(t, err.Error(), "connection refused")

	agg = NewAggregator(fakeSource{accounts: chart(), movements: []model.Movement{{
		AccountCode: "9999", OpeningDebit: dec("1"), OpeningCredit: decimal.Zero,
		PeriodDebit: decimal.Zero, PeriodCredit: decimal.Zero,
	}}}, zap.NewNop(), nil)
	_, err = agg.Compute(ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrAggregation)

	agg = NewAggregator(fakeSource{beginErr: errors.New("database is locked")}, zap.NewNop(), nil)
	_, err = agg.Compute(ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrAggregation)
	assert.NotContains(t, err.Error(), "locked")
}

func TestCompute_ReadsOneSnapshot(t *testing.T) {
	var snapshots int
	agg := NewAggregator(fakeSource{accounts: chart(), snapshots: &snapshots, movements: []model.Movement{
		{AccountCode: "1110", OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero, PeriodDebit: dec("5"), PeriodCredit: decimal.Zero},
		{AccountCode: "4110", OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero, PeriodDebit: decimal.Zero, PeriodCredit: dec("5")},
	}}, zap.NewNop(), nil)

	_, err := agg.Compute(context.Background(), Request{From: date(2024, 1, 1), To: date(2024, 1, 31)})
	require.NoError(t, err)
	assert.Equal(t, 1, snapshots, "chart and movements come from one read")
}

func TestCompute_UnknownSubAccountCode(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(fakeSource{accounts: chart(), movements: []model.Movement{
		{AccountCode: "1110", SubAccountCode: "X9", OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero, PeriodDebit: dec("5"), PeriodCredit: decimal.Zero},
		{AccountCode: "4110", OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero, PeriodDebit: decimal.Zero, PeriodCredit: dec("5")},
	}}, zap.NewNop(), nil)

	rep, err := agg.Compute(ctx, Request{From: date(2024, 1, 1), To: date(2024, 1, 31), IncludeSubAccounts: true})
	require.NoError(t, err)
	row, ok := findRow(rep.Rows, "1110", "X9")
	require.True(t, ok)
	assert.True(t, row.SubAccount)
	assert.Empty(t, row.SubAccountName)
	assertAmounts(t, row.Amounts, "0", "5", "0", "5")
}
