// Package trialbalance computes hierarchical trial balances over a date range.
package trialbalance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/metrics"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Source supplies the chart of accounts and posted movements from one
// consistent read. store.Store satisfies it.
type Source interface {
	ReadSnapshot(ctx context.Context, fn func(snap store.Snapshot) error) error
}

// Request selects the period and shape of a trial balance.
type Request struct {
	From time.Time
	To   time.Time
	// Types restricts the report to these account types; empty means all.
	Types              []model.AccountType
	IncludeZeroBalance bool
	IncludeSubAccounts bool
}

// Amounts are the four numeric columns of a row.
type Amounts struct {
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Closing decimal.Decimal
}

// IsZero reports whether every column is zero.
func (a Amounts) IsZero() bool {
	return a.Opening.IsZero() && a.Debit.IsZero() && a.Credit.IsZero() && a.Closing.IsZero()
}

func (a Amounts) add(b Amounts) Amounts {
	return Amounts{
		Opening: a.Opening.Add(b.Opening),
		Debit:   a.Debit.Add(b.Debit),
		Credit:  a.Credit.Add(b.Credit),
		Closing: a.Closing.Add(b.Closing),
	}
}

// Row is one line of the report. Opening and Closing are in the account's
// natural direction: debit minus credit for asset and expense accounts,
// credit minus debit otherwise.
type Row struct {
	AccountType    model.AccountType
	AccountCode    string
	AccountName    string
	SubAccountCode string
	SubAccountName string
	// Depth is the tree depth of the account; sub-account rows sit one
	// level below their account.
	Depth int
	// Detail is false for summary accounts, whose amounts roll up their
	// descendants.
	Detail     bool
	SubAccount bool
	Amounts
}

// Subtotal sums the top-level accounts of one type.
type Subtotal struct {
	AccountType model.AccountType
	Amounts
}

// Report is a computed trial balance.
type Report struct {
	From      time.Time
	To        time.Time
	Rows      []Row
	Subtotals []Subtotal
	// GrandTotal sums every top-level account with Opening and Closing
	// expressed debit-positive, so it is zero for a balanced, unfiltered
	// ledger.
	GrandTotal Amounts
}

// Aggregator computes trial balances. It holds no state between calls.
type Aggregator struct {
	src     Source
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAggregator returns an Aggregator reading from src. m may be nil.
func NewAggregator(src Source, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{src: src, logger: logger, metrics: m}
}

// raw holds debit-positive sums before direction is applied.
type raw struct {
	openDebit, openCredit, periodDebit, periodCredit decimal.Decimal
}

func (r raw) add(b raw) raw {
	return raw{
		openDebit:    r.openDebit.Add(b.openDebit),
		openCredit:   r.openCredit.Add(b.openCredit),
		periodDebit:  r.periodDebit.Add(b.periodDebit),
		periodCredit: r.periodCredit.Add(b.periodCredit),
	}
}

// natural converts sums to report amounts in the direction of side.
func (r raw) natural(side model.Side) Amounts {
	opening := r.openDebit.Sub(r.openCredit)
	movement := r.periodDebit.Sub(r.periodCredit)
	if side == model.SideCredit {
		opening = opening.Neg()
		movement = movement.Neg()
	}
	return Amounts{
		Opening: opening,
		Debit:   r.periodDebit,
		Credit:  r.periodCredit,
		Closing: opening.Add(movement),
	}
}

func zeroRaw() raw {
	return raw{decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero}
}

// Compute builds the trial balance for req. It returns a complete report
// or an error, never partial rows.
func (a *Aggregator) Compute(ctx context.Context, req Request) (*Report, error) {
	from, to := dateOnly(req.From), dateOnly(req.To)
	if from.After(to) {
		return nil, apperrors.New(apperrors.KindInvalidRange, "from %s is after to %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	types, err := selectTypes(req.Types)
	if err != nil {
		return nil, err
	}

	var (
		ix        *accounts.Index
		movements []model.Movement
	)
	err = a.src.ReadSnapshot(ctx, func(snap store.Snapshot) error {
		var err error
		if ix, err = accounts.Load(ctx, snap); err != nil {
			return a.fail(ctx, err, "chart of accounts unavailable")
		}
		if movements, err = snap.Movements(ctx, from, to); err != nil {
			return a.fail(ctx, err, "reading posted movements")
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, a.fail(ctx, err, "reading trial balance snapshot")
	}

	own := make(map[string]raw)
	bySub := make(map[string]map[string]raw)
	for _, m := range movements {
		if !ix.Exists(m.AccountCode) {
			return nil, a.fail(ctx, fmt.Errorf("posting against account %s missing from chart", m.AccountCode),
				"postings reference account %s which is not in the chart of accounts", m.AccountCode)
		}
		r := raw{m.OpeningDebit, m.OpeningCredit, m.PeriodDebit, m.PeriodCredit}
		cur, ok := own[m.AccountCode]
		if !ok {
			cur = zeroRaw()
		}
		own[m.AccountCode] = cur.add(r)
		if m.SubAccountCode != "" {
			if bySub[m.AccountCode] == nil {
				bySub[m.AccountCode] = make(map[string]raw)
			}
			bySub[m.AccountCode][m.SubAccountCode] = r
		}
	}

	rolled := rollup(ix, own)

	report := &Report{From: from, To: to}
	grand := zeroRaw()
	rowsByType := make(map[model.AccountType][]Row)
	subtotals := make(map[model.AccountType]Amounts)

	ix.Walk(func(acct model.Account, depth int) bool {
		if !types[acct.Type] {
			return false
		}
		side := acct.Type.NormalSide()
		r := rolled[acct.Code]

		if depth == 0 {
			subtotals[acct.Type] = subtotals[acct.Type].add(r.natural(side))
			grand = grand.add(r)
		}

		row := Row{
			AccountType: acct.Type,
			AccountCode: acct.Code,
			AccountName: acct.Name,
			Depth:       depth,
			Detail:      acct.Detail,
			Amounts:     r.natural(side),
		}
		if req.IncludeZeroBalance || !row.IsZero() {
			rowsByType[acct.Type] = append(rowsByType[acct.Type], row)
		}

		if req.IncludeSubAccounts {
			for _, sr := range subAccountRows(ix, acct, depth, bySub[acct.Code]) {
				if req.IncludeZeroBalance || !sr.IsZero() {
					rowsByType[acct.Type] = append(rowsByType[acct.Type], sr)
				}
			}
		}
		return true
	})

	for _, t := range model.AccountTypes {
		if !types[t] {
			continue
		}
		report.Rows = append(report.Rows, rowsByType[t]...)
		if st, ok := subtotals[t]; ok {
			report.Subtotals = append(report.Subtotals, Subtotal{AccountType: t, Amounts: st})
		}
	}
	report.GrandTotal = grand.natural(model.SideDebit)

	a.metrics.TrialBalance(len(report.Rows))
	logging.For(ctx, a.logger).Debug("trial balance computed",
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")),
		zap.Int("rows", len(report.Rows)),
	)
	return report, nil
}

// rollup returns, per account, its own sums plus those of all descendants.
func rollup(ix *accounts.Index, own map[string]raw) map[string]raw {
	out := make(map[string]raw, ix.Len())
	var visit func(code string) raw
	visit = func(code string) raw {
		total, ok := own[code]
		if !ok {
			total = zeroRaw()
		}
		for _, child := range ix.Children(code) {
			total = total.add(visit(child.Code))
		}
		out[code] = total
		return total
	}
	for _, acct := range ix.All() {
		if acct.ParentCode == "" {
			visit(acct.Code)
		}
	}
	return out
}

// subAccountRows returns one row per sub-account of acct, known sub-accounts
// first in code order, then any posted code missing from the chart.
func subAccountRows(ix *accounts.Index, acct model.Account, depth int, posted map[string]raw) []Row {
	side := acct.Type.NormalSide()
	var rows []Row
	seen := make(map[string]bool)

	mk := func(code, name string) Row {
		r, ok := posted[code]
		if !ok {
			r = zeroRaw()
		}
		return Row{
			AccountType:    acct.Type,
			AccountCode:    acct.Code,
			AccountName:    acct.Name,
			SubAccountCode: code,
			SubAccountName: name,
			Depth:          depth + 1,
			Detail:         true,
			SubAccount:     true,
			Amounts:        r.natural(side),
		}
	}

	for _, s := range ix.SubAccounts(acct.Code) {
		seen[s.Code] = true
		rows = append(rows, mk(s.Code, s.Name))
	}

	var extra []string
	for code := range posted {
		if !seen[code] {
			extra = append(extra, code)
		}
	}
	sort.Strings(extra)
	for _, code := range extra {
		rows = append(rows, mk(code, ""))
	}
	return rows
}

func selectTypes(in []model.AccountType) (map[model.AccountType]bool, error) {
	out := make(map[model.AccountType]bool, len(model.AccountTypes))
	if len(in) == 0 {
		for _, t := range model.AccountTypes {
			out[t] = true
		}
		return out, nil
	}
	for _, t := range in {
		if !t.Valid() {
			return nil, &apperrors.Error{
				Kind:    apperrors.KindValidation,
				Message: "invalid account type filter",
				Issues: []apperrors.Issue{{
					Kind:    apperrors.KindValidation,
					Field:   "type",
					Message: fmt.Sprintf("unknown account type %q", t),
				}},
			}
		}
		out[t] = true
	}
	return out, nil
}

func (a *Aggregator) fail(ctx context.Context, cause error, format string, args ...any) error {
	logging.For(ctx, a.logger).Error("trial balance failed", zap.Error(cause))
	return apperrors.Wrap(apperrors.KindAggregation, cause, format, args...)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
