package journal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/model"
)

// MaxDescription is the longest accepted header or line description, in characters.
const MaxDescription = 255

// MaxAmount is the largest amount that fits the store's integer minor
// units at the given scale. Each line amount and each side's total must not
// exceed it.
func MaxAmount(scale int32) decimal.Decimal {
	return decimal.New(math.MaxInt64, -scale)
}

// Entry is the caller's input for creating or replacing a journal.
type Entry struct {
	Date        time.Time
	Description string
	Lines       []Line
	// InputIssues are problems found while decoding the caller's input,
	// such as an unparsable amount. Validate reports them with its own
	// findings; a field listed here is not checked again.
	InputIssues []apperrors.Issue
}

// Line is one input line. LineNo is assigned from its position.
type Line struct {
	Side           model.Side
	AccountCode    string
	SubAccountCode string
	PartnerCode    string
	AnalysisCode   string
	TaxCode        string
	BaseAmount     decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
	Description    string
}

// ReferenceChecker resolves partner, analysis and tax codes. store.Store
// satisfies it.
type ReferenceChecker interface {
	ReferenceActive(ctx context.Context, kind model.RefKind, code string) (bool, error)
}

// Validator checks an Entry against the chart of accounts and reference
// data. It never writes.
type Validator struct {
	Accounts *accounts.Index
	Refs     ReferenceChecker
	// Scale is the maximum number of decimal places per amount.
	Scale int32
}

// Validate reports every problem in e. It returns an *apperrors.Error
// carrying all issues, or a plain error when a reference lookup itself
// failed.
func (v Validator) Validate(ctx context.Context, e Entry) error {
	var issues []apperrors.Issue
	add := func(kind apperrors.Kind, line int, field, format string, args ...any) {
		issues = append(issues, apperrors.Issue{Kind: kind, Line: line, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	issues = append(issues, e.InputIssues...)
	reported := make(map[int]map[string]bool, len(e.InputIssues))
	for _, is := range e.InputIssues {
		if reported[is.Line] == nil {
			reported[is.Line] = map[string]bool{}
		}
		reported[is.Line][is.Field] = true
	}

	if e.Date.IsZero() && !reported[0]["date"] {
		add(apperrors.KindValidation, 0, "date", "posting date is required")
	}
	if n := len([]rune(e.Description)); n > MaxDescription {
		add(apperrors.KindValidation, 0, "description", "description is %d characters, maximum %d", n, MaxDescription)
	}
	if len(e.Lines) < 2 {
		add(apperrors.KindValidation, 0, "lines", "at least two lines required")
	}

	debit, credit := decimal.Zero, decimal.Zero
	sidesValid := true
	limit := MaxAmount(v.Scale)

	for i, l := range e.Lines {
		no := i + 1

		switch l.Side {
		case model.SideDebit:
			debit = debit.Add(l.TotalAmount)
		case model.SideCredit:
			credit = credit.Add(l.TotalAmount)
		default:
			sidesValid = false
			add(apperrors.KindValidation, no, "side", "side must be D or C, got %q", string(l.Side))
		}

		if len([]rune(l.Description)) > MaxDescription {
			add(apperrors.KindValidation, no, "description", "description longer than %d characters", MaxDescription)
		}

		amountsOK := true
		for _, f := range []string{"base_amount", "tax_amount", "total_amount"} {
			if reported[no][f] {
				// the amount is unknown, so neither the line nor the sides can be summed
				amountsOK = false
				sidesValid = false
			}
		}
		for _, a := range []struct {
			field string
			value decimal.Decimal
		}{
			{"base_amount", l.BaseAmount},
			{"tax_amount", l.TaxAmount},
			{"total_amount", l.TotalAmount},
		} {
			if a.value.IsNegative() {
				amountsOK = false
				add(apperrors.KindValidation, no, a.field, "amount %s is negative", a.value)
			}
			if a.value.GreaterThan(limit) {
				amountsOK = false
				add(apperrors.KindValidation, no, a.field, "amount %s exceeds the maximum %s", a.value, limit)
			}
			if !a.value.Equal(a.value.Truncate(v.Scale)) {
				amountsOK = false
				add(apperrors.KindValidation, no, a.field, "amount %s has more than %d decimal places", a.value, v.Scale)
			}
		}
		if amountsOK {
			if !l.TotalAmount.IsPositive() {
				add(apperrors.KindValidation, no, "total_amount", "total amount must be greater than zero")
			} else if sum := l.BaseAmount.Add(l.TaxAmount); !sum.Equal(l.TotalAmount) {
				add(apperrors.KindUnbalanced, no, "total_amount",
					"base %s + tax %s = %s, not total %s", l.BaseAmount, l.TaxAmount, sum, l.TotalAmount)
			}
		}

		if strings.TrimSpace(l.AccountCode) == "" {
			add(apperrors.KindValidation, no, "account_code", "account code is required")
		} else if v.Accounts != nil {
			v.checkAccount(l, no, add)
		}

		for _, ref := range []struct {
			kind  model.RefKind
			field string
			code  string
		}{
			{model.RefPartner, "partner_code", l.PartnerCode},
			{model.RefAnalysis, "analysis_code", l.AnalysisCode},
			{model.RefTax, "tax_code", l.TaxCode},
		} {
			if ref.code == "" || v.Refs == nil {
				continue
			}
			ok, err := v.Refs.ReferenceActive(ctx, ref.kind, ref.code)
			if err != nil {
				return fmt.Errorf("resolving %s %s: %w", ref.kind, ref.code, err)
			}
			if !ok {
				add(apperrors.KindReferenceNotFound, no, ref.field, "%s code %s does not exist or is inactive", ref.kind, ref.code)
			}
		}
	}

	for _, side := range []struct {
		name  string
		total decimal.Decimal
	}{{"debit", debit}, {"credit", credit}} {
		if side.total.GreaterThan(limit) {
			add(apperrors.KindValidation, 0, "lines", "%s total %s exceeds the maximum %s", side.name, side.total, limit)
		}
	}

	var delta *decimal.Decimal
	if sidesValid && len(e.Lines) > 0 && !debit.Equal(credit) {
		d := debit.Sub(credit)
		delta = &d
		add(apperrors.KindUnbalanced, 0, "lines", "debits %s != credits %s (delta %s)", debit, credit, d)
	}

	if err := apperrors.FromIssues(issues, delta); err != nil {
		return err
	}
	return nil
}

func (v Validator) checkAccount(l Line, no int, add func(apperrors.Kind, int, string, string, ...any)) {
	_, err := v.Accounts.ResolvePostable(l.AccountCode)
	switch {
	case errors.Is(err, accounts.ErrUnknownAccount):
		add(apperrors.KindReferenceNotFound, no, "account_code", "account %s does not exist", l.AccountCode)
		return
	case errors.Is(err, accounts.ErrInactiveAccount):
		add(apperrors.KindReferenceNotFound, no, "account_code", "account %s is inactive", l.AccountCode)
		return
	case errors.Is(err, accounts.ErrSummaryAccount):
		add(apperrors.KindValidation, no, "account_code", "account %s is a summary account and cannot be posted to", l.AccountCode)
		return
	}

	if l.SubAccountCode == "" {
		return
	}
	_, err = v.Accounts.ResolveSubAccount(l.AccountCode, l.SubAccountCode)
	switch {
	case errors.Is(err, accounts.ErrUnknownSubAccount):
		add(apperrors.KindReferenceNotFound, no, "sub_account_code", "sub-account %s does not exist under account %s", l.SubAccountCode, l.AccountCode)
	case errors.Is(err, accounts.ErrInactiveSubAccount):
		add(apperrors.KindReferenceNotFound, no, "sub_account_code", "sub-account %s of account %s is inactive", l.SubAccountCode, l.AccountCode)
	}
}

// journalLines converts input lines to model lines numbered from 1.
func journalLines(in []Line) []model.JournalLine {
	out := make([]model.JournalLine, len(in))
	for i, l := range in {
		out[i] = model.JournalLine{
			LineNo:         i + 1,
			Side:           l.Side,
			AccountCode:    l.AccountCode,
			SubAccountCode: l.SubAccountCode,
			PartnerCode:    l.PartnerCode,
			AnalysisCode:   l.AnalysisCode,
			TaxCode:        l.TaxCode,
			BaseAmount:     l.BaseAmount,
			TaxAmount:      l.TaxAmount,
			TotalAmount:    l.TotalAmount,
			Description:    l.Description,
		}
	}
	return out
}
