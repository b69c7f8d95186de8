package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the debit or credit side of a journal line.
type Side string

const (
	SideDebit  Side = "D"
	SideCredit Side = "C"
)

// ParseSide accepts "D"/"C" as well as "debit"/"credit".
func ParseSide(s string) (Side, error) {
	switch s {
	case "D", "d", "debit", "Debit", "DEBIT":
		return SideDebit, nil
	case "C", "c", "credit", "Credit", "CREDIT":
		return SideCredit, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Valid reports whether s is D or C.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Journal is a posted journal header together with its lines.
type Journal struct {
	Number      string
	Date        time.Time //nolint:revive // plain field name is clearest
	Description string
	TotalAmount decimal.Decimal // sum of debit-side line totals
	Lines       []JournalLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JournalLine is one line item of a journal.
type JournalLine struct {
	LineNo         int // 1-based
	Side           Side
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

// Totals returns the debit and credit sums of the journal's lines.
func (j Journal) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range j.Lines {
		switch l.Side {
		case SideDebit:
			debit = debit.Add(l.TotalAmount)
		case SideCredit:
			credit = credit.Add(l.TotalAmount)
		}
	}
	return debit, credit
}

// Movement holds posted sums for one account (and optionally one sub-account)
// split into before-period and in-period debit and credit totals.
type Movement struct {
	AccountCode    string
	SubAccountCode string // "" = postings without a sub-account
	OpeningDebit   decimal.Decimal
	OpeningCredit  decimal.Decimal
	PeriodDebit    decimal.Decimal
	PeriodCredit   decimal.Decimal
}
