package model

import "fmt"

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every account type in report order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// ParseAccountType converts a string to an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown account type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return t.Rank() >= 0
}

// Rank is the position of t in report order, or -1 for unknown types.
func (t AccountType) Rank() int {
	for i, at := range AccountTypes {
		if at == t {
			return i
		}
	}
	return -1
}

// NormalSide is the side on which the account's balance increases.
// Asset and expense accounts are debit-normal; the rest are credit-normal.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Account is a node in the chart of accounts.
type Account struct {
	Code       string
	Name       string
	Type       AccountType
	ParentCode string // "" = top-level
	Detail     bool   // postings may target this account directly
	Active     bool
	SortOrder  int
}

// SubAccount is a secondary dimension nested under exactly one account.
type SubAccount struct {
	AccountCode string
	Code        string
	Name        string
	Active      bool
}

// RefKind names an auxiliary reference dimension owned by external master data.
type RefKind string

const (
	RefPartner  RefKind = "partner"
	RefAnalysis RefKind = "analysis"
	RefTax      RefKind = "tax"
)

// Reference is a partner, analysis code or tax code known to the ledger.
type Reference struct {
	Kind   RefKind
	Code   string
	Name   string
	Active bool
}
