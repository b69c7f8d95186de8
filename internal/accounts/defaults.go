package accounts

import "github.com/cleared-dev/ledger/internal/model"

// DefaultChart returns the chart of accounts seeded by `ledger init`.
// Codes are hierarchical: four-digit summary groups with detail accounts below.
func DefaultChart() []model.Account {
	return []model.Account{
		{Code: "1000", Name: "Assets", Type: model.AccountTypeAsset, Active: true},
		{Code: "1100", Name: "Current Assets", Type: model.AccountTypeAsset, ParentCode: "1000", Active: true},
		{Code: "1110", Name: "Cash", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "1120", Name: "Bank Deposits", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "1130", Name: "Accounts Receivable", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "1140", Name: "Input Tax Receivable", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "1190", Name: "Suspense", Type: model.AccountTypeAsset, ParentCode: "1100", Detail: true, Active: true},
		{Code: "1500", Name: "Fixed Assets", Type: model.AccountTypeAsset, ParentCode: "1000", Detail: true, Active: true},

		{Code: "2000", Name: "Liabilities", Type: model.AccountTypeLiability, Active: true},
		{Code: "2100", Name: "Accounts Payable", Type: model.AccountTypeLiability, ParentCode: "2000", Detail: true, Active: true},
		{Code: "2300", Name: "Taxes Payable", Type: model.AccountTypeLiability, ParentCode: "2000", Active: true},
		{Code: "2301", Name: "Output Tax Payable", Type: model.AccountTypeLiability, ParentCode: "2300", Detail: true, Active: true},
		{Code: "2302", Name: "Withholding Tax Payable", Type: model.AccountTypeLiability, ParentCode: "2300", Detail: true, Active: true},

		{Code: "3000", Name: "Equity", Type: model.AccountTypeEquity, Active: true},
		{Code: "3100", Name: "Share Capital", Type: model.AccountTypeEquity, ParentCode: "3000", Detail: true, Active: true},
		{Code: "3200", Name: "Retained Earnings", Type: model.AccountTypeEquity, ParentCode: "3000", Detail: true, Active: true},

		{Code: "4000", Name: "Revenue", Type: model.AccountTypeRevenue, Active: true},
		{Code: "4110", Name: "Sales", Type: model.AccountTypeRevenue, ParentCode: "4000", Detail: true, Active: true},
		{Code: "4120", Name: "Service Revenue", Type: model.AccountTypeRevenue, ParentCode: "4000", Detail: true, Active: true},

		{Code: "5000", Name: "Expenses", Type: model.AccountTypeExpense, Active: true},
		{Code: "5110", Name: "Cost of Goods Sold", Type: model.AccountTypeExpense, ParentCode: "5000", Detail: true, Active: true},
		{Code: "5210", Name: "Rent", Type: model.AccountTypeExpense, ParentCode: "5000", Detail: true, Active: true},
		{Code: "5220", Name: "Software & SaaS", Type: model.AccountTypeExpense, ParentCode: "5000", Detail: true, Active: true},
		{Code: "5230", Name: "Professional Services", Type: model.AccountTypeExpense, ParentCode: "5000", Detail: true, Active: true},
	}
}
