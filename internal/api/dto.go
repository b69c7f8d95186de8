package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/trialbalance"
)

const dateLayout = "2006-01-02"

// JournalReq is the body of create, update and validate requests. Amounts
// are decimal strings.
type JournalReq struct {
	Date        string    `json:"date" binding:"required"`
	Description string    `json:"description"`
	Lines       []LineReq `json:"lines"`
}

// LineReq is one journal line. An empty tax_amount is zero; an empty
// total_amount is base + tax.
type LineReq struct {
	Side           string `json:"side"`
	AccountCode    string `json:"account_code"`
	SubAccountCode string `json:"sub_account_code,omitempty"`
	PartnerCode    string `json:"partner_code,omitempty"`
	AnalysisCode   string `json:"analysis_code,omitempty"`
	TaxCode        string `json:"tax_code,omitempty"`
	BaseAmount     string `json:"base_amount"`
	TaxAmount      string `json:"tax_amount,omitempty"`
	TotalAmount    string `json:"total_amount,omitempty"`
	Description    string `json:"description,omitempty"`
}

// toEntry converts the request. Unparsable fields become input issues that
// the engine reports together with its own findings.
func (r JournalReq) toEntry() journal.Entry {
	var issues []apperrors.Issue
	bad := func(line int, field, format string, args ...any) {
		issues = append(issues, apperrors.Issue{
			Kind:    apperrors.KindValidation,
			Line:    line,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	e := journal.Entry{Description: r.Description}
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		bad(0, "date", "expected YYYY-MM-DD, got %q", r.Date)
	}
	e.Date = d

	for i, lr := range r.Lines {
		n := i + 1
		side, err := model.ParseSide(lr.Side)
		if err != nil {
			// the validator reports the bad side with the rest of the line
			side = model.Side(lr.Side)
		}
		amount := func(field, s string) decimal.Decimal {
			if s == "" {
				return decimal.Zero
			}
			v, err := decimal.NewFromString(s)
			if err != nil {
				bad(n, field, "not a decimal amount: %q", s)
				return decimal.Zero
			}
			return v
		}
		base := amount("base_amount", lr.BaseAmount)
		tax := amount("tax_amount", lr.TaxAmount)
		total := base.Add(tax)
		if lr.TotalAmount != "" {
			total = amount("total_amount", lr.TotalAmount)
		}
		e.Lines = append(e.Lines, journal.Line{
			Side:           side,
			AccountCode:    lr.AccountCode,
			SubAccountCode: lr.SubAccountCode,
			PartnerCode:    lr.PartnerCode,
			AnalysisCode:   lr.AnalysisCode,
			TaxCode:        lr.TaxCode,
			BaseAmount:     base,
			TaxAmount:      tax,
			TotalAmount:    total,
			Description:    lr.Description,
		})
	}

	e.InputIssues = issues
	return e
}

// JournalResp is a posted journal.
type JournalResp struct {
	Number      string     `json:"number"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	TotalAmount string     `json:"total_amount"`
	Lines       []LineResp `json:"lines"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LineResp is one posted line.
type LineResp struct {
	LineNo         int    `json:"line_no"`
	Side           string `json:"side"`
	AccountCode    string `json:"account_code"`
	SubAccountCode string `json:"sub_account_code,omitempty"`
	PartnerCode    string `json:"partner_code,omitempty"`
	AnalysisCode   string `json:"analysis_code,omitempty"`
	TaxCode        string `json:"tax_code,omitempty"`
	BaseAmount     string `json:"base_amount"`
	TaxAmount      string `json:"tax_amount"`
	TotalAmount    string `json:"total_amount"`
	Description    string `json:"description,omitempty"`
}

func newJournalResp(j model.Journal, scale int32) JournalResp {
	resp := JournalResp{
		Number:      j.Number,
		Date:        j.Date.Format(dateLayout),
		Description: j.Description,
		TotalAmount: j.TotalAmount.StringFixed(scale),
		Lines:       make([]LineResp, 0, len(j.Lines)),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	for _, l := range j.Lines {
		resp.Lines = append(resp.Lines, LineResp{
			LineNo:         l.LineNo,
			Side:           string(l.Side),
			AccountCode:    l.AccountCode,
			SubAccountCode: l.SubAccountCode,
			PartnerCode:    l.PartnerCode,
			AnalysisCode:   l.AnalysisCode,
			TaxCode:        l.TaxCode,
			BaseAmount:     l.BaseAmount.StringFixed(scale),
			TaxAmount:      l.TaxAmount.StringFixed(scale),
			TotalAmount:    l.TotalAmount.StringFixed(scale),
			Description:    l.Description,
		})
	}
	return resp
}

// AmountsResp holds the four trial balance columns.
type AmountsResp struct {
	Opening string `json:"opening"`
	Debit   string `json:"debit"`
	Credit  string `json:"credit"`
	Closing string `json:"closing"`
}

func newAmountsResp(a trialbalance.Amounts, scale int32) AmountsResp {
	return AmountsResp{
		Opening: a.Opening.StringFixed(scale),
		Debit:   a.Debit.StringFixed(scale),
		Credit:  a.Credit.StringFixed(scale),
		Closing: a.Closing.StringFixed(scale),
	}
}

// RowResp is one trial balance row.
type RowResp struct {
	AccountType    string `json:"account_type"`
	AccountCode    string `json:"account_code"`
	AccountName    string `json:"account_name"`
	SubAccountCode string `json:"sub_account_code,omitempty"`
	SubAccountName string `json:"sub_account_name,omitempty"`
	Depth          int    `json:"depth"`
	Detail         bool   `json:"detail"`
	SubAccount     bool   `json:"sub_account,omitempty"`
	AmountsResp
}

// SubtotalResp is the subtotal of one account type.
type SubtotalResp struct {
	AccountType string `json:"account_type"`
	AmountsResp
}

// TrialBalanceResp is a computed trial balance.
type TrialBalanceResp struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Rows       []RowResp      `json:"rows"`
	Subtotals  []SubtotalResp `json:"subtotals"`
	GrandTotal AmountsResp    `json:"grand_total"`
}

func newTrialBalanceResp(r *trialbalance.Report, scale int32) TrialBalanceResp {
	resp := TrialBalanceResp{
		From:       r.From.Format(dateLayout),
		To:         r.To.Format(dateLayout),
		Rows:       make([]RowResp, 0, len(r.Rows)),
		Subtotals:  make([]SubtotalResp, 0, len(r.Subtotals)),
		GrandTotal: newAmountsResp(r.GrandTotal, scale),
	}
	for _, row := range r.Rows {
		resp.Rows = append(resp.Rows, RowResp{
			AccountType:    string(row.AccountType),
			AccountCode:    row.AccountCode,
			AccountName:    row.AccountName,
			SubAccountCode: row.SubAccountCode,
			SubAccountName: row.SubAccountName,
			Depth:          row.Depth,
			Detail:         row.Detail,
			SubAccount:     row.SubAccount,
			AmountsResp:    newAmountsResp(row.Amounts, scale),
		})
	}
	for _, st := range r.Subtotals {
		resp.Subtotals = append(resp.Subtotals, SubtotalResp{
			AccountType: string(st.AccountType),
			AmountsResp: newAmountsResp(st.Amounts, scale),
		})
	}
	return resp
}

// AccountResp is one node of the chart of accounts.
type AccountResp struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ParentCode string `json:"parent_code,omitempty"`
	Depth      int    `json:"depth"`
	Detail     bool   `json:"detail"`
	Active     bool   `json:"active"`
}

// ErrorResp is the body of every non-2xx response.
type ErrorResp struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind,omitempty"`
	Message string            `json:"message,omitempty"`
	Issues  []apperrors.Issue `json:"issues,omitempty"`
	Delta   string            `json:"delta,omitempty"`
}
