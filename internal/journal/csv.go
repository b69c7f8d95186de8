package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Header is the CSV header for journal line files.
const Header = "side,account_code,sub_account_code,partner_code,analysis_code,tax_code,base_amount,tax_amount,total_amount,description"

const (
	numFields   = 10
	colSide     = 0
	colAccount  = 1
	colSub      = 2
	colPartner  = 3
	colAnalysis = 4
	colTax      = 5
	colBase     = 6
	colTaxAmt   = 7
	colTotal    = 8
	colDesc     = 9
)

// ReadLines reads journal lines from CSV with a header row. An empty
// tax_amount is zero; an empty total_amount is base + tax.
func ReadLines(r io.Reader) ([]Line, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var lines []Line
	for i, rec := range records[1:] {
		l, err := UnmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// WriteLines writes a journal's lines to CSV, including the header.
func WriteLines(w io.Writer, lines []model.JournalLine) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, l := range lines {
		if err := cw.Write(MarshalLine(l)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts a posted line to a CSV row.
func MarshalLine(l model.JournalLine) []string {
	row := make([]string, numFields)
	row[colSide] = string(l.Side)
	row[colAccount] = l.AccountCode
	row[colSub] = l.SubAccountCode
	row[colPartner] = l.PartnerCode
	row[colAnalysis] = l.AnalysisCode
	row[colTax] = l.TaxCode
	row[colBase] = l.BaseAmount.String()
	row[colTaxAmt] = l.TaxAmount.String()
	row[colTotal] = l.TotalAmount.String()
	row[colDesc] = l.Description
	return row
}

// UnmarshalLine converts a CSV row to an input Line.
func UnmarshalLine(record []string) (Line, error) {
	if len(record) != numFields {
		return Line{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	side, err := model.ParseSide(record[colSide])
	if err != nil {
		return Line{}, err
	}

	base, err := parseAmount("base_amount", record[colBase])
	if err != nil {
		return Line{}, err
	}
	tax, err := parseAmount("tax_amount", record[colTaxAmt])
	if err != nil {
		return Line{}, err
	}
	total := base.Add(tax)
	if record[colTotal] != "" {
		total, err = parseAmount("total_amount", record[colTotal])
		if err != nil {
			return Line{}, err
		}
	}

	return Line{
		Side:           side,
		AccountCode:    record[colAccount],
		SubAccountCode: record[colSub],
		PartnerCode:    record[colPartner],
		AnalysisCode:   record[colAnalysis],
		TaxCode:        record[colTax],
		BaseAmount:     base,
		TaxAmount:      tax,
		TotalAmount:    total,
		Description:    record[colDesc],
	}, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d, nil
}
