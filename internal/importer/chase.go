package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChaseParser parses Chase checking account CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV.
func (p *ChaseParser) Parse(r io.Reader) ([]Transaction, error) {
	records, err := readRecords(r, chaseNumFields)
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	var txns []Transaction
	for i, rec := range records {
		date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[chaseColDate], err)
		}
		amount, err := decimal.NewFromString(rec[chaseColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", i+2, rec[chaseColAmount], err)
		}
		desc := rec[chaseColDesc]
		txns = append(txns, Transaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Reference:   makeRef("chase", date, desc),
			Type:        rec[chaseColType],
		})
	}
	return txns, nil
}

// SimpleParser reads date,description,amount with ISO dates, for banks
// without a dedicated parser.
type SimpleParser struct{}

// Format returns the parser name.
func (p *SimpleParser) Format() string { return "simple" }

// Parse reads a date,description,amount CSV with a header row.
func (p *SimpleParser) Parse(r io.Reader) ([]Transaction, error) {
	records, err := readRecords(r, 3)
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}

	var txns []Transaction
	for i, rec := range records {
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[0], err)
		}
		amount, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", i+2, rec[2], err)
		}
		txns = append(txns, Transaction{
			Date:        date,
			Description: rec[1],
			Amount:      amount,
			Reference:   makeRef("stmt", date, rec[1]),
		})
	}
	return txns, nil
}

// readRecords reads every record and drops the header row.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}

// makeRef creates a reference like chase_20250103_GITHUBPROS.
func makeRef(source string, date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("%s_%s_%s", source, date.Format("20060102"), prefix)
}
