package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/ledger/internal/model"
)

const (
	numFields    = 7
	colCode      = 0
	colName      = 1
	colType      = 2
	colParent    = 3
	colDetail    = 4
	colActive    = 5
	colSortOrder = 6

	numSubFields  = 4
	colSubAccount = 0
	colSubCode    = 1
	colSubName    = 2
	colSubActive  = 3

	numRefFields = 4
	colRefKind   = 0
	colRefCode   = 1
	colRefName   = 2
	colRefActive = 3
)

// ReadAccounts reads a chart-of-accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	records, err := readAll(r, numFields)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	var accounts []model.Account
	for i, rec := range records {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"code", "name", "type", "parent_code", "detail", "active", "sort_order"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colParent] = acct.ParentCode
	row[colDetail] = strconv.FormatBool(acct.Detail)
	row[colActive] = strconv.FormatBool(acct.Active)
	row[colSortOrder] = strconv.Itoa(acct.SortOrder)
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colCode] == "" {
		return model.Account{}, fmt.Errorf("empty account code")
	}

	accountType, err := model.ParseAccountType(record[colType])
	if err != nil {
		return model.Account{}, err
	}

	detail, err := parseBool(record[colDetail], true)
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing detail %q: %w", record[colDetail], err)
	}
	active, err := parseBool(record[colActive], true)
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
	}

	var sortOrder int
	if record[colSortOrder] != "" {
		sortOrder, err = strconv.Atoi(record[colSortOrder])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing sort_order %q: %w", record[colSortOrder], err)
		}
	}

	return model.Account{
		Code:       record[colCode],
		Name:       record[colName],
		Type:       accountType,
		ParentCode: record[colParent],
		Detail:     detail,
		Active:     active,
		SortOrder:  sortOrder,
	}, nil
}

// ReadSubAccounts reads a sub-account CSV (account_code,code,name,active).
func ReadSubAccounts(r io.Reader) ([]model.SubAccount, error) {
	records, err := readAll(r, numSubFields)
	if err != nil {
		return nil, fmt.Errorf("reading sub-accounts CSV: %w", err)
	}

	var subs []model.SubAccount
	for i, rec := range records {
		active, err := parseBool(rec[colSubActive], true)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing active %q: %w", i+2, rec[colSubActive], err)
		}
		if rec[colSubAccount] == "" || rec[colSubCode] == "" {
			return nil, fmt.Errorf("row %d: account_code and code are required", i+2)
		}
		subs = append(subs, model.SubAccount{
			AccountCode: rec[colSubAccount],
			Code:        rec[colSubCode],
			Name:        rec[colSubName],
			Active:      active,
		})
	}
	return subs, nil
}

// ReadReferences reads partner, analysis and tax codes (kind,code,name,active).
func ReadReferences(r io.Reader) ([]model.Reference, error) {
	records, err := readAll(r, numRefFields)
	if err != nil {
		return nil, fmt.Errorf("reading references CSV: %w", err)
	}

	var refs []model.Reference
	for i, rec := range records {
		kind := model.RefKind(rec[colRefKind])
		switch kind {
		case model.RefPartner, model.RefAnalysis, model.RefTax:
		default:
			return nil, fmt.Errorf("row %d: unknown reference kind %q", i+2, rec[colRefKind])
		}
		if rec[colRefCode] == "" {
			return nil, fmt.Errorf("row %d: empty code", i+2)
		}
		active, err := parseBool(rec[colRefActive], true)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing active %q: %w", i+2, rec[colRefActive], err)
		}
		refs = append(refs, model.Reference{
			Kind:   kind,
			Code:   rec[colRefCode],
			Name:   rec[colRefName],
			Active: active,
		})
	}
	return refs, nil
}

// readAll reads every record and drops the header row.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func parseBool(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}
