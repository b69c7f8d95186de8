// Package auditlog appends posted journal changes to a CSV audit trail.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Actions recorded in the trail.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Record is one row in the audit trail.
type Record struct {
	Timestamp     time.Time
	Action        string
	JournalNumber string
	PostingDate   time.Time
	TotalAmount   decimal.Decimal
	RequestID     string
	Details       string
}

// Header is the CSV header for the audit file.
const Header = "timestamp,action,journal_number,posting_date,total_amount,request_id,details"

const (
	numFields      = 7
	dateFormat     = "2006-01-02"
	colTimestamp   = 0
	colAction      = 1
	colNumber      = 2
	colPostingDate = 3
	colTotal       = 4
	colRequestID   = 5
	colDetails     = 6
)

// MarshalRecord converts a Record to a CSV row.
func MarshalRecord(r Record) []string {
	row := make([]string, numFields)
	row[colTimestamp] = r.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colAction] = r.Action
	row[colNumber] = r.JournalNumber
	if !r.PostingDate.IsZero() {
		row[colPostingDate] = r.PostingDate.Format(dateFormat)
	}
	row[colTotal] = r.TotalAmount.String()
	row[colRequestID] = r.RequestID
	row[colDetails] = r.Details
	return row
}

// UnmarshalRecord converts a CSV row to a Record.
func UnmarshalRecord(record []string) (Record, error) {
	if len(record) != numFields {
		return Record{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return Record{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	var posting time.Time
	if record[colPostingDate] != "" {
		posting, err = time.Parse(dateFormat, record[colPostingDate])
		if err != nil {
			return Record{}, fmt.Errorf("parsing posting_date %q: %w", record[colPostingDate], err)
		}
	}

	total := decimal.Zero
	if record[colTotal] != "" {
		total, err = decimal.NewFromString(record[colTotal])
		if err != nil {
			return Record{}, fmt.Errorf("parsing total_amount %q: %w", record[colTotal], err)
		}
	}

	return Record{
		Timestamp:     ts,
		Action:        record[colAction],
		JournalNumber: record[colNumber],
		PostingDate:   posting,
		TotalAmount:   total,
		RequestID:     record[colRequestID],
		Details:       record[colDetails],
	}, nil
}

// Log is an append-only CSV file. It is safe for concurrent use within one
// process.
type Log struct {
	mu   sync.Mutex
	path string
}

// New returns a Log writing to path. The file and its directory are created
// on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes records, adding the header if the file is new.
func (l *Log) Append(records ...Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating audit dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, r := range records {
		if err := cw.Write(MarshalRecord(r)); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all records. A missing file yields no records.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readRecords(f)
}

func readRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	var out []Record
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
