// Package importer turns bank statement CSV exports into posted journals.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
)

// Transaction is one bank statement row. A positive Amount is money
// received into the bank account.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
	Type        string
}

// Parser converts a bank CSV file into Transactions.
type Parser interface {
	Parse(r io.Reader) ([]Transaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&SimpleParser{})
	return r
}

// Mapping names the accounts a statement posts against.
type Mapping struct {
	BankAccount    string
	BankSubAccount string
	// ContraAccount receives the other side, typically a suspense account
	// that is reclassified later.
	ContraAccount string
}

// Entry builds the two-line journal for txn: receipts debit the bank,
// payments credit it. Zero amounts yield ok == false.
func (m Mapping) Entry(txn Transaction) (e journal.Entry, ok bool) {
	if txn.Amount.IsZero() {
		return journal.Entry{}, false
	}
	amount := txn.Amount.Abs()
	bank := journal.Line{
		Side:           model.SideDebit,
		AccountCode:    m.BankAccount,
		SubAccountCode: m.BankSubAccount,
		BaseAmount:     amount,
		TaxAmount:      decimal.Zero,
		TotalAmount:    amount,
		Description:    txn.Reference,
	}
	contra := journal.Line{
		Side:        model.SideCredit,
		AccountCode: m.ContraAccount,
		BaseAmount:  amount,
		TaxAmount:   decimal.Zero,
		TotalAmount: amount,
	}
	if txn.Amount.IsNegative() {
		bank.Side, contra.Side = model.SideCredit, model.SideDebit
	}
	return journal.Entry{
		Date:        txn.Date,
		Description: truncate(txn.Description, journal.MaxDescription),
		Lines:       []journal.Line{bank, contra},
	}, true
}

// Poster creates journals. *journal.Service satisfies it.
type Poster interface {
	Create(ctx context.Context, e journal.Entry) (string, error)
}

// Failure is a transaction the ledger rejected.
type Failure struct {
	Reference string
	Err       error
}

// Result summarises an import.
type Result struct {
	Posted  []string
	Skipped int
	Failed  []Failure
}

// Post creates one journal per non-zero transaction. Rejected input is
// collected in Result.Failed and the import continues; any other error
// stops it.
func Post(ctx context.Context, p Poster, txns []Transaction, m Mapping) (Result, error) {
	var res Result
	for _, txn := range txns {
		e, ok := m.Entry(txn)
		if !ok {
			res.Skipped++
			continue
		}
		number, err := p.Create(ctx, e)
		if err != nil {
			if rejected(err) {
				res.Failed = append(res.Failed, Failure{Reference: txn.Reference, Err: err})
				continue
			}
			return res, fmt.Errorf("posting %s: %w", txn.Reference, err)
		}
		res.Posted = append(res.Posted, number)
	}
	return res, nil
}

func rejected(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrReferenceNotFound) ||
		errors.Is(err, apperrors.ErrUnbalanced)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// ImportDir is the subdirectory scanned for statement CSVs.
const ImportDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, ImportDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, ImportDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
