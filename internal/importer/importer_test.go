package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
)

func parseChaseFixture(t *testing.T) []Transaction {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "chase_checking.csv"))
	require.NoError(t, err)
	defer f.Close()

	txns, err := (&ChaseParser{}).Parse(f)
	require.NoError(t, err)
	return txns
}

func TestChaseParser_Parse(t *testing.T) {
	txns := parseChaseFixture(t)
	require.Len(t, txns, 6)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, "-4.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, "ACH_DEBIT", txns[0].Type)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), txns[0].Date)
	assert.Equal(t, "chase_20250103_GITHUBPROS", txns[0].Reference)

	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.Equal(t, "3500.00", txns[3].Amount.StringFixed(2))
	assert.Equal(t, 22, txns[5].Date.Day())
}

func TestChaseParser_Errors(t *testing.T) {
	header := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"
	p := &ChaseParser{}

	txns, err := p.Parse(strings.NewReader(header))
	require.NoError(t, err)
	assert.Nil(t, txns)

	_, err = p.Parse(strings.NewReader(header + "DEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n"))
	assert.ErrorContains(t, err, "parsing date")

	_, err = p.Parse(strings.NewReader(header + "DEBIT,01/03/2025,desc,NOTANUMBER,ACH_DEBIT,100.00,\n"))
	assert.ErrorContains(t, err, "parsing amount")
}

func TestSimpleParser(t *testing.T) {
	in := "date,description,amount\n2024-03-01,Card refund,12.50\n2024-03-02, Coffee,-3.20\n"
	txns, err := (&SimpleParser{}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "stmt_20240301_Cardrefund", txns[0].Reference)
	assert.Equal(t, "Coffee", txns[1].Description)
	assert.True(t, txns[1].Amount.IsNegative())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("chase"))
	r.Register(&ChaseParser{})
	assert.NotNil(t, r.Get("CHASE"))
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })

	d := DefaultRegistry()
	assert.NotNil(t, d.Get("chase"))
	assert.NotNil(t, d.Get("simple"))
}

var mapping = Mapping{BankAccount: "1120", BankSubAccount: "001", ContraAccount: "1190"}

func TestMapping_Entry(t *testing.T) {
	txns := parseChaseFixture(t)

	e, ok := mapping.Entry(txns[0])
	require.True(t, ok)
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", e.Description)
	require.Len(t, e.Lines, 2)
	assert.Equal(t, model.SideCredit, e.Lines[0].Side)
	assert.Equal(t, "1120", e.Lines[0].AccountCode)
	assert.Equal(t, "001", e.Lines[0].SubAccountCode)
	assert.True(t, e.Lines[0].TotalAmount.Equal(decimal.RequireFromString("4")))
	assert.Equal(t, model.SideDebit, e.Lines[1].Side)
	assert.Equal(t, "1190", e.Lines[1].AccountCode)

	e, ok = mapping.Entry(txns[3])
	require.True(t, ok)
	assert.Equal(t, model.SideDebit, e.Lines[0].Side)
	assert.Equal(t, model.SideCredit, e.Lines[1].Side)

	_, ok = mapping.Entry(Transaction{Amount: decimal.Zero})
	assert.False(t, ok)

	e, _ = mapping.Entry(Transaction{Amount: decimal.NewFromInt(1), Description: strings.Repeat("x", 300)})
	assert.Len(t, e.Description, journal.MaxDescription)
}

type fakePoster struct {
	posted []journal.Entry
	fail   map[string]error
}

func (p *fakePoster) Create(_ context.Context, e journal.Entry) (string, error) {
	if err := p.fail[e.Description]; err != nil {
		return "", err
	}
	p.posted = append(p.posted, e)
	return e.Description, nil
}

func TestPost(t *testing.T) {
	txns := []Transaction{
		{Description: "a", Amount: decimal.NewFromInt(5), Reference: "r1"},
		{Description: "zero", Amount: decimal.Zero, Reference: "r2"},
		{Description: "bad", Amount: decimal.NewFromInt(-5), Reference: "r3"},
		{Description: "b", Amount: decimal.NewFromInt(-7), Reference: "r4"},
	}
	p := &fakePoster{fail: map[string]error{
		"bad": apperrors.New(apperrors.KindReferenceNotFound, "account 1190 not found"),
	}}

	res, err := Post(context.Background(), p, txns, mapping)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Posted)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "r3", res.Failed[0].Reference)
}

func TestPost_StopsOnStorageFailure(t *testing.T) {
	txns := []Transaction{
		{Description: "down", Amount: decimal.NewFromInt(5), Reference: "r1"},
		{Description: "b", Amount: decimal.NewFromInt(5), Reference: "r2"},
	}
	p := &fakePoster{fail: map[string]error{
		"down": apperrors.Wrap(apperrors.KindPersistence, errors.New("disk full"), "storage failure during create"),
	}}

	res, err := Post(context.Background(), p, txns, mapping)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence))
	assert.Empty(t, res.Posted)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, files)

	importDir := filepath.Join(dir, ImportDir)
	require.NoError(t, os.MkdirAll(filepath.Join(importDir, "processed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "processed", "old.csv"), []byte("data"), 0o644))

	files, err = Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, ImportDir)
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}
