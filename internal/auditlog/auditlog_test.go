package auditlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testRecord() Record {
	return Record{
		Timestamp:     testTime,
		Action:        ActionCreate,
		JournalNumber: "202501150000001",
		PostingDate:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:   decimal.RequireFromString("110000"),
		RequestID:     "req-1",
		Details:       "office supplies, March",
	}
}

func TestAppend_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.csv")
	l := New(path)
	require.NoError(t, l.Append(testRecord()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header+"\n"))

	recs, err := Read(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "202501150000001", recs[0].JournalNumber)
}

func TestAppend_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	l := New(path)
	require.NoError(t, l.Append(testRecord()))

	r2 := testRecord()
	r2.Action = ActionDelete
	r2.PostingDate = time.Time{}
	require.NoError(t, l.Append(r2))

	recs, err := Read(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ActionCreate, recs[0].Action)
	assert.Equal(t, ActionDelete, recs[1].Action)
	assert.True(t, recs[1].PostingDate.IsZero())
}

func TestRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	original := testRecord()
	require.NoError(t, New(path).Append(original))

	recs, err := Read(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got := recs[0]
	assert.True(t, got.Timestamp.Equal(original.Timestamp))
	assert.True(t, got.PostingDate.Equal(original.PostingDate))
	assert.True(t, got.TotalAmount.Equal(original.TotalAmount))
	assert.Equal(t, original.Details, got.Details)
	assert.Equal(t, original.RequestID, got.RequestID)
}

func TestRead_Missing(t *testing.T) {
	recs, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestAppend_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	l := New(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(testRecord()))
		}()
	}
	wg.Wait()

	recs, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, recs, 20)
}

func TestUnmarshalRecord_Errors(t *testing.T) {
	_, err := UnmarshalRecord([]string{"a"})
	assert.Error(t, err)

	row := MarshalRecord(testRecord())
	row[colTimestamp] = "yesterday"
	_, err = UnmarshalRecord(row)
	assert.Error(t, err)

	row = MarshalRecord(testRecord())
	row[colTotal] = "lots"
	_, err = UnmarshalRecord(row)
	assert.Error(t, err)
}
