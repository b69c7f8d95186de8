package id

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// SeqWidth is the number of digits in the per-date counter suffix.
	SeqWidth = 7
	// MaxSeq is the largest counter value that fits in SeqWidth digits.
	MaxSeq = 9_999_999

	dateLayout = "20060102"
	dateWidth  = len(dateLayout)
)

// FormatJournalNumber returns a journal number like "202401150000001".
func FormatJournalNumber(date time.Time, seq int64) (string, error) {
	if seq < 1 || seq > MaxSeq {
		return "", fmt.Errorf("sequence %d out of range 1..%d", seq, MaxSeq)
	}
	return fmt.Sprintf("%s%0*d", date.Format(dateLayout), SeqWidth, seq), nil
}

// ParseJournalNumber splits "202401150000001" into its date and sequence.
func ParseJournalNumber(number string) (time.Time, int64, error) {
	if len(number) != dateWidth+SeqWidth {
		return time.Time{}, 0, fmt.Errorf("invalid journal number %q: want %d digits", number, dateWidth+SeqWidth)
	}
	date, err := time.Parse(dateLayout, number[:dateWidth])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid date in journal number %q: %w", number, err)
	}
	seq, err := strconv.ParseInt(number[dateWidth:], 10, 64)
	if err != nil || seq < 1 {
		return time.Time{}, 0, fmt.Errorf("invalid sequence in journal number %q", number)
	}
	return date, seq, nil
}

// Valid reports whether number is a well-formed journal number.
func Valid(number string) bool {
	_, _, err := ParseJournalNumber(number)
	return err == nil
}

// DayKey returns the counter key for a posting date ("20240115").
func DayKey(date time.Time) string {
	return date.Format(dateLayout)
}
