package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromIssues_KindPriority(t *testing.T) {
	tests := []struct {
		name  string
		kinds []Kind
		want  Kind
	}{
		{"unbalanced only", []Kind{KindUnbalanced}, KindUnbalanced},
		{"reference beats unbalanced", []Kind{KindUnbalanced, KindReferenceNotFound}, KindReferenceNotFound},
		{"validation beats all", []Kind{KindReferenceNotFound, KindValidation, KindUnbalanced}, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var issues []Issue
			for _, k := range tt.kinds {
				issues = append(issues, Issue{Kind: k, Field: "x", Message: "bad"})
			}
			err := FromIssues(issues, nil)
			require.NotNil(t, err)
			assert.Equal(t, tt.want, err.Kind)
		})
	}

	assert.Nil(t, FromIssues(nil, nil))
}

func TestError_IsMatchesIssueKinds(t *testing.T) {
	delta := decimal.NewFromInt(20000)
	err := FromIssues([]Issue{
		{Kind: KindReferenceNotFound, Line: 2, Field: "account_code", Message: "unknown account 9999"},
		{Kind: KindUnbalanced, Field: "lines", Message: "debits != credits"},
	}, &delta)

	var wrapped error = fmt.Errorf("creating journal: %w", err)
	assert.ErrorIs(t, wrapped, ErrReferenceNotFound)
	assert.ErrorIs(t, wrapped, ErrUnbalanced)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	require.NotNil(t, e.Delta)
	assert.True(t, e.Delta.Equal(delta))
	assert.Equal(t, KindReferenceNotFound, KindOf(wrapped))
}

func TestWrap_HidesCause(t *testing.T) {
	cause := errors.New(`pq: duplicate key value violates unique constraint "journal_header_pkey"`)
	err := Wrap(KindPersistence, cause, "storing journal")

	assert.NotContains(t, err.Error(), "pq:")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestIssueString(t *testing.T) {
	assert.Equal(t, "line 3 total_amount: must not be negative",
		Issue{Line: 3, Field: "total_amount", Message: "must not be negative"}.String())
	assert.Equal(t, "lines: at least two lines required",
		Issue{Field: "lines", Message: "at least two lines required"}.String())
}
