// Package journal implements the posting engine: validated, atomically
// written double-entry journals.
package journal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/metrics"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/sequence"
	"github.com/cleared-dev/ledger/internal/store"
)

// DefaultRetries is how many times a conflicting posting transaction is retried.
const DefaultRetries = 3

// Auditor receives a record for every committed change.
type Auditor interface {
	Append(records ...auditlog.Record) error
}

// Service provides the journal operations.
type Service struct {
	store   store.Store
	alloc   sequence.Allocator
	logger  *zap.Logger
	metrics *metrics.Metrics
	audit   Auditor
	scale   int32
	retries int
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records operation counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor appends committed changes to a.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.audit = a }
}

// WithScale sets the number of decimal places accepted per amount.
func WithScale(scale int32) Option {
	return func(s *Service) { s.scale = scale }
}

// WithRetries sets how often a transaction is retried after a write conflict.
func WithRetries(n int) Option {
	return func(s *Service) { s.retries = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a journal Service.
func NewService(st store.Store, alloc sequence.Allocator, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		alloc:   alloc,
		logger:  logger,
		scale:   2,
		retries: DefaultRetries,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates e and posts it under a newly allocated journal number.
// Nothing is allocated or written when validation fails.
func (s *Service) Create(ctx context.Context, e Entry) (number string, err error) {
	start := s.now()
	defer func() { s.observe("create", start, err) }()

	if err := s.validate(ctx, e); err != nil {
		return "", err
	}

	now := s.now().UTC()
	j := &model.Journal{
		Date:        dateOnly(e.Date),
		Description: e.Description,
		Lines:       journalLines(e.Lines),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	j.TotalAmount, _ = j.Totals()

	err = s.inTx(ctx, func(tx store.Tx) error {
		n, err := s.alloc.Next(ctx, tx, j.Date)
		if err != nil {
			return err
		}
		j.Number = n
		return tx.InsertJournal(ctx, j)
	})
	if err != nil {
		return "", s.storeError(ctx, "create", "", err)
	}

	logging.For(ctx, s.logger).Info("journal posted",
		zap.String("journal_number", j.Number),
		zap.String("posting_date", j.Date.Format("2006-01-02")),
		zap.String("total", j.TotalAmount.String()),
		zap.Int("lines", len(j.Lines)),
	)
	s.record(ctx, auditlog.ActionCreate, j)
	return j.Number, nil
}

// Update validates e and replaces the header and every line of an existing
// journal in one transaction. The journal keeps its number even when the
// posting date changes.
func (s *Service) Update(ctx context.Context, number string, e Entry) (err error) {
	start := s.now()
	defer func() { s.observe("update", start, err) }()

	if !id.Valid(number) {
		return apperrors.New(apperrors.KindNotFound, "journal %s not found", number)
	}
	if err := s.validate(ctx, e); err != nil {
		return err
	}

	j := &model.Journal{
		Number:      number,
		Date:        dateOnly(e.Date),
		Description: e.Description,
		Lines:       journalLines(e.Lines),
		UpdatedAt:   s.now().UTC(),
	}
	j.TotalAmount, _ = j.Totals()

	err = s.inTx(ctx, func(tx store.Tx) error {
		return tx.ReplaceJournal(ctx, j)
	})
	if err != nil {
		return s.storeError(ctx, "update", number, err)
	}

	logging.For(ctx, s.logger).Info("journal updated",
		zap.String("journal_number", number),
		zap.String("total", j.TotalAmount.String()),
	)
	s.record(ctx, auditlog.ActionUpdate, j)
	return nil
}

// Delete removes a journal and all of its lines.
func (s *Service) Delete(ctx context.Context, number string) (err error) {
	start := s.now()
	defer func() { s.observe("delete", start, err) }()

	j, err := s.Get(ctx, number)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx store.Tx) error {
		return tx.DeleteJournal(ctx, number)
	})
	if err != nil {
		return s.storeError(ctx, "delete", number, err)
	}

	logging.For(ctx, s.logger).Info("journal deleted", zap.String("journal_number", number))
	s.record(ctx, auditlog.ActionDelete, j)
	return nil
}

// Get returns a journal with its lines.
func (s *Service) Get(ctx context.Context, number string) (*model.Journal, error) {
	if !id.Valid(number) {
		return nil, apperrors.New(apperrors.KindNotFound, "journal %s not found", number)
	}
	j, err := s.store.GetJournal(ctx, number)
	if err != nil {
		return nil, s.storeError(ctx, "get", number, err)
	}
	return j, nil
}

// List returns the journals dated within [from, to].
func (s *Service) List(ctx context.Context, from, to time.Time) ([]model.Journal, error) {
	from, to = dateOnly(from), dateOnly(to)
	if from.After(to) {
		return nil, apperrors.New(apperrors.KindInvalidRange, "from %s is after to %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	list, err := s.store.ListJournals(ctx, from, to)
	if err != nil {
		return nil, s.storeError(ctx, "list", "", err)
	}
	return list, nil
}

// Validate checks e without writing anything.
func (s *Service) Validate(ctx context.Context, e Entry) error {
	return s.validate(ctx, e)
}

func (s *Service) validate(ctx context.Context, e Entry) error {
	ix, err := accounts.Load(ctx, s.store)
	if err != nil {
		logging.For(ctx, s.logger).Error("loading chart of accounts", zap.Error(err))
		return apperrors.Wrap(apperrors.KindPersistence, err, "chart of accounts unavailable")
	}

	v := Validator{Accounts: ix, Refs: s.store, Scale: s.scale}
	err = v.Validate(ctx, e)
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		for _, is := range appErr.Issues {
			s.metrics.ValidationIssue(string(is.Kind))
		}
		return appErr
	}
	logging.For(ctx, s.logger).Error("resolving references", zap.Error(err))
	return apperrors.Wrap(apperrors.KindPersistence, err, "reference data unavailable")
}

// inTx runs fn in a transaction, retrying when the store reports a write
// conflict.
func (s *Service) inTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.store.InTx(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConflict) || attempt >= s.retries {
			return err
		}
		s.metrics.TxRetry()
		logging.For(ctx, s.logger).Debug("retrying posting transaction",
			zap.Int("attempt", attempt+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
}

// storeError maps a storage failure to an *apperrors.Error and logs the
// cause. Driver text never reaches the caller.
func (s *Service) storeError(ctx context.Context, op, number string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, err, "journal %s not found", number)
	case errors.Is(err, sequence.ErrExhausted):
		logging.For(ctx, s.logger).Warn("journal number allocation exhausted", zap.String("op", op), zap.Error(err))
		return apperrors.Wrap(apperrors.KindSequenceExhausted, err, "no journal number available, retry later")
	case errors.Is(err, store.ErrConflict):
		logging.For(ctx, s.logger).Warn("posting conflict after retries", zap.String("op", op), zap.Error(err))
		return apperrors.Wrap(apperrors.KindSequenceConflict, err, "concurrent update conflict, retry later")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.KindPersistence, err, "%s cancelled", op)
	}

	logging.For(ctx, s.logger).Error("storage failure",
		zap.String("op", op),
		zap.String("journal_number", number),
		zap.Error(err),
	)
	return apperrors.Wrap(apperrors.KindPersistence, err, "storage failure during %s", op)
}

func (s *Service) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.JournalOp(op, outcome, s.now().Sub(start))
}

func (s *Service) record(ctx context.Context, action string, j *model.Journal) {
	if s.audit == nil {
		return
	}
	err := s.audit.Append(auditlog.Record{
		Timestamp:     s.now().UTC(),
		Action:        action,
		JournalNumber: j.Number,
		PostingDate:   j.Date,
		TotalAmount:   j.TotalAmount,
		RequestID:     logging.RequestID(ctx),
		Details:       j.Description,
	})
	if err != nil {
		logging.For(ctx, s.logger).Warn("writing audit record",
			zap.String("journal_number", j.Number), zap.Error(err))
	}
}

// dateOnly drops the time of day, keeping the calendar date as given.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
