// Package api exposes the ledger operations over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/apperrors"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/trialbalance"
)

// Journals is the posting engine as seen by the handlers. *journal.Service
// satisfies it.
type Journals interface {
	Create(ctx context.Context, e journal.Entry) (string, error)
	Update(ctx context.Context, number string, e journal.Entry) error
	Delete(ctx context.Context, number string) error
	Get(ctx context.Context, number string) (*model.Journal, error)
	List(ctx context.Context, from, to time.Time) ([]model.Journal, error)
	Validate(ctx context.Context, e journal.Entry) error
}

// TrialBalancer computes trial balances. *trialbalance.Aggregator satisfies it.
type TrialBalancer interface {
	Compute(ctx context.Context, req trialbalance.Request) (*trialbalance.Report, error)
}

// LedgerHandler serves the /api/v1 routes.
type LedgerHandler struct {
	journals Journals
	tb       TrialBalancer
	chart    accounts.Source
	scale    int32
	logger   *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler. scale is the number of decimal
// places rendered per amount.
func NewLedgerHandler(journals Journals, tb TrialBalancer, chart accounts.Source, scale int32, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		journals: journals,
		tb:       tb,
		chart:    chart,
		scale:    scale,
		logger:   logger,
	}
}

// RegisterRoutes mounts the handlers on r.
func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	journals := r.Group("/journals")
	{
		journals.POST("", h.CreateJournal)
		journals.POST("/validate", h.ValidateJournal)
		journals.GET("", h.ListJournals)
		journals.GET("/:number", h.GetJournal)
		journals.PUT("/:number", h.UpdateJournal)
		journals.DELETE("/:number", h.DeleteJournal)
	}
	r.GET("/accounts", h.ListAccounts)
	r.GET("/trial-balance", h.TrialBalance)
}

// CreateJournal posts a new journal.
// POST /api/v1/journals
func (h *LedgerHandler) CreateJournal(c *gin.Context) {
	e, ok := h.bindEntry(c)
	if !ok {
		return
	}
	number, err := h.journals.Create(c.Request.Context(), e)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"number": number})
}

// ValidateJournal checks a journal without posting it.
// POST /api/v1/journals/validate
func (h *LedgerHandler) ValidateJournal(c *gin.Context) {
	e, ok := h.bindEntry(c)
	if !ok {
		return
	}
	if err := h.journals.Validate(c.Request.Context(), e); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// GetJournal returns one journal with its lines.
// GET /api/v1/journals/:number
func (h *LedgerHandler) GetJournal(c *gin.Context) {
	j, err := h.journals.Get(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newJournalResp(*j, h.scale))
}

// ListJournals returns the journals dated within [from, to].
// GET /api/v1/journals?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *LedgerHandler) ListJournals(c *gin.Context) {
	from, to, ok := h.bindRange(c)
	if !ok {
		return
	}
	list, err := h.journals.List(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]JournalResp, 0, len(list))
	for _, j := range list {
		out = append(out, newJournalResp(j, h.scale))
	}
	c.JSON(http.StatusOK, gin.H{"journals": out})
}

// UpdateJournal replaces a journal's header and lines.
// PUT /api/v1/journals/:number
func (h *LedgerHandler) UpdateJournal(c *gin.Context) {
	e, ok := h.bindEntry(c)
	if !ok {
		return
	}
	number := c.Param("number")
	if err := h.journals.Update(c.Request.Context(), number, e); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"number": number})
}

// DeleteJournal removes a journal and its lines.
// DELETE /api/v1/journals/:number
func (h *LedgerHandler) DeleteJournal(c *gin.Context) {
	if err := h.journals.Delete(c.Request.Context(), c.Param("number")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListAccounts returns the chart of accounts in hierarchy order.
// GET /api/v1/accounts
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	ix, err := accounts.Load(c.Request.Context(), h.chart)
	if err != nil {
		h.fail(c, apperrors.Wrap(apperrors.KindPersistence, err, "chart of accounts unavailable"))
		return
	}
	out := make([]AccountResp, 0, ix.Len())
	ix.Walk(func(a model.Account, depth int) bool {
		out = append(out, AccountResp{
			Code:       a.Code,
			Name:       a.Name,
			Type:       string(a.Type),
			ParentCode: a.ParentCode,
			Depth:      depth,
			Detail:     a.Detail,
			Active:     a.Active,
		})
		return true
	})
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// TrialBalance computes a trial balance.
// GET /api/v1/trial-balance?from=&to=&type=asset&include_zero=true&include_sub_accounts=true
func (h *LedgerHandler) TrialBalance(c *gin.Context) {
	from, to, ok := h.bindRange(c)
	if !ok {
		return
	}
	req := trialbalance.Request{From: from, To: to}
	for _, t := range c.QueryArray("type") {
		req.Types = append(req.Types, model.AccountType(t))
	}
	var err error
	if req.IncludeZeroBalance, err = queryBool(c, "include_zero"); err != nil {
		h.badRequest(c, err)
		return
	}
	if req.IncludeSubAccounts, err = queryBool(c, "include_sub_accounts"); err != nil {
		h.badRequest(c, err)
		return
	}

	report, err := h.tb.Compute(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTrialBalanceResp(report, h.scale))
}

func (h *LedgerHandler) bindEntry(c *gin.Context) (journal.Entry, bool) {
	var req JournalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return journal.Entry{}, false
	}
	return req.toEntry(), true
}

func (h *LedgerHandler) bindRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if from, err = time.Parse(dateLayout, c.Query("from")); err != nil {
		h.badRequest(c, errors.New("from must be YYYY-MM-DD"))
		return from, to, false
	}
	if to, err = time.Parse(dateLayout, c.Query("to")); err != nil {
		h.badRequest(c, errors.New("to must be YYYY-MM-DD"))
		return from, to, false
	}
	return from, to, true
}

func queryBool(c *gin.Context, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(key + " must be true or false")
	}
	return b, nil
}

func (h *LedgerHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResp{Error: "Invalid request: " + err.Error()})
}

// fail renders err. Ledger errors map to a status by kind; anything else
// is logged and reported as an internal error.
func (h *LedgerHandler) fail(c *gin.Context, err error) {
	var ae *apperrors.Error
	if !errors.As(err, &ae) {
		logging.For(c.Request.Context(), h.logger).Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResp{Error: "internal error"})
		return
	}

	status := StatusFor(ae.Kind)
	if status >= http.StatusInternalServerError {
		logging.For(c.Request.Context(), h.logger).Error("request failed",
			zap.String("kind", string(ae.Kind)),
			zap.Error(err),
		)
	}
	resp := ErrorResp{
		Error:   ae.Error(),
		Kind:    string(ae.Kind),
		Message: ae.Message,
		Issues:  ae.Issues,
	}
	if ae.Delta != nil {
		resp.Delta = ae.Delta.String()
	}
	c.JSON(status, resp)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindReferenceNotFound,
		apperrors.KindUnbalanced, apperrors.KindInvalidRange:
		return http.StatusUnprocessableEntity
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindSequenceConflict, apperrors.KindSequenceExhausted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
