package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/metrics"
	"github.com/cleared-dev/ledger/internal/sequence"
	"github.com/cleared-dev/ledger/internal/store/sqlstore"
	"github.com/cleared-dev/ledger/internal/trialbalance"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
}

// app is the wired ledger for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *sqlstore.Store
	metrics *metrics.Metrics
	closers []func() error
}

// openApp loads configuration and connects to the store. Callers must Close it.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	path, err := filepath.Abs(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg.Resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Mode, "ledger", cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	st, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, sqlstore.Options{
		Scale:           cfg.Ledger.AmountScale,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: st}
	a.closers = append(a.closers, st.Close)
	return a, nil
}

// withMetrics registers the ledger collectors with reg.
func (a *app) withMetrics(reg prometheus.Registerer) {
	a.metrics = metrics.New(reg)
}

// allocator returns the configured journal number allocator.
func (a *app) allocator(ctx context.Context) (sequence.Allocator, error) {
	if a.cfg.Sequence.Backend != config.BackendRedis {
		return sequence.NewCounter(), nil
	}
	client := sequence.NewRedisClient(a.cfg.Sequence.RedisAddr, a.cfg.Sequence.RedisPassword, a.cfg.Sequence.RedisDB)
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return sequence.NewRedis(client), nil
}

func (a *app) journals(ctx context.Context) (*journal.Service, error) {
	alloc, err := a.allocator(ctx)
	if err != nil {
		return nil, err
	}
	opts := []journal.Option{
		journal.WithScale(a.cfg.Ledger.AmountScale),
		journal.WithRetries(a.cfg.Ledger.SequenceRetries),
		journal.WithMetrics(a.metrics),
	}
	if a.cfg.Audit.Path != "" {
		opts = append(opts, journal.WithAuditor(auditlog.New(a.cfg.Audit.Path)))
	}
	return journal.NewService(a.store, alloc, a.logger, opts...), nil
}

func (a *app) trialBalance() *trialbalance.Aggregator {
	return trialbalance.NewAggregator(a.store, a.logger, a.metrics)
}

// Close releases every connection opened for the app.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	_ = a.logger.Sync()
	return first
}
