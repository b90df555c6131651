package analytics

import (
	"context"
	"strings"
	"time"

	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTopExpensesLimit is K for the top expenses list.
	DefaultTopExpensesLimit = 5
	// AnalyticsTrendMonths is the trailing trend length embedded in AnalyticsData.
	AnalyticsTrendMonths = 12
	// MaxTrendMonths bounds a trend series to the longest analysis window.
	MaxTrendMonths = MaxRangeYears * 12
)

// Engine computes analytics for one owner per call. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	store   Store
	now     func() time.Time
	loc     *time.Location
	topK    int
	logger  *logging.Logger
	metrics metrics.Collector
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to place trailing month windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the time zone that decides which month is current.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithTopExpensesLimit sets K for the top expenses list.
func WithTopExpensesLimit(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector metrics.Collector) Option {
	return func(e *Engine) {
		if collector != nil {
			e.metrics = collector
		}
	}
}

// NewEngine creates an engine reading from store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		now:     time.Now,
		loc:     time.UTC,
		topK:    DefaultTopExpensesLimit,
		logger:  logging.NewNoOpLogger(),
		metrics: metrics.NoOpCollector{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetAnalytics builds the composite analytics for ownerID over filters. The
// six underlying reads run concurrently and share one context; the first
// failure cancels the rest and is returned without a partial result.
func (e *Engine) GetAnalytics(ctx context.Context, ownerID string, filters AnalyticsFilters) (data *AnalyticsData, err error) {
	defer e.observe("analytics", time.Now(), &err)

	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	f, err := filters.Normalize()
	if err != nil {
		return nil, err
	}
	window := f.Window()
	expenseDerived := f.TransactionType.Includes(Expense)

	var (
		spends        = []CategorySpend{}
		incomeTotal   = decimal.Zero
		expensesTotal = decimal.Zero
		top           = []Transaction{}
		anomalies     = []SpendingAnomaly{}
		trends        []MonthlyTrend
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if !expenseDerived {
			return nil
		}
		txs, err := e.query(gctx, "category spends", ownerID, Query{Range: window, Type: Expense, CategoryIDs: f.CategoryIDs})
		if err != nil {
			return err
		}
		spends = AggregateCategorySpends(txs, f)
		return nil
	})

	g.Go(func() error {
		txs, err := e.query(gctx, "income total", ownerID, Query{Range: window, Type: Income})
		if err != nil {
			return err
		}
		incomeTotal = SumAmounts(txs, Income)
		return nil
	})

	g.Go(func() error {
		txs, err := e.query(gctx, "expenses total", ownerID, Query{Range: window, Type: Expense})
		if err != nil {
			return err
		}
		expensesTotal = SumAmounts(txs, Expense)
		return nil
	})

	g.Go(func() error {
		if !expenseDerived {
			return nil
		}
		txs, err := e.query(gctx, "top expenses", ownerID, Query{Range: window, Type: Expense, CategoryIDs: f.CategoryIDs})
		if err != nil {
			return err
		}
		top = TopExpenses(txs, e.topK)
		return nil
	})

	g.Go(func() error {
		if !expenseDerived {
			return nil
		}
		txs, err := e.query(gctx, "anomalies", ownerID, Query{Range: window, Type: Expense, CategoryIDs: f.CategoryIDs})
		if err != nil {
			return err
		}
		anomalies = DetectAnomalies(txs, f)
		return nil
	})

	g.Go(func() error {
		series, err := e.trailingTrends(gctx, ownerID, AnalyticsTrendMonths)
		if err != nil {
			return err
		}
		trends = series
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.metrics.RecordAnomalies(len(anomalies))
	e.logger.Debug("analytics computed",
		logging.Owner(ownerID),
		zap.Int("categories", len(spends)),
		zap.Int("anomalies", len(anomalies)),
	)

	return &AnalyticsData{
		CategorySpends: spends,
		MonthlyTrends:  trends,
		IncomeTotal:    incomeTotal,
		ExpensesTotal:  expensesTotal,
		Balance:        incomeTotal.Sub(expensesTotal),
		TopExpenses:    top,
		Anomalies:      anomalies,
	}, nil
}

// GetCategorySpends returns the category breakdown for filters on its own,
// in first-occurrence order.
func (e *Engine) GetCategorySpends(ctx context.Context, ownerID string, filters AnalyticsFilters) (spends []CategorySpend, err error) {
	defer e.observe("categories", time.Now(), &err)

	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	f, err := filters.Normalize()
	if err != nil {
		return nil, err
	}
	if !f.TransactionType.Includes(Expense) {
		return []CategorySpend{}, nil
	}

	txs, err := e.query(ctx, "category spends", ownerID, Query{Range: f.Window(), Type: Expense, CategoryIDs: f.CategoryIDs})
	if err != nil {
		return nil, err
	}
	return AggregateCategorySpends(txs, f), nil
}

// GetMonthlyTrends returns the trailing months-long trend series ending with
// the current month, oldest first. months must be in [1, MaxTrendMonths].
func (e *Engine) GetMonthlyTrends(ctx context.Context, ownerID string, months int) (trends []MonthlyTrend, err error) {
	defer e.observe("trends", time.Now(), &err)

	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	if months <= 0 || months > MaxTrendMonths {
		return nil, invalid("months", ErrInvalidTrendMonths)
	}
	return e.trailingTrends(ctx, ownerID, months)
}

// GetForecastProjections projects months (1..12) future months from the
// trailing twelve-month trend series.
func (e *Engine) GetForecastProjections(ctx context.Context, ownerID string, months int) (projections []ForecastProjection, err error) {
	defer e.observe("forecast", time.Now(), &err)

	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	if err := ValidateForecastMonths(months); err != nil {
		return nil, err
	}

	series, err := e.trailingTrends(ctx, ownerID, ForecastHistoryMonths)
	if err != nil {
		return nil, err
	}
	return ProjectForecast(series, months, e.now().In(e.loc)), nil
}

// trailingTrends reads the whole trailing window once and buckets it by month.
func (e *Engine) trailingTrends(ctx context.Context, ownerID string, months int) ([]MonthlyTrend, error) {
	windows := MonthWindows(e.now(), months, e.loc)
	span, ok := Span(windows)
	if !ok {
		return []MonthlyTrend{}, nil
	}
	txs, err := e.query(ctx, "monthly trends", ownerID, Query{Range: span})
	if err != nil {
		return nil, err
	}
	return BuildTrendSeries(txs, windows), nil
}

func (e *Engine) query(ctx context.Context, op, ownerID string, q Query) ([]Transaction, error) {
	txs, err := e.store.QueryTransactions(ctx, ownerID, q)
	if err != nil {
		return nil, &DataSourceError{Op: op, Err: err}
	}
	return txs, nil
}

func (e *Engine) observe(op string, start time.Time, err *error) {
	e.metrics.RecordOperation(op, *err == nil, time.Since(start))
	if *err == nil || !IsDataSource(*err) {
		return
	}
	e.logger.Warn("store read failed", logging.Operation(op), zap.Error(*err))
}

func checkOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthenticated
	}
	return nil
}
