package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	domsvc "DWML/internal/domain/service"
	applogger "DWML/pkg/logger"
)

// AnalysisEngine drives one investment analysis from validation to result.
type AnalysisEngine struct {
	source  drepo.PriceSource
	log     drepo.QueryLog
	results drepo.ResultStore
	metrics drepo.Metrics
	l       *applogger.Logger
	window  int
	now     func() time.Time
}

type EngineOption func(*AnalysisEngine)

// WithResultStore records each successful result. Failures are logged only.
func WithResultStore(rs drepo.ResultStore) EngineOption {
	return func(e *AnalysisEngine) { e.results = rs }
}

func WithEngineMetrics(m drepo.Metrics) EngineOption {
	return func(e *AnalysisEngine) { e.metrics = m }
}

func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *AnalysisEngine) { e.l = l }
}

// WithWindow overrides the number of periods averaged at each end of the series.
func WithWindow(n int) EngineOption {
	return func(e *AnalysisEngine) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithClock replaces the clock used for the generation timestamp.
func WithClock(now func() time.Time) EngineOption {
	return func(e *AnalysisEngine) { e.now = now }
}

func NewAnalysisEngine(source drepo.PriceSource, log drepo.QueryLog, opts ...EngineOption) *AnalysisEngine {
	e := &AnalysisEngine{
		source: source,
		log:    log,
		window: models.DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze validates the request before any I/O, then fetches prices and computes the
// metrics. Error kinds from models propagate unchanged; query log and result store
// failures never fail the analysis.
func (e *AnalysisEngine) Analyze(ctx context.Context, symbol string, amount decimal.Decimal) (res *models.AnalysisResult, err error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveAnalysis(models.NormalizeSymbol(symbol), models.Kind(err), time.Since(start).Seconds())
		}
	}()

	inv, err := models.NewInvestmentRequest(symbol, amount)
	if err != nil {
		return nil, err
	}

	if !e.source.SymbolExists(ctx, inv.Symbol) {
		return nil, fmt.Errorf("%w: %s", models.ErrSymbolNotFound, inv.Symbol)
	}

	series, err := e.source.FetchSeries(ctx, inv.Symbol)
	if err != nil {
		return nil, err
	}

	opening, err := series.OpeningAverage(e.window)
	if err != nil {
		return nil, err
	}
	current, err := series.CurrentAverage(e.window)
	if err != nil {
		return nil, err
	}

	m, err := inv.Metrics(opening, current)
	if err != nil {
		return nil, err
	}

	e.recordQuery(ctx, inv)

	res = &models.AnalysisResult{
		Symbol:         inv.Symbol,
		Investment:     inv.Amount,
		Coins:          m.Coins,
		Profit:         m.Profit,
		GrowthFactor:   m.GrowthFactor,
		Lambos:         m.Lambos,
		OpeningAverage: opening,
		CurrentAverage: current,
		GeneratedAt:    e.now().UTC(),
		Chart:          series.ChartPoints(),
	}

	e.saveResult(ctx, res)

	if e.l != nil {
		e.l.Info("analysis completed",
			applogger.String("symbol", res.Symbol),
			applogger.Decimal("investment", res.Investment),
			applogger.Decimal("profit", res.Profit),
			applogger.Int("samples", series.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return res, nil
}

func (e *AnalysisEngine) recordQuery(ctx context.Context, inv *models.InvestmentRequest) {
	if e.log == nil {
		return
	}
	if err := e.log.Record(ctx, inv.Symbol, inv.Amount, inv.CreatedAt); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("query_log")
		}
		if e.l != nil {
			e.l.Warn("query log record failed",
				applogger.String("symbol", inv.Symbol),
				applogger.Error(err),
			)
		}
	}
}

func (e *AnalysisEngine) saveResult(ctx context.Context, res *models.AnalysisResult) {
	if e.results == nil {
		return
	}
	if err := e.results.SaveResult(ctx, res); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("result_store")
		}
		if e.l != nil {
			e.l.Warn("result store save failed",
				applogger.String("symbol", res.Symbol),
				applogger.Error(err),
			)
		}
	}
}

var _ domsvc.Analyzer = (*AnalysisEngine)(nil)
