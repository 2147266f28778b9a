package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	applogger "DWML/pkg/logger"
	"DWML/pkg/util"
)

// CachedPriceSource implements PriceSource on an exchange, with the opening average
// of each symbol cached after its first computation.
type CachedPriceSource struct {
	exchange drepo.Exchange
	averages drepo.OpeningAverageStore
	interval drepo.Interval
	since    time.Time
	metrics  drepo.Metrics
	l        *applogger.Logger
}

type PriceSourceOption func(*CachedPriceSource)

// WithAverageStore enables the opening-average cache.
func WithAverageStore(s drepo.OpeningAverageStore) PriceSourceOption {
	return func(p *CachedPriceSource) { p.averages = s }
}

// WithInterval sets the candle resolution in minutes. Unsupported values fall
// back to weekly.
func WithInterval(minutes int) PriceSourceOption {
	return func(p *CachedPriceSource) { p.interval = drepo.NormalizeInterval(minutes) }
}

// WithLookbackOrigin sets the earliest candle time requested from the exchange.
func WithLookbackOrigin(t time.Time) PriceSourceOption {
	return func(p *CachedPriceSource) {
		if !t.IsZero() {
			p.since = t
		}
	}
}

func WithSourceMetrics(m drepo.Metrics) PriceSourceOption {
	return func(p *CachedPriceSource) { p.metrics = m }
}

func WithSourceLogger(l *applogger.Logger) PriceSourceOption {
	return func(p *CachedPriceSource) { p.l = l }
}

func NewCachedPriceSource(ex drepo.Exchange, opts ...PriceSourceOption) *CachedPriceSource {
	p := &CachedPriceSource{
		exchange: ex,
		interval: drepo.DefaultInterval(),
		since:    util.LookbackOrigin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SymbolExists never fails: transport errors are logged and reported as false.
func (p *CachedPriceSource) SymbolExists(ctx context.Context, symbol string) bool {
	ok, err := p.exchange.PairExists(ctx, symbol)
	if err != nil {
		if p.l != nil {
			p.l.Warn("symbol lookup failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return false
	}
	return ok
}

// FetchSeries returns the closing-price series since the lookback origin.
func (p *CachedPriceSource) FetchSeries(ctx context.Context, symbol string) (*models.PriceSeries, error) {
	cached, hit := p.cachedAverage(ctx, symbol)

	series, err := p.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if hit {
		return series.WithOpeningAverage(cached), nil
	}
	p.storeAverage(ctx, series)
	return series, nil
}

func (p *CachedPriceSource) fetch(ctx context.Context, symbol string) (*models.PriceSeries, error) {
	candles, err := p.exchange.Candles(ctx, symbol, p.since, p.interval)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", models.ErrInsufficientPriceData, symbol)
	}

	samples := make([]models.PriceSample, len(candles))
	for i, c := range candles {
		samples[i] = models.PriceSample{Time: c.Time, Price: c.Close}
	}
	return models.NewPriceSeries(symbol, samples)
}

// Warm computes and caches the opening average for symbol without running an analysis.
func (p *CachedPriceSource) Warm(ctx context.Context, symbol string) error {
	if p.averages == nil {
		return nil
	}
	if _, hit := p.cachedAverage(ctx, symbol); hit {
		return nil
	}
	series, err := p.fetch(ctx, symbol)
	if err != nil {
		return err
	}
	p.storeAverage(ctx, series)
	return nil
}

func (p *CachedPriceSource) cachedAverage(ctx context.Context, symbol string) (avg decimal.Decimal, hit bool) {
	if p.averages == nil {
		return avg, false
	}
	avg, ok, err := p.averages.GetOpeningAverage(ctx, symbol)
	switch {
	case err != nil:
		p.recordCache("error")
		if p.l != nil {
			p.l.Warn("opening average cache read failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return avg, false
	case ok:
		p.recordCache("hit")
		return avg, true
	default:
		p.recordCache("miss")
		return avg, false
	}
}

func (p *CachedPriceSource) storeAverage(ctx context.Context, series *models.PriceSeries) {
	if p.averages == nil {
		return
	}
	avg, err := series.OpeningAverage(models.DefaultWindow)
	if errors.Is(err, models.ErrInsufficientPriceData) {
		return
	}
	if err == nil {
		err = p.averages.SaveOpeningAverage(ctx, series.Symbol(), avg)
	}
	if err != nil && p.l != nil {
		p.l.Warn("opening average cache write failed",
			applogger.String("symbol", series.Symbol()),
			applogger.Error(err),
		)
	}
}

func (p *CachedPriceSource) recordCache(result string) {
	if p.metrics != nil {
		p.metrics.RecordCache(result)
	}
}

var _ drepo.PriceSource = (*CachedPriceSource)(nil)
