package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	"DWML/pkg/cache"
	"DWML/pkg/util"
)

type fakeExchange struct {
	mu        sync.Mutex
	exists    bool
	existsErr error
	candles   []models.Candle
	err       error
	since     time.Time
	interval  drepo.Interval
	calls     int
}

func (f *fakeExchange) PairExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeExchange) Candles(_ context.Context, _ string, since time.Time, iv drepo.Interval) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.since, f.interval = since, iv
	return f.candles, f.err
}

type failingAverages struct{}

func (failingAverages) GetOpeningAverage(context.Context, string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, fmt.Errorf("redis down: %w", models.ErrPersistence)
}

func (failingAverages) SaveOpeningAverage(context.Context, string, decimal.Decimal) error {
	return fmt.Errorf("redis down: %w", models.ErrPersistence)
}

type cacheCounter struct {
	mu      sync.Mutex
	results []string
}

func (m *cacheCounter) ObserveAnalysis(string, string, float64) {}
func (m *cacheCounter) RecordUpstreamCall(string, string)       {}
func (m *cacheCounter) RecordQueryLog(string, string)           {}
func (m *cacheCounter) RecordError(string)                      {}
func (m *cacheCounter) RecordCache(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func weeklyCandles(closes ...string) []models.Candle {
	start := time.Date(2013, 10, 7, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Time: start.AddDate(0, 0, 7*i), Close: dec(c)}
	}
	return out
}

func TestSymbolExistsSwallowsErrors(t *testing.T) {
	src := NewCachedPriceSource(&fakeExchange{exists: true})
	assert.True(t, src.SymbolExists(context.Background(), "BTC"))

	src = NewCachedPriceSource(&fakeExchange{exists: true, existsErr: models.ErrExternalService})
	assert.False(t, src.SymbolExists(context.Background(), "BTC"))
}

func TestFetchSeriesRequestsWeeklyCandlesSinceOrigin(t *testing.T) {
	ex := &fakeExchange{candles: weeklyCandles("1", "2", "3", "4", "5")}
	series, err := NewCachedPriceSource(ex).FetchSeries(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, util.LookbackOrigin, ex.since)
	assert.Equal(t, drepo.Interval1w, ex.interval)
	assert.Equal(t, 5, series.Len())
	assert.Equal(t, "BTC", series.Symbol())
}

func TestWithIntervalNormalizes(t *testing.T) {
	ex := &fakeExchange{candles: weeklyCandles("1")}
	_, err := NewCachedPriceSource(ex, WithInterval(1440)).FetchSeries(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, drepo.Interval1d, ex.interval)

	_, err = NewCachedPriceSource(ex, WithInterval(5)).FetchSeries(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, drepo.Interval1w, ex.interval)
}

func TestFetchSeriesErrors(t *testing.T) {
	_, err := NewCachedPriceSource(&fakeExchange{}).FetchSeries(context.Background(), "BTC")
	assert.ErrorIs(t, err, models.ErrInsufficientPriceData)

	_, err = NewCachedPriceSource(&fakeExchange{err: fmt.Errorf("kraken: %w", models.ErrSymbolNotFound)}).
		FetchSeries(context.Background(), "BTC")
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
}

func TestFetchSeriesCachesOpeningAverage(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	store := NewCacheAverageStore(mem)
	ex := &fakeExchange{candles: weeklyCandles("10000", "12000", "14000", "16000", "18000")}
	src := NewCachedPriceSource(ex, WithAverageStore(store))
	ctx := context.Background()

	series, err := src.FetchSeries(ctx, "BTC")
	require.NoError(t, err)
	computed, err := series.OpeningAverage(models.DefaultWindow)
	require.NoError(t, err)

	cached, ok, err := store.GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cached.Equal(computed))

	again, err := src.FetchSeries(ctx, "BTC")
	require.NoError(t, err)
	fromCache, err := again.OpeningAverage(models.DefaultWindow)
	require.NoError(t, err)
	assert.True(t, fromCache.Equal(computed), "cache must not change the result")
}

func TestFetchSeriesShortSeriesIsNotCached(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	store := NewCacheAverageStore(mem)
	src := NewCachedPriceSource(&fakeExchange{candles: weeklyCandles("1", "2")}, WithAverageStore(store))

	_, err := src.FetchSeries(context.Background(), "BTC")
	require.NoError(t, err)
	_, ok, err := store.GetOpeningAverage(context.Background(), "BTC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchSeriesSurvivesCacheFailure(t *testing.T) {
	src := NewCachedPriceSource(
		&fakeExchange{candles: weeklyCandles("10000", "12000", "14000", "16000")},
		WithAverageStore(failingAverages{}),
	)
	series, err := src.FetchSeries(context.Background(), "BTC")
	require.NoError(t, err)
	avg, err := series.OpeningAverage(models.DefaultWindow)
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("13000")))
}

func TestWarmSkipsCachedSymbols(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	store := NewCacheAverageStore(mem)
	ex := &fakeExchange{candles: weeklyCandles("1", "2", "3", "4")}
	src := NewCachedPriceSource(ex, WithAverageStore(store))

	require.NoError(t, src.Warm(context.Background(), "ETH"))
	require.NoError(t, src.Warm(context.Background(), "ETH"))
	assert.Equal(t, 1, ex.calls)

	ex.err = errors.New("boom")
	assert.Error(t, src.Warm(context.Background(), "SOL"))
}

func TestWarmRecordsSingleMiss(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	m := &cacheCounter{}
	src := NewCachedPriceSource(
		&fakeExchange{candles: weeklyCandles("1", "2", "3", "4")},
		WithAverageStore(NewCacheAverageStore(mem)),
		WithSourceMetrics(m),
	)

	require.NoError(t, src.Warm(context.Background(), "ETH"))
	assert.Equal(t, []string{"miss"}, m.results)

	require.NoError(t, src.Warm(context.Background(), "ETH"))
	assert.Equal(t, []string{"miss", "hit"}, m.results)
}

func TestTieredAverageStore(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	defer mem.Close()
	fast := NewCacheAverageStore(mem)
	durable := newTestStore(t)
	tiered := NewTieredAverageStore(fast, durable)

	require.NoError(t, tiered.SaveOpeningAverage(ctx, "BTC", dec("13000")))
	avg, ok, err := durable.GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, avg.Equal(dec("13000")))

	// a restart starts with an empty cache; the durable row repopulates it
	restarted := cache.NewMemoryCache()
	defer restarted.Close()
	fresh := NewCacheAverageStore(restarted)
	avg, ok, err = NewTieredAverageStore(fresh, durable).GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, avg.Equal(dec("13000")))

	avg, ok, err = fresh.GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, avg.Equal(dec("13000")))

	_, ok, err = tiered.GetOpeningAverage(ctx, "ETH")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTieredAverageStoreToleratesCacheFailure(t *testing.T) {
	ctx := context.Background()
	durable := newTestStore(t)
	tiered := NewTieredAverageStore(failingAverages{}, durable)

	require.NoError(t, tiered.SaveOpeningAverage(ctx, "BTC", dec("42")))
	avg, ok, err := tiered.GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, avg.Equal(dec("42")))
}

func TestCacheTaskStore(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	s := NewCacheTaskStore(mem, time.Hour)
	ctx := context.Background()

	got, err := s.GetTask(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SaveTask(ctx, &models.TaskStatus{ID: "t1", State: models.TaskQueued, Symbol: "BTC"}))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TaskQueued, got.State)
	assert.Equal(t, "BTC", got.Symbol)
}
