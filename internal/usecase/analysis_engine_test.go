package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DWML/internal/domain/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeSource struct {
	mu          sync.Mutex
	exists      bool
	series      *models.PriceSeries
	fetchErr    error
	existsCalls int
	fetchCalls  int
}

func (f *fakeSource) SymbolExists(context.Context, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	return f.exists
}

func (f *fakeSource) FetchSeries(context.Context, string) (*models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.series, nil
}

type fakeQueryLog struct {
	mu      sync.Mutex
	err     error
	entries []models.QueryLogEntry
}

func (f *fakeQueryLog) Record(_ context.Context, symbol string, amount decimal.Decimal, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, models.QueryLogEntry{Symbol: symbol, Investment: amount, GeneratedAt: at})
	return nil
}

type fakeResults struct {
	saved []*models.AnalysisResult
	err   error
}

func (f *fakeResults) SaveResult(_ context.Context, r *models.AnalysisResult) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeResults) LatestResult(context.Context, string, decimal.Decimal, time.Time) (*models.AnalysisResult, error) {
	return nil, nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes []string
	errors   []string
}

func (m *fakeMetrics) ObserveAnalysis(_, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}
func (m *fakeMetrics) RecordUpstreamCall(string, string) {}
func (m *fakeMetrics) RecordCache(string)                {}
func (m *fakeMetrics) RecordQueryLog(string, string)     {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func fiveWeekSeries(t *testing.T) *models.PriceSeries {
	t.Helper()
	start := time.Date(2013, 10, 7, 0, 0, 0, 0, time.UTC)
	var samples []models.PriceSample
	for i, p := range []string{"10000", "12000", "14000", "16000", "18000"} {
		samples = append(samples, models.PriceSample{
			Time:  start.AddDate(0, 0, 7*i),
			Price: dec(p),
		})
	}
	s, err := models.NewPriceSeries("BTC", samples)
	require.NoError(t, err)
	return s
}

func TestAnalyzeRejectsInvalidInputWithoutIO(t *testing.T) {
	cases := []struct {
		symbol string
		amount string
	}{
		{"", "1000"},
		{"   ", "1000"},
		{strings.Repeat("X", 11), "1000"},
		{"BTC", "0"},
		{"BTC", "-10"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q/%s", tc.symbol, tc.amount), func(t *testing.T) {
			src := &fakeSource{exists: true, series: fiveWeekSeries(t)}
			ql := &fakeQueryLog{}
			e := NewAnalysisEngine(src, ql)

			res, err := e.Analyze(context.Background(), tc.symbol, dec(tc.amount))
			assert.Nil(t, res)
			assert.ErrorIs(t, err, models.ErrInvalidInvestment)
			assert.Zero(t, src.existsCalls)
			assert.Zero(t, src.fetchCalls)
			assert.Empty(t, ql.entries)
		})
	}
}

func TestAnalyzeUnknownSymbolSkipsFetch(t *testing.T) {
	src := &fakeSource{exists: false}
	e := NewAnalysisEngine(src, &fakeQueryLog{})

	_, err := e.Analyze(context.Background(), "nope", dec("100"))
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
	assert.Equal(t, 1, src.existsCalls)
	assert.Zero(t, src.fetchCalls)
}

func TestAnalyzePropagatesFetchErrors(t *testing.T) {
	for _, kind := range []error{models.ErrExternalService, models.ErrInsufficientPriceData, models.ErrSymbolNotFound} {
		src := &fakeSource{exists: true, fetchErr: fmt.Errorf("kraken: %w", kind)}
		e := NewAnalysisEngine(src, &fakeQueryLog{})

		_, err := e.Analyze(context.Background(), "BTC", dec("100"))
		assert.ErrorIs(t, err, kind)
	}
}

func TestAnalyzeShortSeriesIsInsufficient(t *testing.T) {
	s, err := models.NewPriceSeries("BTC", []models.PriceSample{
		{Time: time.Unix(0, 0), Price: dec("1")},
		{Time: time.Unix(604800, 0), Price: dec("2")},
	})
	require.NoError(t, err)

	e := NewAnalysisEngine(&fakeSource{exists: true, series: s}, &fakeQueryLog{})
	_, err = e.Analyze(context.Background(), "BTC", dec("100"))
	assert.ErrorIs(t, err, models.ErrInsufficientPriceData)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	src := &fakeSource{exists: true, series: fiveWeekSeries(t)}
	ql := &fakeQueryLog{}
	rs := &fakeResults{}
	m := &fakeMetrics{}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := NewAnalysisEngine(src, ql,
		WithResultStore(rs),
		WithEngineMetrics(m),
		WithClock(func() time.Time { return now }),
	)

	res, err := e.Analyze(context.Background(), " btc ", dec("1000"))
	require.NoError(t, err)

	coins := dec("1000").DivRound(dec("13000"), models.DivisionPrecision)
	profit := coins.Mul(dec("15000")).Sub(dec("1000"))

	assert.Equal(t, "BTC", res.Symbol)
	assert.True(t, res.Investment.Equal(dec("1000")))
	assert.True(t, res.OpeningAverage.Equal(dec("13000")))
	assert.True(t, res.CurrentAverage.Equal(dec("15000")))
	assert.True(t, res.Coins.Equal(coins), "coins %s", res.Coins)
	assert.True(t, res.Profit.Equal(profit), "profit %s", res.Profit)
	assert.InDelta(t, 0.0769, res.Coins.InexactFloat64(), 0.0001)
	assert.InDelta(t, 153.846, res.Profit.InexactFloat64(), 0.001)
	assert.InDelta(t, 0.153846, res.GrowthFactor.InexactFloat64(), 0.000001)
	assert.InDelta(t, 0.000769, res.Lambos.InexactFloat64(), 0.000001)
	assert.Equal(t, now, res.GeneratedAt)
	assert.Len(t, res.Chart, 5)
	assert.Equal(t, "2013-10-07 00:00:00", res.Chart[0].X)

	require.Len(t, ql.entries, 1)
	assert.Equal(t, "BTC", ql.entries[0].Symbol)
	assert.True(t, ql.entries[0].Investment.Equal(dec("1000")))
	require.Len(t, rs.saved, 1)
	assert.Equal(t, []string{"ok"}, m.outcomes)
}

func TestAnalyzeSurvivesQueryLogFailure(t *testing.T) {
	src := &fakeSource{exists: true, series: fiveWeekSeries(t)}
	ql := &fakeQueryLog{err: fmt.Errorf("insert: %w", models.ErrPersistence)}
	rs := &fakeResults{err: errors.New("disk full")}
	m := &fakeMetrics{}
	e := NewAnalysisEngine(src, ql, WithResultStore(rs), WithEngineMetrics(m))

	res, err := e.Analyze(context.Background(), "BTC", dec("1000"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.OpeningAverage.Equal(dec("13000")))
	assert.ElementsMatch(t, []string{"query_log", "result_store"}, m.errors)
}

func TestAnalyzeUsesCachedOpeningAverage(t *testing.T) {
	src := &fakeSource{exists: true, series: fiveWeekSeries(t).WithOpeningAverage(dec("13000"))}
	e := NewAnalysisEngine(src, nil)

	res, err := e.Analyze(context.Background(), "BTC", dec("1000"))
	require.NoError(t, err)
	assert.True(t, res.OpeningAverage.Equal(dec("13000")))
}

func TestAnalyzeCustomWindow(t *testing.T) {
	src := &fakeSource{exists: true, series: fiveWeekSeries(t)}
	e := NewAnalysisEngine(src, nil, WithWindow(2))

	res, err := e.Analyze(context.Background(), "BTC", dec("1000"))
	require.NoError(t, err)
	assert.True(t, res.OpeningAverage.Equal(dec("11000")))
	assert.True(t, res.CurrentAverage.Equal(dec("17000")))
}
