package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DWML/internal/domain/models"
	"DWML/pkg/database"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	c, err := database.NewClient(database.WithDSN("file::memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	s, err := NewSQLStoreFromClient(c)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()), "schema init must be idempotent")
	return s
}

func TestNewSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLStore(nil, "postgres")
	assert.Error(t, err)
}

func TestSQLStoreQueryLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, "BTC", dec("1000.50"), at))
	require.NoError(t, s.Record(ctx, "ETH", dec("20"), at.Add(time.Minute)))

	rows, err := s.db.QueryContext(ctx, `SELECT symbol, investment, generated_at_ms FROM query_log ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var got []models.QueryLogEntry
	for rows.Next() {
		var (
			e  models.QueryLogEntry
			ms int64
		)
		require.NoError(t, rows.Scan(&e.Symbol, &e.Investment, &ms))
		e.GeneratedAt = time.UnixMilli(ms).UTC()
		got = append(got, e)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.True(t, got[0].Investment.Equal(dec("1000.5")))
	assert.Equal(t, at, got[0].GeneratedAt)
	assert.Equal(t, "ETH", got[1].Symbol)
}

func TestSQLStoreOpeningAverage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveOpeningAverage(ctx, "BTC", dec("13000")))
	require.NoError(t, s.SaveOpeningAverage(ctx, "BTC", dec("13000.25")))

	avg, ok, err := s.GetOpeningAverage(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, avg.Equal(dec("13000.25")), "last writer wins, got %s", avg)
}

func TestSQLStoreResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	mk := func(at time.Time, profit string) *models.AnalysisResult {
		return &models.AnalysisResult{
			Symbol:         "BTC",
			Investment:     dec("1000"),
			Coins:          dec("0.0769230769230769"),
			Profit:         dec(profit),
			GrowthFactor:   dec("0.1538"),
			Lambos:         dec("0.0007"),
			OpeningAverage: dec("13000"),
			CurrentAverage: dec("15000"),
			GeneratedAt:    at,
			Chart:          []models.ChartPoint{{X: "2013-10-07 00:00:00", Y: 10000}},
		}
	}
	require.NoError(t, s.SaveResult(ctx, mk(base, "100")))
	require.NoError(t, s.SaveResult(ctx, mk(base.Add(time.Hour), "153.84")))

	got, err := s.LatestResult(ctx, "BTC", dec("1000.00"), base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Profit.Equal(dec("153.84")))
	assert.True(t, got.Coins.Equal(dec("0.0769230769230769")))
	assert.Equal(t, base.Add(time.Hour), got.GeneratedAt)
	assert.Equal(t, []models.ChartPoint{{X: "2013-10-07 00:00:00", Y: 10000}}, got.Chart)

	got, err = s.LatestResult(ctx, "BTC", dec("1000"), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got, "results older than since are ignored")

	got, err = s.LatestResult(ctx, "ETH", dec("1000"), time.Time{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLStoreFailuresArePersistenceErrors(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.db.Close())

	err := s.Record(context.Background(), "BTC", dec("1"), time.Now())
	assert.ErrorIs(t, err, models.ErrPersistence)
	_, _, err = s.GetOpeningAverage(context.Background(), "BTC")
	assert.ErrorIs(t, err, models.ErrPersistence)
}
