package repository

import (
	"context"
	"time"

	"DWML/internal/domain/models"
)

// Interval is a candle resolution in minutes, as exchanges express it.
type Interval int

const (
	Interval1h Interval = 60
	Interval1d Interval = 1440
	Interval1w Interval = 10080
)

// DefaultInterval is the weekly resolution the averages are defined over.
func DefaultInterval() Interval { return Interval1w }

// NormalizeInterval converts a raw minute count to a valid interval (or the default).
func NormalizeInterval(minutes int) Interval {
	switch iv := Interval(minutes); iv {
	case Interval1h, Interval1d, Interval1w:
		return iv
	default:
		return DefaultInterval()
	}
}

// Exchange is the upstream market-data API.
type Exchange interface {
	// PairExists returns (false, nil) when the exchange positively reports an unknown pair.
	PairExists(ctx context.Context, symbol string) (bool, error)
	// Candles returns OHLC candles since the given time in ascending order.
	Candles(ctx context.Context, symbol string, since time.Time, iv Interval) ([]models.Candle, error)
}
