package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/pkg/util"
)

// DefaultWindow is the number of weekly periods averaged at each end of a series.
const DefaultWindow = 4

// PriceSample is one (timestamp, closing price) observation.
type PriceSample struct {
	Time  time.Time
	Price decimal.Decimal
}

// ChartPoint is the charting projection of a sample.
type ChartPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// PriceSeries is an immutable, chronologically ordered set of samples for one symbol.
type PriceSeries struct {
	symbol  string
	samples []PriceSample

	// openingAvg short-circuits OpeningAverage(DefaultWindow) when loaded from a cache.
	openingAvg *decimal.Decimal
}

// NewPriceSeries copies samples as given. Callers must supply them in ascending time order.
func NewPriceSeries(symbol string, samples []PriceSample) (*PriceSeries, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no price samples for %s", ErrInsufficientPriceData, symbol)
	}
	cp := make([]PriceSample, len(samples))
	copy(cp, samples)
	return &PriceSeries{symbol: symbol, samples: cp}, nil
}

// WithOpeningAverage returns a copy of s that answers OpeningAverage(DefaultWindow)
// with avg instead of recomputing it.
func (s *PriceSeries) WithOpeningAverage(avg decimal.Decimal) *PriceSeries {
	out := *s
	out.openingAvg = &avg
	return &out
}

func (s *PriceSeries) Symbol() string { return s.symbol }

func (s *PriceSeries) Len() int { return len(s.samples) }

// OpeningAverage is the mean price of the first n samples.
func (s *PriceSeries) OpeningAverage(n int) (decimal.Decimal, error) {
	if err := s.checkWindow(n); err != nil {
		return decimal.Zero, err
	}
	if n == DefaultWindow && s.openingAvg != nil {
		return *s.openingAvg, nil
	}
	return mean(s.samples[:n]), nil
}

// CurrentAverage is the mean price of the last n samples.
func (s *PriceSeries) CurrentAverage(n int) (decimal.Decimal, error) {
	if err := s.checkWindow(n); err != nil {
		return decimal.Zero, err
	}
	return mean(s.samples[len(s.samples)-n:]), nil
}

// ChartPoints projects every sample to an {x, y} pair in stored order.
func (s *PriceSeries) ChartPoints() []ChartPoint {
	points := make([]ChartPoint, len(s.samples))
	for i, sample := range s.samples {
		points[i] = ChartPoint{
			X: util.FormatDateTime(sample.Time),
			Y: sample.Price.InexactFloat64(),
		}
	}
	return points
}

func (s *PriceSeries) checkWindow(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInsufficientPriceData, n)
	}
	if len(s.samples) < n {
		return fmt.Errorf("%w: %s has %d samples, need %d", ErrInsufficientPriceData, s.symbol, len(s.samples), n)
	}
	return nil
}

func mean(samples []PriceSample) decimal.Decimal {
	sum := decimal.Zero
	for _, sample := range samples {
		sum = sum.Add(sample.Price)
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(samples))), DivisionPrecision)
}
