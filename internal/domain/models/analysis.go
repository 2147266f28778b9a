package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/pkg/util"
)

// AnalysisResult is the outcome of one investment analysis. Figures are exact;
// they become floats only when encoded.
type AnalysisResult struct {
	Symbol         string
	Investment     decimal.Decimal
	Coins          decimal.Decimal
	Profit         decimal.Decimal
	GrowthFactor   decimal.Decimal
	Lambos         decimal.Decimal
	OpeningAverage decimal.Decimal
	CurrentAverage decimal.Decimal
	GeneratedAt    time.Time
	Chart          []ChartPoint
}

// analysisResultJSON is the wire shape consumed by the charting frontend.
type analysisResultJSON struct {
	Symbol       string       `json:"SYMBOL"`
	Investment   float64      `json:"INVESTMENT"`
	Coins        float64      `json:"NUMBERCOINS"`
	Profit       float64      `json:"PROFIT"`
	GrowthFactor float64      `json:"GROWTHFACTOR"`
	Lambos       float64      `json:"LAMBOS"`
	GeneratedAt  string       `json:"GENERATIONDATE"`
	Chart        []ChartPoint `json:"graph_data"`
}

func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	chart := r.Chart
	if chart == nil {
		chart = []ChartPoint{}
	}
	return json.Marshal(analysisResultJSON{
		Symbol:       r.Symbol,
		Investment:   r.Investment.InexactFloat64(),
		Coins:        r.Coins.InexactFloat64(),
		Profit:       r.Profit.InexactFloat64(),
		GrowthFactor: r.GrowthFactor.InexactFloat64(),
		Lambos:       r.Lambos.InexactFloat64(),
		GeneratedAt:  util.FormatISO(r.GeneratedAt),
		Chart:        chart,
	})
}

func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var raw analysisResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	generated, ok := util.ParseTime(raw.GeneratedAt)
	if raw.GeneratedAt != "" && !ok {
		return fmt.Errorf("invalid GENERATIONDATE %q", raw.GeneratedAt)
	}
	*r = AnalysisResult{
		Symbol:       raw.Symbol,
		Investment:   decimal.NewFromFloat(raw.Investment),
		Coins:        decimal.NewFromFloat(raw.Coins),
		Profit:       decimal.NewFromFloat(raw.Profit),
		GrowthFactor: decimal.NewFromFloat(raw.GrowthFactor),
		Lambos:       decimal.NewFromFloat(raw.Lambos),
		GeneratedAt:  generated,
		Chart:        raw.Chart,
	}
	return nil
}

// QueryLogEntry is the audit row written for every accepted analysis request.
type QueryLogEntry struct {
	Symbol      string          `json:"symbol"`
	Investment  decimal.Decimal `json:"investment"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Candle is one OHLC period as reported by the exchange.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	VWAP   decimal.Decimal
	Volume decimal.Decimal
	Count  int64
}
