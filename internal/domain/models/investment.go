package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxSymbolLength bounds an exchange ticker.
	MaxSymbolLength = 10
	// DivisionPrecision is the number of decimal places kept by every division.
	DivisionPrecision = 16
)

// LamboPrice is the price of one Lamborghini in USD.
var LamboPrice = decimal.NewFromInt(200000)

// InvestmentRequest is a validated (symbol, amount) pair. It is read-only once built.
type InvestmentRequest struct {
	Symbol    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// NewInvestmentRequest normalizes the symbol and rejects empty or oversized symbols
// and non-positive amounts.
func NewInvestmentRequest(symbol string, amount decimal.Decimal) (*InvestmentRequest, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, fmt.Errorf("%w: symbol cannot be empty", ErrInvalidInvestment)
	}
	if utf8.RuneCountInString(normalized) > MaxSymbolLength {
		return nil, fmt.Errorf("%w: symbol %q longer than %d characters", ErrInvalidInvestment, normalized, MaxSymbolLength)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: investment amount must be positive, got %s", ErrInvalidInvestment, amount.String())
	}
	return &InvestmentRequest{
		Symbol:    normalized,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// CoinsPurchased is the number of coins the amount buys at openingPrice.
func (r *InvestmentRequest) CoinsPurchased(openingPrice decimal.Decimal) (decimal.Decimal, error) {
	if !openingPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: opening price must be positive, got %s", ErrInvalidInvestment, openingPrice.String())
	}
	return r.Amount.DivRound(openingPrice, DivisionPrecision), nil
}

// Profit is the position value at currentPrice minus the amount invested. May be negative.
func (r *InvestmentRequest) Profit(openingPrice, currentPrice decimal.Decimal) (decimal.Decimal, error) {
	coins, err := r.CoinsPurchased(openingPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return coins.Mul(currentPrice).Sub(r.Amount), nil
}

// GrowthFactor is profit relative to the amount invested.
func (r *InvestmentRequest) GrowthFactor(openingPrice, currentPrice decimal.Decimal) (decimal.Decimal, error) {
	profit, err := r.Profit(openingPrice, currentPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return profit.DivRound(r.Amount, DivisionPrecision), nil
}

// Lambos is profit expressed in Lamborghinis.
func (r *InvestmentRequest) Lambos(openingPrice, currentPrice decimal.Decimal) (decimal.Decimal, error) {
	profit, err := r.Profit(openingPrice, currentPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return profit.DivRound(LamboPrice, DivisionPrecision), nil
}

// Metrics computes all derived figures in one pass.
func (r *InvestmentRequest) Metrics(openingPrice, currentPrice decimal.Decimal) (InvestmentMetrics, error) {
	coins, err := r.CoinsPurchased(openingPrice)
	if err != nil {
		return InvestmentMetrics{}, err
	}
	profit := coins.Mul(currentPrice).Sub(r.Amount)
	return InvestmentMetrics{
		OpeningPrice: openingPrice,
		CurrentPrice: currentPrice,
		Coins:        coins,
		Profit:       profit,
		GrowthFactor: profit.DivRound(r.Amount, DivisionPrecision),
		Lambos:       profit.DivRound(LamboPrice, DivisionPrecision),
	}, nil
}

// InvestmentMetrics holds the exact figures derived from one investment.
type InvestmentMetrics struct {
	OpeningPrice decimal.Decimal
	CurrentPrice decimal.Decimal
	Coins        decimal.Decimal
	Profit       decimal.Decimal
	GrowthFactor decimal.Decimal
	Lambos       decimal.Decimal
}
