package service

import (
	"context"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
)

// Analyzer runs one investment analysis.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, amount decimal.Decimal) (*models.AnalysisResult, error)
}
