package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	domsvc "DWML/internal/domain/service"
)

// MaxBatchItems caps one batch request.
const MaxBatchItems = 20

// BatchAnalyzer runs several analyses one after another. A failing item never
// aborts the batch.
type BatchAnalyzer struct {
	analyzer domsvc.Analyzer
}

func NewBatchAnalyzer(a domsvc.Analyzer) *BatchAnalyzer {
	return &BatchAnalyzer{analyzer: a}
}

// AnalyzeBatch returns one entry per item, in request order.
func (b *BatchAnalyzer) AnalyzeBatch(ctx context.Context, items []models.AnalyzeRequest) ([]models.BatchItemResult, error) {
	if len(items) == 0 || len(items) > MaxBatchItems {
		return nil, fmt.Errorf("%w: batch must have 1 to %d items", models.ErrInvalidInvestment, MaxBatchItems)
	}

	out := make([]models.BatchItemResult, len(items))
	for i, item := range items {
		out[i].Symbol = models.NormalizeSymbol(item.Symbol)
		if err := ctx.Err(); err != nil {
			out[i].Error = models.PublicMessage(err)
			continue
		}

		amount, err := decimal.NewFromString(item.Investment)
		if err != nil {
			out[i].Error = models.PublicMessage(fmt.Errorf("%w: investment %q is not a number", models.ErrInvalidInvestment, item.Investment))
			continue
		}

		res, err := b.analyzer.Analyze(ctx, item.Symbol, amount)
		if err != nil {
			out[i].Error = models.PublicMessage(err)
			continue
		}
		out[i].Result = res
	}
	return out, nil
}
