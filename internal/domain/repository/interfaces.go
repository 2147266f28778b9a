package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
)

// PriceSource answers the two questions the analysis engine asks about a symbol.
type PriceSource interface {
	// SymbolExists is false for unknown pairs and for any transport failure.
	SymbolExists(ctx context.Context, symbol string) bool
	FetchSeries(ctx context.Context, symbol string) (*models.PriceSeries, error)
}

// QueryLog is the append-only audit trail of analysis requests.
type QueryLog interface {
	Record(ctx context.Context, symbol string, amount decimal.Decimal, generatedAt time.Time) error
}

// OpeningAverageStore caches the opening average per symbol. Get returns
// (zero, false, nil) on a miss.
type OpeningAverageStore interface {
	GetOpeningAverage(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
	SaveOpeningAverage(ctx context.Context, symbol string, avg decimal.Decimal) error
}

// ResultStore keeps computed results for audit and lookup.
type ResultStore interface {
	SaveResult(ctx context.Context, r *models.AnalysisResult) error
	// LatestResult returns (nil, nil) when no result newer than since exists.
	LatestResult(ctx context.Context, symbol string, amount decimal.Decimal, since time.Time) (*models.AnalysisResult, error)
}

// Storage is the SQL-backed implementation of every persisted contract.
type Storage interface {
	QueryLog
	OpeningAverageStore
	ResultStore
	Init(ctx context.Context) error // ensure tables
	Health(ctx context.Context) error
	Close() error
}

// TaskStore keeps the status of asynchronous analyses. Get returns (nil, nil)
// for unknown or expired ids.
type TaskStore interface {
	SaveTask(ctx context.Context, t *models.TaskStatus) error
	GetTask(ctx context.Context, id string) (*models.TaskStatus, error)
}

// Publisher ships query-log events to a broker.
type Publisher interface {
	PublishQueryLog(ctx context.Context, e *models.QueryLogEntry) error
	Close() error
}

type Metrics interface {
	ObserveAnalysis(symbol, outcome string, seconds float64)
	RecordUpstreamCall(op, outcome string)
	RecordCache(result string)
	RecordQueryLog(backend, outcome string)
	RecordError(kind string)
}
