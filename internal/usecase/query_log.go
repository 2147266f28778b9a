package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	pkgkafka "DWML/pkg/kafka"
	applogger "DWML/pkg/logger"
)

const (
	QueryLogBackendSQL   = "sql"
	QueryLogBackendKafka = "kafka"
)

// QueryLogRouter implements QueryLog by writing to the SQL store directly or by
// publishing to Kafka for QueryLogSink to persist.
type QueryLogRouter struct {
	store   drepo.QueryLog
	pub     drepo.Publisher
	metrics drepo.Metrics
	backend string
}

// NewQueryLogRouter creates a router for the configured backend.
func NewQueryLogRouter(store drepo.QueryLog, pub drepo.Publisher, metrics drepo.Metrics, backend string) (*QueryLogRouter, error) {
	switch backend {
	case QueryLogBackendSQL:
		if store == nil {
			return nil, fmt.Errorf("query log backend %q needs a store", backend)
		}
	case QueryLogBackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("query log backend %q needs a publisher", backend)
		}
	default:
		return nil, fmt.Errorf("unknown query log backend: %s", backend)
	}
	return &QueryLogRouter{store: store, pub: pub, metrics: metrics, backend: backend}, nil
}

func (r *QueryLogRouter) Record(ctx context.Context, symbol string, amount decimal.Decimal, generatedAt time.Time) error {
	var err error
	switch r.backend {
	case QueryLogBackendKafka:
		err = r.pub.PublishQueryLog(ctx, &models.QueryLogEntry{
			Symbol:      symbol,
			Investment:  amount,
			GeneratedAt: generatedAt.UTC(),
		})
	default:
		err = r.store.Record(ctx, symbol, amount, generatedAt)
	}

	if r.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.metrics.RecordQueryLog(r.backend, outcome)
	}
	if err != nil {
		return fmt.Errorf("query log via %s: %w", r.backend, err)
	}
	return nil
}

// QueryLogSink consumes query log events from Kafka and writes them to storage.
type QueryLogSink struct {
	topic   string
	store   drepo.QueryLog
	metrics drepo.Metrics
	l       *applogger.Logger
}

func NewQueryLogSink(topic string, store drepo.QueryLog, metrics drepo.Metrics, l *applogger.Logger) *QueryLogSink {
	return &QueryLogSink{topic: topic, store: store, metrics: metrics, l: l}
}

func (h *QueryLogSink) Topic() string { return h.topic }

// Handle decodes {symbol, investment, generated_at} and appends it to the store.
func (h *QueryLogSink) Handle(ctx context.Context, b []byte) error {
	var e models.QueryLogEntry
	if err := json.Unmarshal(b, &e); err != nil {
		h.recordError("sink_decode")
		return fmt.Errorf("decode query log entry: %w", err)
	}
	if e.Symbol == "" || e.GeneratedAt.IsZero() {
		h.recordError("sink_decode")
		return fmt.Errorf("query log entry missing symbol or generated_at")
	}

	if err := h.store.Record(ctx, e.Symbol, e.Investment, e.GeneratedAt); err != nil {
		h.recordError("sink_store")
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordQueryLog("kafka_sink", "ok")
	}
	if h.l != nil {
		h.l.Debug("query log entry stored",
			applogger.String("symbol", e.Symbol),
			applogger.Decimal("investment", e.Investment),
		)
	}
	return nil
}

func (h *QueryLogSink) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var (
	_ drepo.QueryLog          = (*QueryLogRouter)(nil)
	_ pkgkafka.MessageHandler = (*QueryLogSink)(nil)
)
