package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	"DWML/pkg/database"
	applogger "DWML/pkg/logger"
)

// dialect carries the statements that differ between the supported SQL engines.
type dialect struct {
	schema        []string
	upsertAverage string
}

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol          TEXT    NOT NULL,
			investment      TEXT    NOT NULL,
			generated_at_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS opening_average (
			symbol        TEXT    PRIMARY KEY NOT NULL,
			average       TEXT    NOT NULL,
			updated_at_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol          TEXT    NOT NULL,
			investment      TEXT    NOT NULL,
			coins           TEXT    NOT NULL,
			profit          TEXT    NOT NULL,
			growth_factor   TEXT    NOT NULL,
			lambos          TEXT    NOT NULL,
			opening_average TEXT    NOT NULL,
			current_average TEXT    NOT NULL,
			generated_at_ms INTEGER NOT NULL,
			graph_data      TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_lookup ON results (symbol, investment, generated_at_ms)`,
	},
	upsertAverage: `INSERT INTO opening_average (symbol, average, updated_at_ms) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET average = excluded.average, updated_at_ms = excluded.updated_at_ms`,
}

var clickHouseDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			symbol          LowCardinality(String),
			investment      String,
			generated_at_ms Int64
		) ENGINE = MergeTree ORDER BY (symbol, generated_at_ms)`,
		`CREATE TABLE IF NOT EXISTS opening_average (
			symbol        String,
			average       String,
			updated_at_ms Int64
		) ENGINE = ReplacingMergeTree(updated_at_ms) ORDER BY symbol`,
		`CREATE TABLE IF NOT EXISTS results (
			symbol          LowCardinality(String),
			investment      String,
			coins           String,
			profit          String,
			growth_factor   String,
			lambos          String,
			opening_average String,
			current_average String,
			generated_at_ms Int64,
			graph_data      String
		) ENGINE = MergeTree ORDER BY (symbol, investment, generated_at_ms)`,
	},
	// ReplacingMergeTree collapses rows per symbol; readers order by updated_at_ms.
	upsertAverage: `INSERT INTO opening_average (symbol, average, updated_at_ms) VALUES (?, ?, ?)`,
}

// SQLStore implements Storage on database/sql for sqlite and ClickHouse.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	l       *applogger.Logger
}

// NewSQLStore creates the store for the given driver name.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, now: time.Now}
	switch driver {
	case database.DriverSQLite:
		s.dialect = sqliteDialect
	case database.DriverClickHouse:
		s.dialect = clickHouseDialect
	default:
		return nil, fmt.Errorf("sql store: unsupported driver %q", driver)
	}
	return s, nil
}

// NewSQLStoreFromClient creates the store on a pooled database client.
func NewSQLStoreFromClient(c *database.Client) (*SQLStore, error) {
	return NewSQLStore(c.DB(), c.Driver())
}

// SetLogger injects a structured logger.
func (s *SQLStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLStore) Init(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Record appends one query log row.
func (s *SQLStore) Record(ctx context.Context, symbol string, amount decimal.Decimal, generatedAt time.Time) error {
	const q = `INSERT INTO query_log (symbol, investment, generated_at_ms) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, symbol, amount.String(), generatedAt.UnixMilli()); err != nil {
		return s.fail("insert query_log", err)
	}
	return nil
}

func (s *SQLStore) GetOpeningAverage(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	const q = `SELECT average FROM opening_average WHERE symbol = ? ORDER BY updated_at_ms DESC LIMIT 1`
	var avg decimal.Decimal
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&avg)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, s.fail("select opening_average", err)
	}
	return avg, true, nil
}

// SaveOpeningAverage overwrites the cached average. Last writer wins.
func (s *SQLStore) SaveOpeningAverage(ctx context.Context, symbol string, avg decimal.Decimal) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertAverage, symbol, avg.String(), s.now().UnixMilli()); err != nil {
		return s.fail("upsert opening_average", err)
	}
	return nil
}

func (s *SQLStore) SaveResult(ctx context.Context, r *models.AnalysisResult) error {
	chart, err := json.Marshal(r.Chart)
	if err != nil {
		return fmt.Errorf("encode graph_data: %w: %v", models.ErrPersistence, err)
	}
	const q = `INSERT INTO results (symbol, investment, coins, profit, growth_factor, lambos,
		opening_average, current_average, generated_at_ms, graph_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		r.Symbol,
		r.Investment.String(),
		r.Coins.String(),
		r.Profit.String(),
		r.GrowthFactor.String(),
		r.Lambos.String(),
		r.OpeningAverage.String(),
		r.CurrentAverage.String(),
		r.GeneratedAt.UnixMilli(),
		string(chart),
	)
	if err != nil {
		return s.fail("insert results", err)
	}
	return nil
}

func (s *SQLStore) LatestResult(ctx context.Context, symbol string, amount decimal.Decimal, since time.Time) (*models.AnalysisResult, error) {
	const q = `SELECT symbol, investment, coins, profit, growth_factor, lambos,
		opening_average, current_average, generated_at_ms, graph_data
		FROM results
		WHERE symbol = ? AND investment = ? AND generated_at_ms >= ?
		ORDER BY generated_at_ms DESC
		LIMIT 1`

	var (
		r     models.AnalysisResult
		ms    int64
		chart string
	)
	err := s.db.QueryRowContext(ctx, q, symbol, amount.String(), since.UnixMilli()).Scan(
		&r.Symbol,
		&r.Investment,
		&r.Coins,
		&r.Profit,
		&r.GrowthFactor,
		&r.Lambos,
		&r.OpeningAverage,
		&r.CurrentAverage,
		&ms,
		&chart,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("select results", err)
	}
	if err := json.Unmarshal([]byte(chart), &r.Chart); err != nil {
		return nil, fmt.Errorf("decode graph_data: %w: %v", models.ErrPersistence, err)
	}
	r.GeneratedAt = time.UnixMilli(ms).UTC()
	return &r, nil
}

func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op: the pool belongs to database.Client.
func (s *SQLStore) Close() error {
	return nil
}

func (s *SQLStore) fail(op string, err error) error {
	if s.l != nil {
		s.l.Error("sql store error", applogger.String("op", op), applogger.Error(err))
	}
	return fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
}

var _ drepo.Storage = (*SQLStore)(nil)
