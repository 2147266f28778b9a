package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	"DWML/pkg/cache"
)

const (
	openingAverageKeyPrefix = "opening_avg"
	taskKeyPrefix           = "task"

	// DefaultTaskTTL bounds how long finished task statuses stay readable.
	DefaultTaskTTL = 24 * time.Hour
)

// CacheAverageStore keeps opening averages in a cache.Service (Redis, memory or
// layered). Entries never expire: the first weeks of a listing do not change.
type CacheAverageStore struct {
	cache cache.Service
}

func NewCacheAverageStore(c cache.Service) *CacheAverageStore {
	return &CacheAverageStore{cache: c}
}

func (s *CacheAverageStore) GetOpeningAverage(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	var raw string
	err := s.cache.Get(ctx, cache.GenerateKey(openingAverageKeyPrefix, symbol), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get opening average %s: %w: %v", symbol, models.ErrPersistence, err)
	}
	avg, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("decode opening average %s: %w: %v", symbol, models.ErrPersistence, err)
	}
	return avg, true, nil
}

func (s *CacheAverageStore) SaveOpeningAverage(ctx context.Context, symbol string, avg decimal.Decimal) error {
	if err := s.cache.Set(ctx, cache.GenerateKey(openingAverageKeyPrefix, symbol), avg.String(), 0); err != nil {
		return fmt.Errorf("set opening average %s: %w: %v", symbol, models.ErrPersistence, err)
	}
	return nil
}

// TieredAverageStore reads opening averages from a fast cache and falls back to a
// durable store, backfilling the cache on a durable hit. Writes go to the durable
// store first; the cache copy is best effort.
type TieredAverageStore struct {
	fast    drepo.OpeningAverageStore
	durable drepo.OpeningAverageStore
}

func NewTieredAverageStore(fast, durable drepo.OpeningAverageStore) *TieredAverageStore {
	return &TieredAverageStore{fast: fast, durable: durable}
}

func (s *TieredAverageStore) GetOpeningAverage(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if avg, ok, err := s.fast.GetOpeningAverage(ctx, symbol); err == nil && ok {
		return avg, true, nil
	}
	avg, ok, err := s.durable.GetOpeningAverage(ctx, symbol)
	if err != nil || !ok {
		return avg, ok, err
	}
	_ = s.fast.SaveOpeningAverage(ctx, symbol, avg)
	return avg, true, nil
}

func (s *TieredAverageStore) SaveOpeningAverage(ctx context.Context, symbol string, avg decimal.Decimal) error {
	if err := s.durable.SaveOpeningAverage(ctx, symbol, avg); err != nil {
		return err
	}
	_ = s.fast.SaveOpeningAverage(ctx, symbol, avg)
	return nil
}

// CacheTaskStore keeps async task statuses as JSON with a TTL.
type CacheTaskStore struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheTaskStore(c cache.Service, ttl time.Duration) *CacheTaskStore {
	if ttl <= 0 {
		ttl = DefaultTaskTTL
	}
	return &CacheTaskStore{cache: c, ttl: ttl}
}

func (s *CacheTaskStore) SaveTask(ctx context.Context, t *models.TaskStatus) error {
	if err := s.cache.Set(ctx, cache.GenerateKey(taskKeyPrefix, t.ID), t, s.ttl); err != nil {
		return fmt.Errorf("save task %s: %w: %v", t.ID, models.ErrPersistence, err)
	}
	return nil
}

func (s *CacheTaskStore) GetTask(ctx context.Context, id string) (*models.TaskStatus, error) {
	var t models.TaskStatus
	err := s.cache.Get(ctx, cache.GenerateKey(taskKeyPrefix, id), &t)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w: %v", id, models.ErrPersistence, err)
	}
	return &t, nil
}

var (
	_ drepo.OpeningAverageStore = (*CacheAverageStore)(nil)
	_ drepo.OpeningAverageStore = (*TieredAverageStore)(nil)
	_ drepo.TaskStore           = (*CacheTaskStore)(nil)
)
