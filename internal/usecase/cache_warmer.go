package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"DWML/internal/domain/models"
	applogger "DWML/pkg/logger"
)

// SeriesWarmer fills the opening-average cache for a symbol.
type SeriesWarmer interface {
	Warm(ctx context.Context, symbol string) error
}

// Locker serializes warm runs across instances sharing a cache.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

const warmLockKey = "lock:cache_warmer"

// CacheWarmer periodically computes opening averages for a configured symbol list.
type CacheWarmer struct {
	cron    *cron.Cron
	warmer  SeriesWarmer
	symbols []string
	spec    string
	timeout time.Duration
	locker  Locker
	l       *applogger.Logger

	mu      sync.Mutex
	lastRun WarmReport
}

// WarmReport summarizes one run.
type WarmReport struct {
	StartedAt time.Time
	Warmed    int
	Failed    map[string]string
	Skipped   bool
}

type WarmerOption func(*CacheWarmer)

// WithWarmerLock skips a run when another instance holds the lock.
func WithWarmerLock(l Locker) WarmerOption {
	return func(w *CacheWarmer) { w.locker = l }
}

// WithWarmTimeout bounds one whole run.
func WithWarmTimeout(d time.Duration) WarmerOption {
	return func(w *CacheWarmer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithWarmerLogger(l *applogger.Logger) WarmerOption {
	return func(w *CacheWarmer) { w.l = l }
}

// NewCacheWarmer validates the cron spec (standard 5-field or @every/@hourly descriptors).
func NewCacheWarmer(warmer SeriesWarmer, symbols []string, spec string, opts ...WarmerOption) (*CacheWarmer, error) {
	w := &CacheWarmer{
		cron:    cron.New(),
		warmer:  warmer,
		spec:    spec,
		timeout: 5 * time.Minute,
	}
	for _, s := range symbols {
		if n := models.NormalizeSymbol(s); n != "" {
			w.symbols = append(w.symbols, n)
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.cron.AddFunc(spec, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("register cache warmer %q: %w", spec, err)
	}
	return w, nil
}

func (w *CacheWarmer) Start() {
	w.cron.Start()
	if w.l != nil {
		w.l.Info("cache warmer started",
			applogger.String("schedule", w.spec),
			applogger.Strings("symbols", w.symbols),
		)
	}
}

// Stop waits for a running job until ctx expires.
func (w *CacheWarmer) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cache warmer stop: %w", ctx.Err())
	}
}

// RunOnce warms every configured symbol sequentially.
func (w *CacheWarmer) RunOnce(ctx context.Context) WarmReport {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	report := WarmReport{StartedAt: time.Now().UTC(), Failed: map[string]string{}}

	if w.locker != nil {
		ok, err := w.locker.TryLock(ctx, warmLockKey, w.timeout)
		if err != nil || !ok {
			report.Skipped = true
			w.store(report)
			return report
		}
		defer func() { _ = w.locker.Unlock(context.Background(), warmLockKey) }()
	}

	for _, s := range w.symbols {
		if err := w.warmer.Warm(ctx, s); err != nil {
			report.Failed[s] = models.Kind(err)
			if w.l != nil {
				w.l.Warn("cache warm failed", applogger.String("symbol", s), applogger.Error(err))
			}
			continue
		}
		report.Warmed++
	}

	if w.l != nil {
		w.l.Info("cache warm finished",
			applogger.Int("warmed", report.Warmed),
			applogger.Int("failed", len(report.Failed)),
		)
	}
	w.store(report)
	return report
}

// LastRun returns the report of the most recent run.
func (w *CacheWarmer) LastRun() WarmReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

func (w *CacheWarmer) store(r WarmReport) {
	w.mu.Lock()
	w.lastRun = r
	w.mu.Unlock()
}
