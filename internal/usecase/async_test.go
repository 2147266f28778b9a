package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DWML/internal/domain/models"
	"DWML/internal/repository"
	"DWML/pkg/cache"
	"DWML/pkg/queue"
)

type scriptedAnalyzer struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (a *scriptedAnalyzer) Analyze(_ context.Context, symbol string, amount decimal.Decimal) (*models.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= len(a.errs) && a.errs[a.calls-1] != nil {
		return nil, a.errs[a.calls-1]
	}
	return &models.AnalysisResult{Symbol: models.NormalizeSymbol(symbol), Investment: amount}, nil
}

func newTaskStore(t *testing.T) *repository.CacheTaskStore {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	return repository.NewCacheTaskStore(mem, time.Hour)
}

func runAsync(t *testing.T, analyzer *scriptedAnalyzer, retries int) (*AsyncAnalysis, *queue.MemoryQueue) {
	t.Helper()
	tasks := newTaskStore(t)
	q := queue.NewMemoryQueue(nil, &queue.QueueConfig{Workers: 1, RetryLimit: retries, RetryDelay: 5 * time.Millisecond})
	q.RegisterJob(NewAnalysisJob(analyzer, tasks, retries, nil))
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return NewAsyncAnalysis(q, tasks), q
}

func waitDone(t *testing.T, a *AsyncAnalysis, id string) *models.TaskStatus {
	t.Helper()
	var st *models.TaskStatus
	require.Eventually(t, func() bool {
		var err error
		st, err = a.Status(context.Background(), id)
		return err == nil && st != nil && st.Done()
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestAsyncAnalysisSucceeds(t *testing.T) {
	a, _ := runAsync(t, &scriptedAnalyzer{}, 3)

	st, err := a.Submit(context.Background(), "btc", dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, models.TaskQueued, st.State)
	assert.Equal(t, "BTC", st.Symbol)

	done := waitDone(t, a, st.ID)
	assert.Equal(t, models.TaskSucceeded, done.State)
	require.NotNil(t, done.Result)
	assert.Equal(t, "BTC", done.Result.Symbol)
	assert.Equal(t, 1, done.Attempts)
}

func TestAsyncAnalysisRetriesExternalFailures(t *testing.T) {
	ext := fmt.Errorf("kraken: %w", models.ErrExternalService)
	an := &scriptedAnalyzer{errs: []error{ext, ext}}
	a, _ := runAsync(t, an, 3)

	st, err := a.Submit(context.Background(), "BTC", dec("1000"))
	require.NoError(t, err)

	done := waitDone(t, a, st.ID)
	assert.Equal(t, models.TaskSucceeded, done.State)
	assert.Equal(t, 3, done.Attempts)
}

func TestAsyncAnalysisGivesUpAfterMaxRetries(t *testing.T) {
	ext := fmt.Errorf("kraken: %w", models.ErrExternalService)
	an := &scriptedAnalyzer{errs: []error{ext, ext, ext}}
	a, q := runAsync(t, an, 2)

	st, err := a.Submit(context.Background(), "BTC", dec("1000"))
	require.NoError(t, err)

	done := waitDone(t, a, st.ID)
	assert.Equal(t, models.TaskFailed, done.State)
	assert.Equal(t, "Server Failure", done.Error)
	assert.Equal(t, 3, done.Attempts)
	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncAnalysisDoesNotRetryDomainErrors(t *testing.T) {
	an := &scriptedAnalyzer{errs: []error{fmt.Errorf("%w: NOPE", models.ErrSymbolNotFound)}}
	a, _ := runAsync(t, an, 3)

	st, err := a.Submit(context.Background(), "NOPE", dec("1"))
	require.NoError(t, err)

	done := waitDone(t, a, st.ID)
	assert.Equal(t, models.TaskFailed, done.State)
	assert.Equal(t, "Symbol doesn't exist", done.Error)
	assert.Equal(t, 1, an.calls)
}

func TestAsyncAnalysisRejectsInvalidInput(t *testing.T) {
	a, _ := runAsync(t, &scriptedAnalyzer{}, 3)
	_, err := a.Submit(context.Background(), "BTC", dec("-1"))
	assert.ErrorIs(t, err, models.ErrInvalidInvestment)

	st, err := a.Status(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestAnalysisJobRejectsBadPayload(t *testing.T) {
	job := NewAnalysisJob(&scriptedAnalyzer{}, newTaskStore(t), 3, nil)
	err := job.Handle(context.Background(), 42)
	assert.True(t, queue.IsPermanent(err))

	err = job.Handle(context.Background(), AnalysisJobPayload{TaskID: "t", Symbol: "BTC", Investment: "lots"})
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, models.ErrInvalidInvestment)
}

func TestBatchAnalyzer(t *testing.T) {
	an := &scriptedAnalyzer{errs: []error{nil, fmt.Errorf("%w: X", models.ErrSymbolNotFound)}}
	b := NewBatchAnalyzer(an)

	out, err := b.AnalyzeBatch(context.Background(), []models.AnalyzeRequest{
		{Symbol: "btc", Investment: "1000"},
		{Symbol: "x", Investment: "5"},
		{Symbol: "eth", Investment: "abc"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].Result)
	assert.Equal(t, "BTC", out[0].Symbol)
	assert.Equal(t, "Symbol doesn't exist", out[1].Error)
	assert.Contains(t, out[2].Error, "not a number")
	assert.Equal(t, 2, an.calls)

	_, err = b.AnalyzeBatch(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInvestment)
	_, err = b.AnalyzeBatch(context.Background(), make([]models.AnalyzeRequest, MaxBatchItems+1))
	assert.ErrorIs(t, err, models.ErrInvalidInvestment)
}

type fakeWarmer struct {
	mu      sync.Mutex
	symbols []string
	fail    map[string]error
}

func (w *fakeWarmer) Warm(_ context.Context, s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.symbols = append(w.symbols, s)
	return w.fail[s]
}

func TestCacheWarmerRunOnce(t *testing.T) {
	fw := &fakeWarmer{fail: map[string]error{"DOGE": models.ErrExternalService}}
	w, err := NewCacheWarmer(fw, []string{"btc", " ", "eth", "doge"}, "@every 6h")
	require.NoError(t, err)

	r := w.RunOnce(context.Background())
	assert.Equal(t, []string{"BTC", "ETH", "DOGE"}, fw.symbols)
	assert.Equal(t, 2, r.Warmed)
	assert.Equal(t, map[string]string{"DOGE": "external_service"}, r.Failed)
	assert.Equal(t, r, w.LastRun())
}

func TestCacheWarmerSkipsWhenLocked(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	ok, err := mem.TryLock(context.Background(), warmLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	fw := &fakeWarmer{}
	w, err := NewCacheWarmer(fw, []string{"BTC"}, "@every 1h", WithWarmerLock(mem))
	require.NoError(t, err)

	r := w.RunOnce(context.Background())
	assert.True(t, r.Skipped)
	assert.Empty(t, fw.symbols)
}

func TestCacheWarmerRejectsBadSpec(t *testing.T) {
	_, err := NewCacheWarmer(&fakeWarmer{}, nil, "not a schedule")
	assert.Error(t, err)
}

func TestCacheWarmerStartStop(t *testing.T) {
	w, err := NewCacheWarmer(&fakeWarmer{}, nil, "@every 1h")
	require.NoError(t, err)
	w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Stop(ctx))
}
