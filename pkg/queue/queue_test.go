package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol string `json:"symbol"`
}

type scriptedJob struct {
	mu       sync.Mutex
	failures int
	err      error
	attempts []int
	ids      []string
	done     chan struct{}
}

func (j *scriptedJob) Name() string { return "scripted" }
func (j *scriptedJob) Type() string { return "scripted" }

func (j *scriptedJob) Handle(ctx context.Context, p interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, Attempt(ctx))
	j.ids = append(j.ids, MessageID(ctx))
	if len(j.attempts) <= j.failures {
		return j.err
	}
	close(j.done)
	return nil
}

func newTestQueue(t *testing.T, retries int) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(nil, &QueueConfig{Workers: 2, RetryLimit: retries, RetryDelay: 5 * time.Millisecond})
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func TestMemoryQueueRetriesUntilSuccess(t *testing.T) {
	q := newTestQueue(t, 3)
	job := &scriptedJob{failures: 2, err: errors.New("upstream"), done: make(chan struct{})}
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	id, err := q.Enqueue(context.Background(), "scripted", payload{Symbol: "BTC"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, job.attempts)
	assert.Equal(t, []string{id, id, id}, job.ids)
}

func TestMemoryQueuePermanentErrorsAreNotRetried(t *testing.T) {
	q := newTestQueue(t, 3)
	job := &scriptedJob{failures: 10, err: Permanent(errors.New("bad input")), done: make(chan struct{})}
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	_, err := q.Enqueue(context.Background(), "scripted", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	job.mu.Lock()
	defer job.mu.Unlock()
	assert.Len(t, job.attempts, 1)
}

func TestMemoryQueueDeadLettersAfterRetryLimit(t *testing.T) {
	q := newTestQueue(t, 1)
	job := &scriptedJob{failures: 10, err: errors.New("upstream"), done: make(chan struct{})}
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	_, err := q.Enqueue(context.Background(), "scripted", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, q.DeadLetters()[0].Attempts)
}

func TestMemoryQueueEnqueueErrors(t *testing.T) {
	q := newTestQueue(t, 0)
	_, err := q.Enqueue(context.Background(), "scripted", nil)
	assert.Error(t, err, "not running")

	require.NoError(t, q.Start())
	_, err = q.Enqueue(context.Background(), "unknown", nil)
	assert.Error(t, err)
	assert.Error(t, q.Start(), "double start")
}

func TestPermanent(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}

func TestAttemptDefaults(t *testing.T) {
	assert.Equal(t, 1, Attempt(context.Background()))
	assert.Empty(t, MessageID(context.Background()))
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[payload](payload{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, "BTC", p.Symbol)

	p, err = ParsePayload[payload](json.RawMessage(`{"symbol":"ETH"}`))
	require.NoError(t, err)
	assert.Equal(t, "ETH", p.Symbol)

	p, err = ParsePayload[payload](map[string]interface{}{"symbol": "SOL"})
	require.NoError(t, err)
	assert.Equal(t, "SOL", p.Symbol)

	_, err = ParsePayload[payload](42)
	assert.Error(t, err)
}

func TestConvertPayload(t *testing.T) {
	out := convertPayload(map[string]interface{}{"symbol": "BTC"})
	raw, ok := out.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"symbol":"BTC"}`, string(raw))
	assert.Equal(t, "x", convertPayload("x"))
}
