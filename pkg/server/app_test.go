package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xhttp "DWML/pkg/http"
	"DWML/pkg/queue"
)

type fakeScheduler struct {
	started, stopped atomic.Bool
	stopErr          error
}

func (s *fakeScheduler) Start() { s.started.Store(true) }
func (s *fakeScheduler) Stop(context.Context) error {
	s.stopped.Store(true)
	return s.stopErr
}

type fakeSweeper struct{ n atomic.Int32 }

func (s *fakeSweeper) Sweep() int { s.n.Add(1); return 0 }

func newTestServer() *xhttp.Server {
	return xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics(false))
}

func TestAppStartAndShutdown(t *testing.T) {
	sched := &fakeScheduler{}
	q := queue.NewMemoryQueue(nil, &queue.QueueConfig{Workers: 1})
	app := New(nil, nil, newTestServer(), WithQueue(q), WithScheduler(sched), WithSweeper(&fakeSweeper{}))

	require.NoError(t, app.Start())
	assert.True(t, sched.started.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
	assert.True(t, sched.stopped.Load())

	_, err := q.Enqueue(context.Background(), "anything", nil)
	assert.Error(t, err)
}

func TestAppShutdownReportsEveryFailure(t *testing.T) {
	first := &fakeScheduler{stopErr: errors.New("first")}
	second := &fakeScheduler{stopErr: errors.New("second")}
	app := New(nil, nil, newTestServer(), WithScheduler(first), WithScheduler(second))
	require.NoError(t, app.Start())

	err := app.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
	assert.True(t, second.stopped.Load())
}
