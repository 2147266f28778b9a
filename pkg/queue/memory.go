package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DWML/pkg/logger"
)

// MemoryQueue is an in-process Queue with the same retry semantics as RedisQueue.
// Messages do not survive a restart; it serves single-instance deployments and tests.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool
	msgs      chan Message
	dead      []Message
	timers    map[*time.Timer]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: cfg,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, cfg.QueueSize),
		timers: make(map[*time.Timer]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels pending retries and waits for in-flight jobs.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	for t := range q.timers {
		t.Stop()
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	q.mu.RLock()
	running := q.isRunning
	_, exists := q.jobs[msgType]
	q.mu.RUnlock()

	if !running {
		return "", fmt.Errorf("queue not running")
	}
	if !exists {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg := Message{ID: newMessageID(), Type: msgType, Payload: payload, Timestamp: time.Now()}
	select {
	case q.msgs <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("queue full")
	}
}

func (q *MemoryQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	_, err := q.Enqueue(ctx, msgType, payload)
	return err
}

// DeadLetters returns a copy of the messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	err := job.Handle(withMessage(q.ctx, msg), msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	q.logger.Warn("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if !IsPermanent(err) && msg.Attempts < q.config.RetryLimit {
		msg.Attempts++
		q.scheduleRetry(msg)
		return
	}

	q.mu.Lock()
	q.dead = append(q.dead, msg)
	q.mu.Unlock()
}

func (q *MemoryQueue) scheduleRetry(msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.isRunning {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(q.config.RetryDelay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()
		select {
		case q.msgs <- msg:
		case <-q.ctx.Done():
		}
	})
	q.timers[t] = struct{}{}
}

var _ Queue = (*MemoryQueue)(nil)
