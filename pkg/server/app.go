package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DWML/pkg/config"
	xhttp "DWML/pkg/http"
	pkgkafka "DWML/pkg/kafka"
	applogger "DWML/pkg/logger"
	"DWML/pkg/queue"
)

// Scheduler is a background job runner such as the cache warmer.
type Scheduler interface {
	Start()
	Stop(ctx context.Context) error
}

// Sweeper drops idle state, e.g. per-client rate limit buckets.
type Sweeper interface {
	Sweep() int
}

type Option func(*App)

func WithQueue(q queue.Queue) Option {
	return func(a *App) { a.queue = q }
}

func WithConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) { a.consumer = c }
}

func WithScheduler(s Scheduler) Option {
	return func(a *App) { a.schedulers = append(a.schedulers, s) }
}

// WithSweeper runs s every sweepInterval while the app is up.
func WithSweeper(s Sweeper) Option {
	return func(a *App) { a.sweeper = s }
}

const sweepInterval = 5 * time.Minute

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	queue      queue.Queue
	consumer   *pkgkafka.Consumer
	schedulers []Scheduler
	sweeper    Sweeper

	stopSweep context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, l: l, httpServer: srv}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	return a.Shutdown(ctx)
}

// Start launches the queue workers, the Kafka consumer, schedulers and finally the
// HTTP server.
func (a *App) Start() error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return err
		}
	}
	for _, s := range a.schedulers {
		s.Start()
	}
	if a.sweeper != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopSweep = cancel
		go a.sweepLoop(ctx)
	}
	return a.httpServer.Start()
}

// Shutdown stops intake first, then background workers. Every component gets a
// chance to stop even if an earlier one failed.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.stopSweep != nil {
		a.stopSweep()
	}
	for _, s := range a.schedulers {
		if err := s.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.l.RemoveCollector()

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) sweepLoop(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.sweeper.Sweep(); n > 0 {
				a.l.Debug("swept idle rate limit entries", applogger.Int("count", n))
			}
		}
	}
}
