package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	domsvc "DWML/internal/domain/service"
	applogger "DWML/pkg/logger"
	"DWML/pkg/queue"
)

// AnalysisJobType is the queue message type for asynchronous analyses.
const AnalysisJobType = "analysis"

// AnalysisJobPayload is the queued request. Investment stays a string so the exact
// decimal survives JSON.
type AnalysisJobPayload struct {
	TaskID     string `json:"task_id"`
	Symbol     string `json:"symbol"`
	Investment string `json:"investment"`
}

// AsyncAnalysis accepts analyses for background execution and reports their status.
type AsyncAnalysis struct {
	queue queue.Queue
	tasks drepo.TaskStore
	now   func() time.Time
}

func NewAsyncAnalysis(q queue.Queue, tasks drepo.TaskStore) *AsyncAnalysis {
	return &AsyncAnalysis{queue: q, tasks: tasks, now: time.Now}
}

// Submit validates the request, records it as queued and enqueues it.
func (a *AsyncAnalysis) Submit(ctx context.Context, symbol string, amount decimal.Decimal) (*models.TaskStatus, error) {
	inv, err := models.NewInvestmentRequest(symbol, amount)
	if err != nil {
		return nil, err
	}

	status := &models.TaskStatus{
		ID:        uuid.NewString(),
		State:     models.TaskQueued,
		Symbol:    inv.Symbol,
		UpdatedAt: a.now().UTC(),
	}
	// saved first so a fast worker never finds an unknown task
	if err := a.tasks.SaveTask(ctx, status); err != nil {
		return nil, err
	}

	payload := AnalysisJobPayload{TaskID: status.ID, Symbol: inv.Symbol, Investment: inv.Amount.String()}
	if _, err := a.queue.Enqueue(ctx, AnalysisJobType, payload); err != nil {
		return nil, fmt.Errorf("enqueue analysis: %w: %v", models.ErrPersistence, err)
	}
	return status, nil
}

// Status returns the task, or (nil, nil) if the id is unknown or expired.
func (a *AsyncAnalysis) Status(ctx context.Context, id string) (*models.TaskStatus, error) {
	return a.tasks.GetTask(ctx, id)
}

// AnalysisJob runs queued analyses. Only external-service failures are retried, and
// at most maxRetries times.
type AnalysisJob struct {
	analyzer   domsvc.Analyzer
	tasks      drepo.TaskStore
	maxRetries int
	now        func() time.Time
	l          *applogger.Logger
}

func NewAnalysisJob(analyzer domsvc.Analyzer, tasks drepo.TaskStore, maxRetries int, l *applogger.Logger) *AnalysisJob {
	return &AnalysisJob{analyzer: analyzer, tasks: tasks, maxRetries: maxRetries, now: time.Now, l: l}
}

func (j *AnalysisJob) Name() string { return "analysis_job" }
func (j *AnalysisJob) Type() string { return AnalysisJobType }

func (j *AnalysisJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AnalysisJobPayload](payload)
	if err != nil {
		return queue.Permanent(fmt.Errorf("analysis job payload: %w", err))
	}
	attempt := queue.Attempt(ctx)
	status := &models.TaskStatus{ID: p.TaskID, Symbol: p.Symbol, Attempts: attempt}

	amount, err := decimal.NewFromString(p.Investment)
	if err != nil {
		err = fmt.Errorf("%w: investment %q is not a number", models.ErrInvalidInvestment, p.Investment)
		j.finish(ctx, status, nil, err)
		return queue.Permanent(err)
	}

	status.State = models.TaskRunning
	j.save(ctx, status)

	res, err := j.analyzer.Analyze(ctx, p.Symbol, amount)
	if err == nil {
		j.finish(ctx, status, res, nil)
		return nil
	}

	if models.Retryable(err) && attempt <= j.maxRetries {
		status.State = models.TaskRetrying
		status.Error = models.PublicMessage(err)
		j.save(ctx, status)
		return err
	}

	j.finish(ctx, status, nil, err)
	return queue.Permanent(err)
}

func (j *AnalysisJob) finish(ctx context.Context, status *models.TaskStatus, res *models.AnalysisResult, err error) {
	if err != nil {
		status.State = models.TaskFailed
		status.Error = models.PublicMessage(err)
	} else {
		status.State = models.TaskSucceeded
		status.Result = res
		status.Error = ""
	}
	j.save(ctx, status)

	if j.l != nil {
		j.l.Info("analysis task finished",
			applogger.String("task_id", status.ID),
			applogger.String("symbol", status.Symbol),
			applogger.String("status", string(status.State)),
			applogger.Int("attempts", status.Attempts),
			applogger.String("kind", models.Kind(err)),
		)
	}
}

func (j *AnalysisJob) save(ctx context.Context, status *models.TaskStatus) {
	status.UpdatedAt = j.now().UTC()
	if err := j.tasks.SaveTask(ctx, status); err != nil && j.l != nil {
		j.l.Warn("task status save failed",
			applogger.String("task_id", status.ID),
			applogger.Error(err),
		)
	}
}

var _ queue.Job = (*AnalysisJob)(nil)
