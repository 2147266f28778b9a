package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	domrepo "DWML/internal/domain/repository"
	domsvc "DWML/internal/domain/service"
	xhttp "DWML/pkg/http"
	xlogger "DWML/pkg/logger"
)

// BatchRunner runs several analyses in one request.
type BatchRunner interface {
	AnalyzeBatch(ctx context.Context, items []models.AnalyzeRequest) ([]models.BatchItemResult, error)
}

// TaskRunner accepts background analyses and reports their progress.
type TaskRunner interface {
	Submit(ctx context.Context, symbol string, amount decimal.Decimal) (*models.TaskStatus, error)
	Status(ctx context.Context, id string) (*models.TaskStatus, error)
}

// AnalysisEchoHandler serves the analysis endpoints.
type AnalysisEchoHandler struct {
	logger    *xlogger.Logger
	analyzer  domsvc.Analyzer
	batch     BatchRunner
	tasks     TaskRunner
	results   domrepo.ResultStore
	resultAge time.Duration
	now       func() time.Time
}

type HandlerOption func(*AnalysisEchoHandler)

// WithBatch enables POST /api/v1/process_request_batch.
func WithBatch(b BatchRunner) HandlerOption {
	return func(h *AnalysisEchoHandler) { h.batch = b }
}

// WithTasks enables the asynchronous endpoints.
func WithTasks(t TaskRunner) HandlerOption {
	return func(h *AnalysisEchoHandler) { h.tasks = t }
}

// WithResults enables GET /api/v1/results/latest for results younger than maxAge.
func WithResults(rs domrepo.ResultStore, maxAge time.Duration) HandlerOption {
	return func(h *AnalysisEchoHandler) {
		h.results = rs
		h.resultAge = maxAge
	}
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, analyzer domsvc.Analyzer, opts ...HandlerOption) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &AnalysisEchoHandler{
		logger:    logger,
		analyzer:  analyzer,
		resultAge: 7 * 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/process_request", h.ProcessRequest)

	g := e.Group("/api/v1")
	g.GET("/process_request", h.ProcessRequest)
	if h.batch != nil {
		g.POST("/process_request_batch", h.ProcessBatch)
	}
	if h.tasks != nil {
		g.POST("/process_request_async", h.ProcessAsync)
		g.GET("/tasks/:id", h.TaskStatus)
	}
	if h.results != nil {
		g.GET("/results/latest", h.LatestResult)
	}
}

// ProcessRequest runs one analysis synchronously.
func (h *AnalysisEchoHandler) ProcessRequest(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	amount, err := xhttp.ParseDecimal("investment", req.Investment)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), req.Symbol, amount)
	if err != nil {
		return h.fail(c, "analysis failed", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) ProcessBatch(c echo.Context) error {
	req := &models.BatchAnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	out, err := h.batch.AnalyzeBatch(c.Request().Context(), req.Items)
	if err != nil {
		return h.fail(c, "batch analysis failed", "", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"results": out})
}

func (h *AnalysisEchoHandler) ProcessAsync(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	amount, err := xhttp.ParseDecimal("investment", req.Investment)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	status, err := h.tasks.Submit(c.Request().Context(), req.Symbol, amount)
	if err != nil {
		return h.fail(c, "enqueue analysis failed", req.Symbol, err)
	}
	return xhttp.AcceptedTaskResponse(c, status.ID)
}

func (h *AnalysisEchoHandler) TaskStatus(c echo.Context) error {
	req := &models.TaskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	status, err := h.tasks.Status(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "task lookup failed", "", err)
	}
	if status == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("Task not found"))
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *AnalysisEchoHandler) LatestResult(c echo.Context) error {
	req := &models.LatestResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	amount, err := xhttp.ParseDecimal("investment", req.Investment)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	since := h.now().Add(-h.resultAge)
	res, err := h.results.LatestResult(c.Request().Context(), models.NormalizeSymbol(req.Symbol), amount, since)
	if err != nil {
		return h.fail(c, "result lookup failed", req.Symbol, err)
	}
	if res == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("No recent result"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) fail(c echo.Context, msg, symbol string, err error) error {
	appErr := toAppError(err)
	fields := []xlogger.Field{
		xlogger.String("path", c.Path()),
		xlogger.String("kind", models.Kind(err)),
		xlogger.Error(err),
	}
	if symbol != "" {
		fields = append(fields, xlogger.String("symbol", models.NormalizeSymbol(symbol)))
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Info(msg, fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}
