package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DWML/internal/domain/models"
	xhttp "DWML/pkg/http"
)

type stubAnalyzer struct {
	err    error
	symbol string
	amount decimal.Decimal
}

func (s *stubAnalyzer) Analyze(_ context.Context, symbol string, amount decimal.Decimal) (*models.AnalysisResult, error) {
	s.symbol, s.amount = symbol, amount
	if s.err != nil {
		return nil, s.err
	}
	return &models.AnalysisResult{
		Symbol:      models.NormalizeSymbol(symbol),
		Investment:  amount,
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

type stubBatch struct{ items []models.AnalyzeRequest }

func (s *stubBatch) AnalyzeBatch(_ context.Context, items []models.AnalyzeRequest) ([]models.BatchItemResult, error) {
	s.items = items
	out := make([]models.BatchItemResult, len(items))
	for i, it := range items {
		out[i] = models.BatchItemResult{Symbol: it.Symbol, Error: "Symbol doesn't exist"}
	}
	return out, nil
}

type stubTasks struct {
	status *models.TaskStatus
	err    error
}

func (s *stubTasks) Submit(_ context.Context, symbol string, _ decimal.Decimal) (*models.TaskStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.TaskStatus{ID: "task-1", State: models.TaskQueued, Symbol: symbol}, nil
}

func (s *stubTasks) Status(_ context.Context, id string) (*models.TaskStatus, error) {
	if id != "task-1" {
		return nil, nil
	}
	return s.status, nil
}

type stubResults struct {
	res   *models.AnalysisResult
	since time.Time
}

func (s *stubResults) SaveResult(context.Context, *models.AnalysisResult) error { return nil }

func (s *stubResults) LatestResult(_ context.Context, _ string, _ decimal.Decimal, since time.Time) (*models.AnalysisResult, error) {
	s.since = since
	return s.res, nil
}

func newEcho(h xhttp.Handler) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = xhttp.ErrorHandler
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestProcessRequestSuccess(t *testing.T) {
	an := &stubAnalyzer{}
	e := newEcho(NewAnalysisEchoHandler(nil, an))

	for _, path := range []string{"/api/v1/process_request", "/process_request"} {
		rec := do(e, http.MethodGet, path+"?symbol=btc&investment=1000.50", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "BTC", body["SYMBOL"])
		assert.Equal(t, 1000.5, body["INVESTMENT"])
		assert.True(t, an.amount.Equal(decimal.RequireFromString("1000.50")))
	}
}

func TestProcessRequestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"invalid", fmt.Errorf("%w: amount must be positive", models.ErrInvalidInvestment), http.StatusBadRequest,
			`{"error":"invalid investment: amount must be positive"}`},
		{"not found", fmt.Errorf("%w: NOPE", models.ErrSymbolNotFound), http.StatusNotFound,
			`{"message":"Symbol doesn't exist"}`},
		{"insufficient", fmt.Errorf("%w: 2 samples", models.ErrInsufficientPriceData), http.StatusServiceUnavailable,
			`{"message":"Server Failure","error":"Insufficient price data"}`},
		{"external", fmt.Errorf("kraken: %w: timeout", models.ErrExternalService), http.StatusServiceUnavailable,
			`{"message":"Server Failure"}`},
		{"unexpected", errors.New("nil map write"), http.StatusInternalServerError,
			`{"message":"Server Failure"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho(NewAnalysisEchoHandler(nil, &stubAnalyzer{err: tc.err}))
			rec := do(e, http.MethodGet, "/api/v1/process_request?symbol=BTC&investment=10", "")
			assert.Equal(t, tc.code, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestProcessRequestValidation(t *testing.T) {
	an := &stubAnalyzer{}
	e := newEcho(NewAnalysisEchoHandler(nil, an))

	rec := do(e, http.MethodGet, "/api/v1/process_request?investment=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "symbol is required")
	assert.Empty(t, an.symbol)
}

func TestProcessRequestInvestmentFormats(t *testing.T) {
	an := &stubAnalyzer{}
	e := newEcho(NewAnalysisEchoHandler(nil, an))

	rec := do(e, http.MethodGet, "/api/v1/process_request?symbol=BTC&investment=1e3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, an.amount.Equal(decimal.NewFromInt(1000)))

	rec = do(e, http.MethodGet, "/api/v1/process_request?symbol=BTC&investment=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "investment must be a number")
}

func TestOptionalRoutesAreNotRegistered(t *testing.T) {
	e := newEcho(NewAnalysisEchoHandler(nil, &stubAnalyzer{}))
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/tasks/x", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/results/latest?symbol=BTC&investment=1", "").Code)
}

func TestProcessBatch(t *testing.T) {
	b := &stubBatch{}
	e := newEcho(NewAnalysisEchoHandler(nil, &stubAnalyzer{}, WithBatch(b)))

	rec := do(e, http.MethodPost, "/api/v1/process_request_batch",
		`{"items":[{"symbol":"BTC","investment":"1000"},{"symbol":"NOPE","investment":"5"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, b.items, 2)
	assert.JSONEq(t, `{"results":[{"symbol":"BTC","error":"Symbol doesn't exist"},{"symbol":"NOPE","error":"Symbol doesn't exist"}]}`, rec.Body.String())

	items := make([]string, 21)
	for i := range items {
		items[i] = `{"symbol":"BTC","investment":"1"}`
	}
	rec = do(e, http.MethodPost, "/api/v1/process_request_batch", `{"items":[`+strings.Join(items, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 20 items")
}

func TestAsyncEndpoints(t *testing.T) {
	tasks := &stubTasks{status: &models.TaskStatus{ID: "task-1", State: models.TaskRunning, Symbol: "BTC", Attempts: 1}}
	e := newEcho(NewAnalysisEchoHandler(nil, &stubAnalyzer{}, WithTasks(tasks)))

	rec := do(e, http.MethodPost, "/api/v1/process_request_async", `{"symbol":"BTC","investment":"1000"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"task_id":"task-1","status":"queued"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/v1/tasks/task-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)

	rec = do(e, http.MethodGet, "/api/v1/tasks/other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Task not found"}`, rec.Body.String())

	tasks.err = fmt.Errorf("%w: amount must be positive", models.ErrInvalidInvestment)
	rec = do(e, http.MethodPost, "/api/v1/process_request_async", `{"symbol":"BTC","investment":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestResult(t *testing.T) {
	rs := &stubResults{}
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	h := NewAnalysisEchoHandler(nil, &stubAnalyzer{}, WithResults(rs, 7*24*time.Hour))
	h.now = func() time.Time { return now }
	e := newEcho(h)

	rec := do(e, http.MethodGet, "/api/v1/results/latest?symbol=btc&investment=1000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, now.AddDate(0, 0, -7), rs.since)

	rs.res = &models.AnalysisResult{Symbol: "BTC", Investment: decimal.NewFromInt(1000), GeneratedAt: now}
	rec = do(e, http.MethodGet, "/api/v1/results/latest?symbol=btc&investment=1000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"SYMBOL":"BTC"`)
	assert.Equal(t, "private, max-age=60", rec.Header().Get(echo.HeaderCacheControl))
}

func TestHealth(t *testing.T) {
	e := newEcho(NewHealthEchoHandler(nil))
	rec := do(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"dwml-backend","version":"1.0.0"}`, rec.Body.String())

	e = newEcho(NewHealthEchoHandler(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}))
	rec = do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","service":"dwml-backend","version":"1.0.0","checks":{"database":"up","redis":"down"}}`, rec.Body.String())
}

func TestRoutesCombinesHandlers(t *testing.T) {
	e := newEcho(Routes{NewHealthEchoHandler(nil), NewAnalysisEchoHandler(nil, &stubAnalyzer{})})
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/process_request?symbol=ETH&investment=1", "").Code)
}
