package models

import "time"

// Requests for the analysis HTTP endpoints.

type AnalyzeRequest struct {
	Symbol     string `query:"symbol" json:"symbol" validate:"required"`
	Investment string `query:"investment" json:"investment" validate:"required"`
}

type BatchAnalyzeRequest struct {
	Items []AnalyzeRequest `json:"items" validate:"required,min=1,max=20,dive"`
}

type LatestResultRequest struct {
	Symbol     string `query:"symbol" validate:"required"`
	Investment string `query:"investment" validate:"required"`
}

type TaskRequest struct {
	ID string `param:"id" validate:"required"`
}

// BatchItemResult carries either a result or an error message for one batch item.
type BatchItemResult struct {
	Symbol string          `json:"symbol"`
	Result *AnalysisResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// TaskState is the lifecycle of an asynchronous analysis.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskRetrying  TaskState = "retrying"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is what GET /api/v1/tasks/:id reports.
type TaskStatus struct {
	ID        string          `json:"task_id"`
	State     TaskState       `json:"status"`
	Symbol    string          `json:"symbol"`
	Attempts  int             `json:"attempts"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Done reports whether the task reached a terminal state.
func (s TaskStatus) Done() bool {
	return s.State == TaskSucceeded || s.State == TaskFailed
}
