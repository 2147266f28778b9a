package http

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string            `json:"status" example:"healthy"`
	Service string            `json:"service" example:"dwml-backend"`
	Version string            `json:"version" example:"1.0.0"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// AcceptedResponse is returned when work is queued.
type AcceptedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}
