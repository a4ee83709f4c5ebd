package models

import (
	"net/http"
	"time"

	"todoservice/shared/types"
)

// ErrorResponse is the body of every 4xx/5xx answer
type ErrorResponse struct {
	Message string                  `json:"message"`
	Error   string                  `json:"error"`
	Code    int                     `json:"code"`
	Details []types.ValidationError `json:"details,omitempty"`
}

// NewErrorResponse fills Error with the status text of code
func NewErrorResponse(code int, message string) ErrorResponse {
	return ErrorResponse{
		Message: message,
		Error:   http.StatusText(code),
		Code:    code,
	}
}

// WithCause puts the underlying error text in Error, for backend failures
func (e ErrorResponse) WithCause(err error) ErrorResponse {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDetails attaches field level validation failures
func (e ErrorResponse) WithDetails(ve *types.ValidationErrors) ErrorResponse {
	if ve != nil {
		e.Details = ve.Errors
	}
	return e
}

// DeleteResponse acknowledges a delete
type DeleteResponse struct {
	Success bool `json:"success"`
}

// MetricsResponse bundles totals and summaries for GET /metrics
type MetricsResponse struct {
	Service   interface{} `json:"service"`
	Summaries interface{} `json:"summaries"`
	Timestamp time.Time   `json:"timestamp"`
}
