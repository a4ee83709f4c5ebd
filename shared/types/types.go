package types

import (
	"strings"
	"time"
)

// HealthStatus represents the health status of a service
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// NewHealthStatus builds a status from named check results. Any failed check marks it unhealthy.
func NewHealthStatus(version string, started time.Time, checks map[string]error) HealthStatus {
	hs := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Uptime:    time.Since(started).Truncate(time.Second).String(),
		Checks:    make(map[string]string, len(checks)),
	}
	for name, err := range checks {
		if err != nil {
			hs.Status = StatusUnhealthy
			hs.Checks[name] = err.Error()
			continue
		}
		hs.Checks[name] = "ok"
	}
	return hs
}

// Healthy reports whether every check passed
func (h HealthStatus) Healthy() bool {
	return h.Status == StatusHealthy
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

// Add adds a validation error to the collection
func (ve *ValidationErrors) Add(field, value, message, code string) {
	ve.Errors = append(ve.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// HasErrors returns true if there are validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ErrOrNil returns ve as an error only when it holds errors
func (ve *ValidationErrors) ErrOrNil() error {
	if ve == nil || !ve.HasErrors() {
		return nil
	}
	return ve
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}

	messages := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		if err.Field == "" {
			messages = append(messages, err.Message)
			continue
		}
		messages = append(messages, err.Field+": "+err.Message)
	}
	return strings.Join(messages, "; ")
}
