// Package todo stores task records in a document index and exposes the
// create/read/update/delete/search operations the HTTP layer binds to.
package todo

import (
	"strings"
	"time"

	"todoservice/shared/types"
)

// Status is the workflow state of a task.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPlanned, StatusInProgress, StatusCompleted, StatusError}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// Priority is the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every valid priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Todo is a stored task record. ID is assigned by the store and CreatedAt
// is stamped once at creation.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Fields is the caller-supplied part of a new task.
type Fields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
}

// Validate checks the required title and enum values.
func (f Fields) Validate() error {
	ve := types.NewValidationErrors()
	if strings.TrimSpace(f.Title) == "" {
		ve.Add("title", f.Title, "must not be empty", "required")
	}
	if !f.Status.Valid() {
		ve.Add("status", string(f.Status), "must be one of planned, in_progress, completed, error", "enum")
	}
	if !f.Priority.Valid() {
		ve.Add("priority", string(f.Priority), "must be one of low, medium, high", "enum")
	}
	return ve.ErrOrNil()
}

// Patch is a partial update. A nil field is left untouched; id and
// createdAt cannot be expressed.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Validate checks only the fields present in the patch.
func (p Patch) Validate() error {
	ve := types.NewValidationErrors()
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		ve.Add("title", *p.Title, "must not be empty", "required")
	}
	if p.Status != nil && !p.Status.Valid() {
		ve.Add("status", string(*p.Status), "must be one of planned, in_progress, completed, error", "enum")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		ve.Add("priority", string(*p.Priority), "must be one of low, medium, high", "enum")
	}
	return ve.ErrOrNil()
}

// IsEmpty reports whether the patch sets no field.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.Tags == nil
}

// Doc is the partial document sent to the store, holding only present fields.
func (p Patch) Doc() map[string]interface{} {
	doc := make(map[string]interface{})
	if p.Title != nil {
		doc["title"] = *p.Title
	}
	if p.Description != nil {
		doc["description"] = *p.Description
	}
	if p.Status != nil {
		doc["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		doc["priority"] = string(*p.Priority)
	}
	if p.Tags != nil {
		doc["tags"] = normalizeTags(*p.Tags)
	}
	return doc
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
