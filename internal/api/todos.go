package api

import (
	"context"
	"net/http"
	"strconv"

	"todoservice/internal/identity"
	"todoservice/internal/metrics"
	"todoservice/internal/models"
	"todoservice/internal/todo"
)

// service builds a task service bound to the caller's credentials
func (h *Handler) service(r *http.Request) *todo.Service {
	caller := identity.FromContext(r.Context())
	n := &mutationNotifier{metrics: h.metrics}
	if h.recorder != nil {
		n.next = h.recorder
	}
	return todo.NewService(h.store.WithHeaders(caller.Headers), h.todoCfg, h.logger, todo.WithNotifier(n))
}

// mutationNotifier counts mutations before handing them to the activity recorder
type mutationNotifier struct {
	metrics *metrics.MetricsHelper
	next    todo.Notifier
}

func (n *mutationNotifier) Notify(ctx context.Context, event todo.Event) error {
	n.metrics.RecordMutation(string(event.Type))
	if n.next == nil {
		return nil
	}
	return n.next.Notify(ctx, event)
}

func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithContext(r.Context())
	logger.Debugw("ListTodos handler entry", "method", r.Method, "path", r.URL.Path)
	defer logger.Debugw("ListTodos handler exit", "method", r.Method, "path", r.URL.Path)

	todos, err := h.service(r).ListAll(r.Context())
	if err != nil {
		h.failure(w, r, err, "list", ErrListFailed, false)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *Handler) GetTodo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := h.logger.WithContext(r.Context())
	logger.Debugw("GetTodo handler entry", "method", r.Method, "path", r.URL.Path, "todoId", id)
	defer logger.Debugw("GetTodo handler exit", "method", r.Method, "path", r.URL.Path, "todoId", id)

	t, found, err := h.service(r).GetByID(r.Context(), id)
	if err != nil {
		h.failure(w, r, err, "get", ErrGetFailed, true)
		return
	}
	if !found {
		writeError(w, models.NewErrorResponse(http.StatusNotFound, ErrTodoNotFound))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithContext(r.Context())
	logger.Debugw("CreateTodo handler entry", "method", r.Method, "path", r.URL.Path)
	defer logger.Debugw("CreateTodo handler exit", "method", r.Method, "path", r.URL.Path)

	var fields todo.Fields
	if err := decodeBody(w, r, h.validators.create, &fields); err != nil {
		h.failure(w, r, err, "create", ErrCreateFailed, false)
		return
	}
	t, err := h.service(r).Create(r.Context(), fields)
	if err != nil {
		h.failure(w, r, err, "create", ErrCreateFailed, false)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := h.logger.WithContext(r.Context())
	logger.Debugw("UpdateTodo handler entry", "method", r.Method, "path", r.URL.Path, "todoId", id)
	defer logger.Debugw("UpdateTodo handler exit", "method", r.Method, "path", r.URL.Path, "todoId", id)

	var patch todo.Patch
	if err := decodeBody(w, r, h.validators.update, &patch); err != nil {
		h.failure(w, r, err, "update", ErrUpdateFailed, true)
		return
	}
	t, err := h.service(r).Update(r.Context(), id, patch)
	if err != nil {
		h.failure(w, r, err, "update", ErrUpdateFailed, true)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := h.logger.WithContext(r.Context())
	logger.Debugw("DeleteTodo handler entry", "method", r.Method, "path", r.URL.Path, "todoId", id)
	defer logger.Debugw("DeleteTodo handler exit", "method", r.Method, "path", r.URL.Path, "todoId", id)

	if err := h.service(r).DeleteByID(r.Context(), id); err != nil {
		h.failure(w, r, err, "delete", ErrDeleteFailed, true)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResponse{Success: true})
}

func (h *Handler) SearchTodos(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithContext(r.Context())
	logger.Debugw("SearchTodos handler entry", "method", r.Method, "path", r.URL.Path)
	defer logger.Debugw("SearchTodos handler exit", "method", r.Method, "path", r.URL.Path)

	query := r.URL.Query()
	if !query.Has("q") {
		writeError(w, models.NewErrorResponse(http.StatusBadRequest, ErrMissingSearchQuery))
		return
	}
	todos, err := h.service(r).Search(r.Context(), query.Get("q"))
	if err != nil {
		h.failure(w, r, err, "search", ErrSearchFailed, false)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *Handler) TodoStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service(r).Stats(r.Context())
	if err != nil {
		h.failure(w, r, err, "stats", ErrStatsFailed, false)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// TodoActivity lists the lifecycle history of one task, oldest first.
// ?limit=N keeps the N most recent entries; invalid values are ignored.
func (h *Handler) TodoActivity(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.recorder.List(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.failure(w, r, err, "activity", ErrActivityFailed, false)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
