package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"todoservice/internal/activity"
	"todoservice/internal/metrics"
	"todoservice/internal/models"
	"todoservice/internal/todo"
	"todoservice/shared/datastore"
	"todoservice/shared/logging"
	"todoservice/shared/types"
)

// Error message constants
const (
	ErrInvalidRequestBody = "Invalid request body"
	ErrMissingSearchQuery = "Missing search query"
	ErrTodoNotFound       = "Todo not found"
	ErrListFailed         = "Failed to list todos"
	ErrGetFailed          = "Failed to get todo"
	ErrCreateFailed       = "Failed to create todo"
	ErrUpdateFailed       = "Failed to update todo"
	ErrDeleteFailed       = "Failed to delete todo"
	ErrSearchFailed       = "Failed to search todos"
	ErrStatsFailed        = "Failed to compute todo statistics"
	ErrActivityFailed     = "Failed to list todo activity"
	ErrorFailedToEncode   = "Failed to encode response"
)

// Constants for headers
const (
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"
)

const DefaultBasePath = "/api/custom_plugin"

// HealthCheck is an extra dependency check reported by /health
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators a Handler is built from. Activity and
// Collector may be nil.
type Dependencies struct {
	Logger         logging.Logger
	Datastore      datastore.OpenSearchClient
	Todo           todo.Config
	Activity       *activity.Recorder
	Collector      *metrics.MetricsCollector
	HealthChecks   map[string]HealthCheck
	ForwardHeaders []string
	BasePath       string
	CORS           CORSConfig
	Version        string
	StartedAt      time.Time
}

// Handler holds the dependencies for API handlers
type Handler struct {
	logger     logging.Logger
	store      datastore.OpenSearchClient
	todoCfg    todo.Config
	recorder   *activity.Recorder
	collector  *metrics.MetricsCollector
	metrics    *metrics.MetricsHelper
	checks     map[string]HealthCheck
	forward    []string
	basePath   string
	cors       CORSConfig
	version    string
	startedAt  time.Time
	validators *validators
}

// NewHandler creates a new Handler instance
func NewHandler(deps Dependencies) (*Handler, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Datastore == nil {
		return nil, errors.New("datastore is required")
	}
	v, err := newValidators()
	if err != nil {
		return nil, err
	}
	basePath := strings.TrimSuffix(deps.BasePath, "/")
	if deps.BasePath == "" {
		basePath = DefaultBasePath
	}
	startedAt := deps.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	return &Handler{
		logger:     deps.Logger.WithField("component", "api"),
		store:      deps.Datastore,
		todoCfg:    deps.Todo,
		recorder:   deps.Activity,
		collector:  deps.Collector,
		metrics:    metrics.NewMetricsHelper(deps.Collector, "api"),
		checks:     deps.HealthChecks,
		forward:    deps.ForwardHeaders,
		basePath:   basePath,
		cors:       deps.CORS,
		version:    deps.Version,
		startedAt:  startedAt,
		validators: v,
	}, nil
}

// SetupRoutes sets up the API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	base := h.basePath
	mux.HandleFunc("GET "+base+"/example", h.Example)
	mux.HandleFunc("GET "+base+"/todos", h.ListTodos)
	mux.HandleFunc("GET "+base+"/todos/search", h.SearchTodos)
	mux.HandleFunc("GET "+base+"/todos/stats", h.TodoStats)
	mux.HandleFunc("GET "+base+"/todos/{id}", h.GetTodo)
	mux.HandleFunc("GET "+base+"/todos/{id}/activity", h.TodoActivity)
	mux.HandleFunc("POST "+base+"/todos", h.CreateTodo)
	mux.HandleFunc("PUT "+base+"/todos/{id}", h.UpdateTodo)
	mux.HandleFunc("DELETE "+base+"/todos/{id}", h.DeleteTodo)

	if h.collector != nil {
		mux.HandleFunc("GET /metrics", h.handleMetrics)
		mux.HandleFunc("GET /metrics/summaries", h.handleSummaries)
		mux.HandleFunc("GET /metrics/events", h.handleEvents)
	}
}

// Router returns the mux wrapped in CORS, trace id, identity and metrics middleware
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return chain(mux,
		corsMiddleware(h.cors),
		traceMiddleware,
		identityMiddleware(h.forward),
		metricsMiddleware(h.metrics),
	)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := sonic.Marshal(data)
	if err != nil {
		http.Error(w, ErrorFailedToEncode, http.StatusInternalServerError)
		return
	}
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, resp models.ErrorResponse) {
	writeJSON(w, resp.Code, resp)
}

// failure maps an error from the body decoder or the service onto a response.
// byID enables the 404 mapping for operations that address one record.
func (h *Handler) failure(w http.ResponseWriter, r *http.Request, err error, op, message string, byID bool) {
	logger := h.logger.WithContext(r.Context())
	var ve *types.ValidationErrors
	switch {
	case errors.As(err, &ve):
		logger.Debugw("Rejected request", "operation", op, "reason", ve.Error())
		writeError(w, models.NewErrorResponse(http.StatusBadRequest, ErrInvalidRequestBody+": "+ve.Error()).WithDetails(ve))
	case errors.Is(err, errInvalidJSON):
		writeError(w, models.NewErrorResponse(http.StatusBadRequest, ErrInvalidRequestBody))
	case isBodyTooLarge(err):
		writeError(w, models.NewErrorResponse(http.StatusRequestEntityTooLarge, ErrInvalidRequestBody).WithCause(err))
	case byID && (errors.Is(err, todo.ErrNotFound) || datastore.IsNotFound(err)):
		writeError(w, models.NewErrorResponse(http.StatusNotFound, ErrTodoNotFound))
	default:
		logger.WithError(err).Errorw("Todo operation failed", "operation", op, "todoId", r.PathValue("id"))
		h.metrics.RecordBackendError(op)
		writeError(w, models.NewErrorResponse(http.StatusInternalServerError, message).WithCause(err))
	}
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// Example answers with the server time, a liveness check for the UI
func (h *Handler) Example(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"time": time.Now().UTC().Format(time.RFC3339Nano)})
}

// HealthCheck pings the datastore and every extra check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.logger.Debugw("HealthCheck handler entry", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	defer h.logger.Debugw("HealthCheck handler exit", "method", r.Method, "path", r.URL.Path)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := map[string]error{"datastore": h.store.Ping(ctx)}
	for name, check := range h.checks {
		results[name] = check(ctx)
	}
	health := types.NewHealthStatus(h.version, h.startedAt, results)
	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleMetrics returns totals, per-route figures and summaries
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.MetricsResponse{
		Service:   h.collector.GetMetrics(),
		Summaries: h.collector.GetSummaries(),
		Timestamp: time.Now(),
	})
}

// handleSummaries returns metric summaries
func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.GetSummaries())
}

// handleEvents returns recent metric events, ?limit= defaults to 100
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.collector.GetRecentEvents(limit))
}
