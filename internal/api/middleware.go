package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"todoservice/internal/identity"
	"todoservice/internal/metrics"
	"todoservice/shared/logging"
	"todoservice/shared/utils"
)

// CORSConfig lists the origins allowed to call the API from a browser
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

func corsMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", utils.TraceIDHeader, "osd-xsrf"},
		ExposedHeaders:   []string{utils.TraceIDHeader},
		AllowCredentials: cfg.AllowCredentials,
	})
	return c.Handler
}

// traceMiddleware reuses the caller's trace id or mints one, and echoes it
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := utils.ExtractTraceID(r.Header)
		w.Header().Set(utils.TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(utils.WithTraceID(r.Context(), traceID)))
	})
}

func identityMiddleware(forward []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := identity.FromRequest(r, forward)
			ctx := identity.WithCaller(r.Context(), caller)
			ctx = logging.NewContext(ctx, logging.Fields{"actor": caller.Name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// metricsMiddleware must wrap the mux directly: the mux fills r.Pattern on
// the request it is handed.
func metricsMiddleware(helper *metrics.MetricsHelper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			helper.RecordRequest(r.Method, routeOf(r), rec.status, time.Since(start))
		})
	}
}

func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if i := strings.IndexByte(r.Pattern, ' '); i >= 0 {
		return r.Pattern[i+1:]
	}
	return r.Pattern
}

func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
