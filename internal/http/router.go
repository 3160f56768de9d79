package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/auth"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/logging"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/reminders"
)

// RequestMetrics records one sample per HTTP request.
type RequestMetrics interface {
	RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64)
	auth.MetricsRecorder
}

// RouterConfig carries everything SetupRouter wires together. Metrics is
// optional.
type RouterConfig struct {
	ServiceName string
	Reminders   *reminders.Handler
	Verifier    auth.TokenVerifier
	Metrics     RequestMetrics
	Logger      zerolog.Logger
}

// SetupRouter initializes all routes for the application
func SetupRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(otelmux.Middleware(cfg.ServiceName))
	r.Use(logging.Middleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(metricsMiddleware(cfg.Metrics))
	}

	// Public health endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"` + cfg.ServiceName + `"}`))
	}).Methods(http.MethodGet)

	var authMetrics auth.MetricsRecorder
	if cfg.Metrics != nil {
		authMetrics = cfg.Metrics
	}

	// Reminder routes, bearer token required
	api := r.PathPrefix("/reminders").Subrouter()
	api.Use(auth.Middleware(cfg.Verifier, cfg.Logger, authMetrics))

	api.HandleFunc("/calendar-sync", cfg.Reminders.SyncCalendar).Methods(http.MethodPost)
	api.HandleFunc("/preview", cfg.Reminders.Preview).Methods(http.MethodPost)
	api.HandleFunc("/ics", cfg.Reminders.ICS).Methods(http.MethodPost)
	api.HandleFunc("/receipts/{batchId}", cfg.Reminders.Receipts).Methods(http.MethodGet)

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(m RequestMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.RecordHTTPRequest(r.Context(), r.Method, route, sw.status, float64(time.Since(start).Microseconds())/1000)
		})
	}
}
