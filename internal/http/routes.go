package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
)

// RouterServices holds everything the HTTP router serves.
type RouterServices struct {
	Jobs     *service.JobService
	Analysis *service.AnalysisService
	// Metrics serves the Prometheus exposition; nil leaves the path unregistered.
	Metrics     http.Handler
	MetricsPath string
	// Readiness checks keyed by dependency name, e.g. "postgres" and "redis".
	Readiness    map[string]HealthCheck
	MaxBodyBytes int64
	WatchLimit   time.Duration
	Logger       *slog.Logger
}

// NewRouter creates the API handler with logging, panic recovery and body limits applied.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	jobs := &JobHandlers{Svc: services.Jobs, WatchLimit: services.WatchLimit, Logger: logger}
	analyze := &AnalyzeHandlers{Svc: services.Analysis, Logger: logger}

	registerJobRoutes(mux, jobs)
	mux.HandleFunc("POST /api/analyze", analyze.Analyze)

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.Handle("GET /readyz", readinessHandler(services.Readiness))
	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics)
	}

	var h http.Handler = mux
	h = LimitBody(services.MaxBodyBytes)(h)
	h = Recover(logger)(h)
	h = Logging(logger)(h)
	return h
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/jobs", h.CreateJob)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /api/jobs/{id}/transition", h.Transition)
	mux.HandleFunc("POST /api/jobs/{id}/progress", h.Progress)
	mux.HandleFunc("POST /api/jobs/{id}/result", h.SubmitResult)
	mux.HandleFunc("POST /api/jobs/{id}/fail", h.Fail)
	mux.HandleFunc("GET /api/jobs/{id}/analysis", h.Analysis)
	mux.HandleFunc("GET /api/jobs/{id}/transitions", h.Transitions)
	mux.HandleFunc("GET /api/jobs/{id}/watch", h.Watch)
}
