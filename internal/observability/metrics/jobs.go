// Package metrics exposes Prometheus collectors for the job lifecycle and result analysis.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	obserrors "github.com/VihangaMunasinghe/ares-sub001/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Recorder owns the collectors. A nil *Recorder discards everything.
type Recorder struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	progressRejections *prometheus.CounterVec
	analyses           *prometheus.CounterVec
	analysisDuration   prometheus.Histogram
	analysisSkipped    prometheus.Counter
	inconsistent       *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	reaped             *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_job_transitions_total",
			Help: "Job status transition attempts by job type, target status and result",
		}, []string{"job_type", "to", "result", "error_class"}),
		transitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ares_job_run_duration_seconds",
			Help:    "Time from entering running to reaching a terminal status",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"job_type", "to"}),
		progressRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_job_progress_rejections_total",
			Help: "Progress writes rejected by reason",
		}, []string{"reason"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_analysis_total",
			Help: "Result analyses by outcome",
		}, []string{"result", "error_class"}),
		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ares_analysis_duration_seconds",
			Help:    "Result analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		analysisSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "ares_analysis_skipped_entries_total",
			Help: "Material change entries skipped during ingestion",
		}),
		inconsistent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_analysis_inconsistent_summary_total",
			Help: "Declared summary fields that diverged from the recomputed value",
		}, []string{"field"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_analysis_cache_lookups_total",
			Help: "Analysis report cache lookups by outcome",
		}, []string{"result"}),
		reaped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_reaper_jobs_total",
			Help: "Stale jobs handled by the reaper by result",
		}, []string{"result"}),
	}
}

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	JobType string
	To      string
	Result  string
	// RunTime is the running→terminal duration; zero for non-terminal transitions.
	RunTime time.Duration
	Err     error
}

// EmitJobLifecycle records a transition attempt.
func (r *Recorder) EmitJobLifecycle(in JobMetric) {
	if r == nil {
		return
	}
	class := ""
	if in.Err != nil && in.Result == ResultError {
		class = obserrors.Classify(in.Err)
	}
	r.transitions.WithLabelValues(in.JobType, in.To, in.Result, class).Inc()
	if in.RunTime > 0 && in.Result == ResultSuccess {
		r.transitionDuration.WithLabelValues(in.JobType, in.To).Observe(in.RunTime.Seconds())
	}
}

// ProgressRejected counts a rejected progress write.
func (r *Recorder) ProgressRejected(reason string) {
	if r == nil {
		return
	}
	r.progressRejections.WithLabelValues(reason).Inc()
}

// AnalysisMetric captures one analysis run.
type AnalysisMetric struct {
	Duration           time.Duration
	Skipped            int
	InconsistentFields []string
	Err                error
}

// EmitAnalysis records an analysis run.
func (r *Recorder) EmitAnalysis(in AnalysisMetric) {
	if r == nil {
		return
	}
	result, class := ResultSuccess, ""
	if in.Err != nil {
		result, class = ResultError, obserrors.Classify(in.Err)
	}
	r.analyses.WithLabelValues(result, class).Inc()
	r.analysisDuration.Observe(in.Duration.Seconds())
	r.analysisSkipped.Add(float64(in.Skipped))
	for _, f := range in.InconsistentFields {
		r.inconsistent.WithLabelValues(f).Inc()
	}
}

// CacheLookup counts an analysis cache lookup.
func (r *Recorder) CacheLookup(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Reaped counts jobs handled by one reaper sweep.
func (r *Recorder) Reaped(cancelled, conflicts int) {
	if r == nil {
		return
	}
	r.reaped.WithLabelValues(ResultSuccess).Add(float64(cancelled))
	r.reaped.WithLabelValues(ResultNoop).Add(float64(conflicts))
}
