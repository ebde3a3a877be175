package analytics

import (
	"fmt"
	"math"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	ChangeTolerance  float64
	SummaryTolerance float64
	// Metrics maps display metric names to JMESPath expressions over the raw result document.
	Metrics   map[string]string
	Evaluator Evaluator
}

// Analyzer runs the full result pipeline: ingest, aggregate, reconcile, project, extract metrics.
type Analyzer struct {
	changeTol  float64
	summaryTol float64
	metrics    map[string]string
	eval       Evaluator
}

// NewAnalyzer constructs an Analyzer, validating configured metric expressions.
func NewAnalyzer(opts AnalyzerOptions) (*Analyzer, error) {
	eval := opts.Evaluator
	if eval == nil {
		eval = DefaultEvaluator()
	}
	if err := ValidateExpressions(eval, opts.Metrics); err != nil {
		return nil, fmt.Errorf("invalid metric expression: %w", err)
	}
	metrics := make(map[string]string, len(opts.Metrics))
	for k, v := range opts.Metrics {
		metrics[k] = v
	}
	return &Analyzer{
		changeTol:  opts.ChangeTolerance,
		summaryTol: opts.SummaryTolerance,
		metrics:    metrics,
		eval:       eval,
	}, nil
}

// MustNewAnalyzer is like NewAnalyzer but panics on error.
func MustNewAnalyzer(opts AnalyzerOptions) *Analyzer {
	a, err := NewAnalyzer(opts)
	if err != nil {
		panic(err)
	}
	return a
}

// Report carries every artifact derived from one raw result.
type Report struct {
	Diff           model.OptimizationDiff `json:"optimizationDiff"`
	Corrections    []Correction           `json:"corrections"`
	Skipped        []ValidationError      `json:"skipped"`
	Warnings       []string               `json:"warnings"`
	Aggregates     Aggregates             `json:"aggregates"`
	Reconciliation Reconciliation         `json:"reconciliation"`
	Chart          Chart                  `json:"chart"`
	Metrics        []Metric               `json:"metrics"`
	Malformed      []MalformedMetric      `json:"malformedMetrics"`
}

// Analyze decodes and analyzes a raw payload. maxWeek is the mission length in weeks, 0 if unknown.
func (a *Analyzer) Analyze(data []byte, maxWeek int) (*Report, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return a.AnalyzePayload(payload, maxWeek)
}

// AnalyzePayload analyzes an already decoded payload. When every entry is invalid the returned
// error is an *EmptyResultError and the report is nil.
func (a *Analyzer) AnalyzePayload(p *Payload, maxWeek int) (*Report, error) {
	ing, err := Ingest(&p.Diff, IngestOptions{ChangeTolerance: a.changeTol, MaxWeek: maxWeek})
	if err != nil {
		return nil, err
	}

	agg := Aggregate(ing.Diff.MaterialChanges)
	if total := AbsoluteChange(ing.Diff.MaterialChanges); !closeTo(agg.CategoryTotal(), total) ||
		!closeTo(agg.ImpactTotal(), total) {
		return nil, fmt.Errorf("aggregate partitions lost change: categories %v, impacts %v, expected %v",
			agg.CategoryTotal(), agg.ImpactTotal(), total)
	}
	metrics, malformed := ExtractMetrics(a.eval, p.Document, a.metrics)

	return &Report{
		Diff:           ing.Diff,
		Corrections:    ing.Corrections,
		Skipped:        ing.Skipped,
		Warnings:       ing.Warnings,
		Aggregates:     agg,
		Reconciliation: Reconcile(&ing.Diff, a.summaryTol),
		Chart:          Project(agg),
		Metrics:        metrics,
		Malformed:      malformed,
	}, nil
}

// closeTo compares float sums that were accumulated in different orders.
func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
