package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
)

// AnalysisServiceOptions groups dependencies for AnalysisService.
type AnalysisServiceOptions struct {
	Analyzer *analytics.Analyzer  // Required: result pipeline
	Cache    core.CacheRepository // Optional: report cache
	CacheTTL time.Duration        // Optional: report TTL, zero keeps reports until evicted
	Metrics  *metrics.Recorder    // Optional: Prometheus recorder
	Logger   *slog.Logger         // Optional: structured logger
}

// AnalysisService runs the analyzer over raw results. Analysis is deterministic, so reports are
// cached by the digest of the raw bytes; the cache is an optimization and never fails a request.
type AnalysisService struct {
	analyzer *analytics.Analyzer
	cache    core.CacheRepository
	ttl      time.Duration
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewAnalysisService constructs a new AnalysisService.
func NewAnalysisService(opts AnalysisServiceOptions) (*AnalysisService, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		analyzer: opts.Analyzer,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "analysis_service"),
	}, nil
}

// MustNewAnalysisService constructs a new AnalysisService and panics on error.
func MustNewAnalysisService(opts AnalysisServiceOptions) *AnalysisService {
	svc, err := NewAnalysisService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create AnalysisService: %v", err))
	}
	return svc
}

// Analyze returns the report for raw. maxWeek is the mission length in weeks, 0 if unknown.
// Failures are an analytics.ErrMalformedPayload or an *analytics.EmptyResultError.
func (s *AnalysisService) Analyze(ctx context.Context, raw []byte, maxWeek int) (*analytics.Report, error) {
	key := reportKey(raw, maxWeek)
	if report := s.cached(ctx, key); report != nil {
		return report, nil
	}

	start := time.Now()
	report, err := s.analyzer.Analyze(raw, maxWeek)
	m := metrics.AnalysisMetric{Duration: time.Since(start), Err: err}
	if report != nil {
		m.Skipped = len(report.Skipped)
		for _, w := range report.Reconciliation.Warnings {
			m.InconsistentFields = append(m.InconsistentFields, w.Field)
		}
	}
	var empty *analytics.EmptyResultError
	if errors.As(err, &empty) {
		m.Skipped = len(empty.Skipped)
	}
	s.metrics.EmitAnalysis(m)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, report)
	return report, nil
}

func (s *AnalysisService) cached(ctx context.Context, key string) *analytics.Report {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.CacheLookup(metrics.CacheError)
		s.logger.WarnContext(ctx, "analysis cache read failed", "key", key, "error", err)
		return nil
	}
	if data == nil {
		s.metrics.CacheLookup(metrics.CacheMiss)
		return nil
	}
	var report analytics.Report
	if err := json.Unmarshal(data, &report); err != nil {
		s.metrics.CacheLookup(metrics.CacheError)
		s.logger.WarnContext(ctx, "discarding undecodable cached report", "key", key, "error", err)
		return nil
	}
	s.metrics.CacheLookup(metrics.CacheHit)
	return &report
}

func (s *AnalysisService) store(ctx context.Context, key string, report *analytics.Report) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		s.logger.WarnContext(ctx, "encode report for cache", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "analysis cache write failed", "key", key, "error", err)
	}
}

// reportKey includes maxWeek because week normalization depends on the mission length.
func reportKey(raw []byte, maxWeek int) string {
	sum := sha256.Sum256(raw)
	return "analysis:" + hex.EncodeToString(sum[:]) + ":" + strconv.Itoa(maxWeek)
}
