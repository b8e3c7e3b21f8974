package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricStatementsEmitted = "reexport.statements.emitted"
	metricFilesWritten      = "reexport.files.written"
	metricFilesStale        = "reexport.files.stale"
	metricRunDuration       = "reexport.run.duration.seconds"

	attrHelper = "helper"
)

// GenerationMetrics holds instruments for expansion output.
type GenerationMetrics struct {
	statements  metric.Int64Counter
	written     metric.Int64Counter
	stale       metric.Int64Counter
	runDuration metric.Float64Histogram
}

// GenerationStats describes one expansion run.
type GenerationStats struct {
	Helper     string
	Statements int
	Written    bool
	Stale      bool
	Duration   time.Duration
}

// NewGenerationMetrics creates generation instruments from the given meter.
func NewGenerationMetrics(mt metric.Meter) (*GenerationMetrics, error) {
	statements, err := mt.Int64Counter(metricStatementsEmitted,
		metric.WithDescription("Statements emitted by expansions"),
		metric.WithUnit("{statement}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStatementsEmitted, err)
	}

	written, err := mt.Int64Counter(metricFilesWritten,
		metric.WithDescription("Files written because their content changed"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesWritten, err)
	}

	stale, err := mt.Int64Counter(metricFilesStale,
		metric.WithDescription("Files found out of date in check mode"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesStale, err)
	}

	runDuration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Duration of one expansion run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	return &GenerationMetrics{
		statements:  statements,
		written:     written,
		stale:       stale,
		runDuration: runDuration,
	}, nil
}

// RecordRun records one expansion run. Safe to call on a nil receiver.
func (gm *GenerationMetrics) RecordRun(ctx context.Context, stats GenerationStats) {
	if gm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrHelper, stats.Helper))

	gm.statements.Add(ctx, int64(stats.Statements), attrs)
	gm.runDuration.Record(ctx, stats.Duration.Seconds(), attrs)

	if stats.Written {
		gm.written.Add(ctx, 1, attrs)
	}

	if stats.Stale {
		gm.stale.Add(ctx, 1, attrs)
	}
}
