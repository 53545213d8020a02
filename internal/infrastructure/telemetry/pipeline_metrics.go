package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics tracks intake throughput: admissions, dedupe absorptions
// and the sync jobs fanned out per accepted event.
type PipelineMetrics struct {
	eventsAdmitted  metric.Int64Counter
	eventsDuplicate metric.Int64Counter
	jobsEnqueued    metric.Int64Counter
}

// NewPipelineMetrics registers the pipeline instruments on the global meter
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter("pulsecdp/pipeline")

	eventsAdmitted, err := meter.Int64Counter("cdp_events_admitted_total",
		metric.WithDescription("Events admitted as new by the fingerprint store"),
		metric.WithUnit("{events}"))
	if err != nil {
		return nil, err
	}

	eventsDuplicate, err := meter.Int64Counter("cdp_events_duplicate_total",
		metric.WithDescription("Events absorbed as duplicates"),
		metric.WithUnit("{events}"))
	if err != nil {
		return nil, err
	}

	jobsEnqueued, err := meter.Int64Counter("cdp_sync_jobs_enqueued_total",
		metric.WithDescription("Sync jobs enqueued for destinations"),
		metric.WithUnit("{jobs}"))
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		eventsAdmitted:  eventsAdmitted,
		eventsDuplicate: eventsDuplicate,
		jobsEnqueued:    jobsEnqueued,
	}, nil
}

// RecordAdmission counts one admission verdict
func (m *PipelineMetrics) RecordAdmission(ctx context.Context, admitted bool, source string) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	if admitted {
		m.eventsAdmitted.Add(ctx, 1, attrs)
	} else {
		m.eventsDuplicate.Add(ctx, 1, attrs)
	}
}

// RecordEnqueued counts fanned-out jobs
func (m *PipelineMetrics) RecordEnqueued(ctx context.Context, count int) {
	if count > 0 {
		m.jobsEnqueued.Add(ctx, int64(count))
	}
}
