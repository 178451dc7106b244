package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type pipelineMetrics struct {
	turns    metric.Int64Counter
	failures metric.Int64Counter
	degraded metric.Int64Counter
	latency  metric.Float64Histogram
}

func newPipelineMetrics() *pipelineMetrics {
	meter := otel.Meter("github.com/voicefusion-labs/voicefusion-core/pipeline")
	m := &pipelineMetrics{}

	var err error
	if m.turns, err = meter.Int64Counter("fusion_turns_total",
		metric.WithDescription("Completed pipeline turns")); err != nil {
		return m
	}
	if m.failures, err = meter.Int64Counter("fusion_turn_failures_total",
		metric.WithDescription("Failed pipeline turns by kind")); err != nil {
		return m
	}
	if m.degraded, err = meter.Int64Counter("fusion_turns_degraded_total",
		metric.WithDescription("Turns that fell back to text-only output")); err != nil {
		return m
	}
	m.latency, _ = meter.Float64Histogram("fusion_stage_latency_seconds",
		metric.WithDescription("Per-stage pipeline latency"))
	return m
}

func (m *pipelineMetrics) recordTurn(ctx context.Context, degraded bool) {
	if m.turns != nil {
		m.turns.Add(ctx, 1)
	}
	if degraded && m.degraded != nil {
		m.degraded.Add(ctx, 1)
	}
}

func (m *pipelineMetrics) recordFailure(ctx context.Context, kind Kind) {
	if m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	}
}

func (m *pipelineMetrics) recordStage(ctx context.Context, stage string, seconds float64) {
	if m.latency != nil {
		m.latency.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
	}
}
