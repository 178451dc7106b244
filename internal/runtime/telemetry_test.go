package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/voicefusion-labs/voicefusion-core/internal/config"
)

func TestSetupTelemetryServesPrometheusMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, handler, err := setupTelemetry(config.Default(), logger)
	if err != nil {
		t.Fatalf("setup telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()

	if handler == nil {
		t.Fatal("expected a prometheus metrics handler")
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "target_info") {
		t.Fatalf("expected prometheus exposition output, got %q", rec.Body.String())
	}
}

func TestStageLatencyViewTargetsPipelineHistogram(t *testing.T) {
	view := stageLatencyView()

	stream, matched := view(sdkmetric.Instrument{Name: "fusion_stage_latency_seconds"})
	if !matched {
		t.Fatal("view must match the stage latency histogram")
	}
	hist, ok := stream.Aggregation.(sdkmetric.AggregationExplicitBucketHistogram)
	if !ok {
		t.Fatalf("unexpected aggregation %T", stream.Aggregation)
	}
	if len(hist.Boundaries) == 0 || hist.Boundaries[len(hist.Boundaries)-1] < 30 {
		t.Fatalf("boundaries must extend to slow chat completions, got %v", hist.Boundaries)
	}

	if _, matched := view(sdkmetric.Instrument{Name: "fusion_turns_total"}); matched {
		t.Fatal("view must not rewrite other instruments")
	}
}
