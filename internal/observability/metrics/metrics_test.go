package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("dimension", "contributor"),
		attribute.String("subscriber_id", "user-1"),
		attribute.String("outcome", "reserved"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "subscriber_id" {
			t.Fatalf("expected subscriber_id to be dropped")
		}
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAdmission(ctx, "free", "")
	m.RecordReservation(ctx, "contributor", "reserved")
	m.RecordConsumption(ctx, 3, true)
	m.RecordReview(ctx, "ok", time.Second)
	m.RecordProgressDropped(ctx, "progress")
}

func TestNewRegistersInstruments(t *testing.T) {
	m, err := New(Config{ServiceName: "reviewmeter-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordConsumption(context.Background(), 2, false)
}
