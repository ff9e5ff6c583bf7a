package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus returned error: %v", err)
	}

	rec.ObserveResult("handler", 12, 3*time.Millisecond)
	rec.ObserveResult("fallback", 4, time.Millisecond)
	rec.ObserveResult("handler", 1, time.Microsecond)
	rec.HandlerFailure("scene.GameObject")
	rec.MemberFailure("scene.Transform")
	rec.MemberFailure("scene.Transform")
	rec.CircularReference()

	if got := testutil.ToFloat64(rec.serializations.WithLabelValues("handler")); got != 2 {
		t.Fatalf("expected 2 handler serializations, got %v", got)
	}
	if got := testutil.ToFloat64(rec.memberFailures.WithLabelValues("scene.Transform")); got != 2 {
		t.Fatalf("expected 2 member failures, got %v", got)
	}
	if got := testutil.ToFloat64(rec.circular); got != 1 {
		t.Fatalf("expected 1 circular reference, got %v", got)
	}

	expected := `
# HELP graphwire_handler_failures_total Number of handler failures recovered by falling back to reflection.
# TYPE graphwire_handler_failures_total counter
graphwire_handler_failures_total{type="scene.GameObject"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "graphwire_handler_failures_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
	if n := testutil.CollectAndCount(rec.nodes); n != 1 {
		t.Fatalf("expected one node histogram, got %d", n)
	}
}

func TestPrometheusRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheus(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewPrometheus(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = Noop{}
	rec.ObserveResult("direct", 0, 0)
	rec.HandlerFailure("x")
	rec.MemberFailure("x")
	rec.CircularReference()
}
