// Package metrics provides the Recorder interface used by the serialization
// engine, a no-op implementation, and a Prometheus-backed implementation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives serialization events.
type Recorder interface {
	ObserveResult(status string, nodes int, d time.Duration)
	HandlerFailure(typeName string)
	MemberFailure(typeName string)
	CircularReference()
}

// Noop is a Recorder that discards all data.
type Noop struct{}

func (Noop) ObserveResult(string, int, time.Duration) {}
func (Noop) HandlerFailure(string)                    {}
func (Noop) MemberFailure(string)                     {}
func (Noop) CircularReference()                       {}

const (
	namespace = "graphwire"

	statusLabelName = "status"
	typeLabelName   = "type"
)

var (
	// nodeBuckets covers passes from a single value up to the default node budget.
	nodeBuckets = prometheus.ExponentialBuckets(1, 4, 8)

	// durationBuckets spans 10µs to ~2.6s.
	durationBuckets = prometheus.ExponentialBuckets(0.00001, 4, 10)
)

// Prometheus records serialization events as Prometheus metrics.
type Prometheus struct {
	serializations  *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	memberFailures  *prometheus.CounterVec
	circular        prometheus.Counter
	nodes           prometheus.Histogram
	duration        prometheus.Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		serializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "serializations_total",
				Help:      "Number of top-level serializations by envelope status.",
			}, []string{statusLabelName}),
		handlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_failures_total",
				Help:      "Number of handler failures recovered by falling back to reflection.",
			}, []string{typeLabelName}),
		memberFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "member_failures_total",
				Help:      "Number of members that could not be read.",
			}, []string{typeLabelName}),
		circular: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circular_references_total",
				Help:      "Number of back-reference markers emitted.",
			}),
		nodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "serialize_nodes",
				Help:      "Values materialized per top-level serialization.",
				Buckets:   nodeBuckets,
			}),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "serialize_duration_seconds",
				Help:      "Wall time per top-level serialization.",
				Buckets:   durationBuckets,
			}),
	}

	for _, c := range []prometheus.Collector{
		p.serializations, p.handlerFailures, p.memberFailures, p.circular, p.nodes, p.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveResult(status string, nodes int, d time.Duration) {
	p.serializations.WithLabelValues(status).Inc()
	p.nodes.Observe(float64(nodes))
	p.duration.Observe(d.Seconds())
}

func (p *Prometheus) HandlerFailure(typeName string) {
	p.handlerFailures.WithLabelValues(typeName).Inc()
}

func (p *Prometheus) MemberFailure(typeName string) {
	p.memberFailures.WithLabelValues(typeName).Inc()
}

func (p *Prometheus) CircularReference() {
	p.circular.Inc()
}
