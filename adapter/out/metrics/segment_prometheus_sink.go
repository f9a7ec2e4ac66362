// Package metrics exports segmentation activity as Prometheus metrics.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

const namespace = "segment"

// PrometheusSink implements out.MetricsSink and also carries the HTTP
// request metrics recorded by middleware.
type PrometheusSink struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runConfidence prometheus.Gauge
	assignments   *prometheus.CounterVec
	migrations    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	registerer    prometheus.Registerer
}

var _ out.MetricsSink = (*PrometheusSink)(nil)

// NewPrometheusSink registers its collectors with reg. Passing nil uses the
// default registry served by promhttp.Handler.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &PrometheusSink{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed segmentation runs by analysis depth.",
		}, []string{"depth", "clustered"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of segmentation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"depth"}),
		runConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_average_confidence",
			Help:      "Average assignment confidence of the most recent run.",
		}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Customers assigned per segment.",
		}, []string{"segment"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Customer migrations between segments.",
		}, []string{"from", "to"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		registerer: reg,
	}

	reg.MustRegister(
		s.runsTotal,
		s.runDuration,
		s.runConfidence,
		s.assignments,
		s.migrations,
		s.httpRequests,
		s.httpDuration,
	)
	return s
}

func (s *PrometheusSink) Record(_ context.Context, m domain.SegmentationMetrics) error {
	depth := string(m.AnalysisDepth)
	s.runsTotal.WithLabelValues(depth, strconv.FormatBool(m.Clustered)).Inc()
	s.runDuration.WithLabelValues(depth).Observe(m.ProcessingTime.Seconds())
	s.runConfidence.Set(m.AverageConfidence)
	for segment, n := range m.SegmentCounts {
		s.assignments.WithLabelValues(segment).Add(float64(n))
	}
	return nil
}

func (s *PrometheusSink) RecordMigration(_ context.Context, m domain.SegmentMigration) error {
	s.migrations.WithLabelValues(m.FromSegment, m.ToSegment).Inc()
	return nil
}

// ObserveHTTP records one served request.
func (s *PrometheusSink) ObserveHTTP(route string, status int, elapsed time.Duration) {
	s.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// WatchCounter exposes a monotonically increasing value read on scrape,
// such as the emitter's dropped count.
func (s *PrometheusSink) WatchCounter(name, help string, read func() float64) {
	s.registerer.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, read))
}
