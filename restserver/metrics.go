// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the server's Prometheus collectors.  They are always
// maintained, but only exported if a registerer is supplied.
type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "diffeo",
				Subsystem: "gridrest",
				Name:      "requests_total",
				Help:      "REST requests handled, by operation and status",
			},
			[]string{"operation", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "diffeo",
				Subsystem: "gridrest",
				Name:      "request_duration_seconds",
				Help:      "REST request latency, by operation and status",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "diffeo",
				Subsystem: "gridrest",
				Name:      "executor_in_flight",
				Help:      "Handler tasks currently running on the executor",
			},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.latency, m.inFlight} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// observe records one finished request.
func (m *metrics) observe(operation string, status int, elapsed time.Duration) {
	labels := prometheus.Labels{
		"operation": operation,
		"status":    strconv.Itoa(status),
	}
	m.requests.With(labels).Inc()
	m.latency.With(labels).Observe(elapsed.Seconds())
}
