package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	monitorCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewatch",
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Number of completed check cycles.",
		},
	)
	alertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewatch",
			Subsystem: "alerts",
			Name:      "fired_total",
			Help:      "Number of dispatched alerts per type.",
		}, []string{"type"},
	)
	alertsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewatch",
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Number of alerts suppressed by the cooldown per type.",
		}, []string{"type"},
	)
	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewatch",
			Subsystem: "recovery",
			Name:      "restarts_total",
			Help:      "Number of restart attempts by kind (graceful or hard).",
		}, []string{"kind"},
	)
	restartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewatch",
			Subsystem: "recovery",
			Name:      "restart_failures_total",
			Help:      "Number of restart attempts that did not recover the gateway.",
		}, []string{"kind"},
	)
	httpLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gatewatch",
			Subsystem: "probe",
			Name:      "http_latency_seconds",
			Help:      "Observed gateway HTTP health-check latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	gatewayUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gatewatch",
			Subsystem: "gateway",
			Name:      "up",
			Help:      "1 when the gateway process is running and HTTP-healthy.",
		},
	)
	gatewayMemoryMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gatewatch",
			Subsystem: "gateway",
			Name:      "memory_mb",
			Help:      "Latest gateway RSS in megabytes.",
		},
	)
	diskUsedPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gatewatch",
			Subsystem: "system",
			Name:      "disk_used_percent",
			Help:      "Used space on the primary volume.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{monitorCycles, alertsFired, alertsSuppressed, restarts, restartFailures, httpLatency, gatewayUp, gatewayMemoryMB, diskUsedPercent}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncCycle() {
	if regOK.Load() {
		monitorCycles.Inc()
	}
}

func IncAlertFired(alertType string) {
	if regOK.Load() {
		alertsFired.WithLabelValues(alertType).Inc()
	}
}

func IncAlertSuppressed(alertType string) {
	if regOK.Load() {
		alertsSuppressed.WithLabelValues(alertType).Inc()
	}
}

func IncRestart(kind string) {
	if regOK.Load() {
		restarts.WithLabelValues(kind).Inc()
	}
}

func IncRestartFailure(kind string) {
	if regOK.Load() {
		restartFailures.WithLabelValues(kind).Inc()
	}
}

func ObserveHTTPLatency(seconds float64) {
	if regOK.Load() {
		httpLatency.Observe(seconds)
	}
}

func SetGatewayUp(up bool) {
	if regOK.Load() {
		var v float64
		if up {
			v = 1
		}
		gatewayUp.Set(v)
	}
}

func SetGatewayMemoryMB(mb float64) {
	if regOK.Load() {
		gatewayMemoryMB.Set(mb)
	}
}

func SetDiskUsedPercent(pct float64) {
	if regOK.Load() {
		diskUsedPercent.Set(pct)
	}
}
