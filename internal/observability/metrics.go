package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	spoolEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spoolbridge",
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Spool events handled, by outcome.",
		},
		[]string{"result"},
	)
	inventoryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spoolbridge",
			Subsystem: "inventory",
			Name:      "lookups_total",
			Help:      "Spool inventory lookups, by outcome.",
		},
		[]string{"outcome"},
	)
	inventoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spoolbridge",
			Subsystem: "inventory",
			Name:      "lookup_duration_seconds",
			Help:      "Spool inventory lookup duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	macroInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spoolbridge",
			Subsystem: "macros",
			Name:      "invocations_total",
			Help:      "Macro invocations submitted to the control plane.",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(spoolEvents, inventoryLookups, inventoryDuration, macroInvocations)
	})
}

func RecordSpoolEvent(result string) {
	RegisterMetrics()
	spoolEvents.WithLabelValues(result).Inc()
}

func RecordLookup(outcome string, duration time.Duration) {
	RegisterMetrics()
	inventoryLookups.WithLabelValues(outcome).Inc()
	inventoryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordMacroInvocation(kind string) {
	RegisterMetrics()
	macroInvocations.WithLabelValues(kind).Inc()
}
