package debouncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "events_ingested_total",
		Help:      "Total number of raw events accepted, per kind",
	}, []string{"kind"})
	metricEventsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "events_suppressed_total",
		Help:      "Total number of raw events absorbed by merge rules, per reason",
	}, []string{"reason"})
	metricEventsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "events_emitted_total",
		Help:      "Total number of debounced events emitted",
	})
	metricBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "batches_total",
		Help:      "Total number of non-empty batches emitted",
	})
	metricRenames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "renames_total",
		Help:      "Total number of rename destinations seen, per correlation method",
	}, []string{"method"})
	metricRescans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "rescans_total",
		Help:      "Total number of rescans requested",
	})
	metricMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "malformed_events_total",
		Help:      "Total number of raw events rejected as malformed",
	})
	metricPendingPaths = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settle",
		Subsystem: "debouncer",
		Name:      "pending_paths",
		Help:      "Number of paths with queued events after the last tick",
	})
)

const (
	reasonDuplicateCreate = "duplicate_create"
	reasonPendingCreate   = "pending_create"
	reasonCreateRemoved   = "create_removed"
	reasonIgnoredOther    = "ignored_other"
)
