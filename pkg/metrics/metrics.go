// Package metrics exposes the Prometheus collectors of the import pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Row outcomes.
const (
	OutcomeImported   = "imported"
	OutcomeSkipped    = "skipped"
	OutcomeUnresolved = "unresolved"
	OutcomeRejected   = "rejected"
)

// Metrics groups the collectors.
type Metrics struct {
	importRows      *prometheus.CounterVec
	importJobs      *prometheus.CounterVec
	geocodeLookups  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pins_import_rows_total",
			Help: "Payment rows processed by import jobs, by outcome.",
		}, []string{"outcome"}),
		importJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pins_import_jobs_total",
			Help: "Import jobs that reached a terminal status.",
		}, []string{"status"}),
		geocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pins_geocode_lookups_total",
			Help: "Geocode resolutions by source and result.",
		}, []string{"source", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pins_geocode_provider_seconds",
			Help:    "Latency of geocoding provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	if reg != nil {
		reg.MustRegister(m.importRows, m.importJobs, m.geocodeLookups, m.providerLatency)
	}
	return m
}

func (m *Metrics) ImportRow(outcome string) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ImportJob(status string) {
	if m == nil {
		return
	}
	m.importJobs.WithLabelValues(status).Inc()
}

// GeocodeLookup records where a resolution was answered from; result is "hit" or "miss".
func (m *Metrics) GeocodeLookup(source, result string) {
	if m == nil {
		return
	}
	m.geocodeLookups.WithLabelValues(source, result).Inc()
}

func (m *Metrics) ObserveProvider(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}
