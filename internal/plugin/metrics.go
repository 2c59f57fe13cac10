// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Candidate outcomes recorded by the manager.
const (
	OutcomeRegistered      = "registered"
	OutcomeNotPlugin       = "not_plugin"
	OutcomeInvalidManifest = "invalid_manifest"
	OutcomeDisabled        = "disabled"
	OutcomeIncompatible    = "incompatible"
	OutcomeDuplicate       = "duplicate"
	OutcomeLoadFailed      = "load_failed"
	OutcomeActivateFailed  = "activate_failed"
)

// Metrics holds Prometheus collectors for discovery and lifecycle events.
// A nil *Metrics records nothing.
type Metrics struct {
	Candidates        *prometheus.CounterVec
	Deactivations     *prometheus.CounterVec
	Registered        prometheus.Gauge
	LifecycleDuration *prometheus.HistogramVec
}

// NewMetrics creates the plugin collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_candidates_total",
				Help: "Plugin candidates processed by discovery, by outcome",
			},
			[]string{"outcome"},
		),
		Deactivations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_deactivations_total",
				Help: "Plugin deactivations during teardown, by result",
			},
			[]string{"result"},
		),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pluginhost_registered_plugins",
			Help: "Number of plugins currently registered",
		}),
		LifecycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluginhost_lifecycle_duration_seconds",
				Help:    "Duration of plugin load, activate and deactivate calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
	}

	reg.MustRegister(m.Candidates, m.Deactivations, m.Registered, m.LifecycleDuration)
	return m
}

func (m *Metrics) candidate(outcome string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) deactivation(result string) {
	if m == nil {
		return
	}
	m.Deactivations.WithLabelValues(result).Inc()
}

func (m *Metrics) registered(n int) {
	if m == nil {
		return
	}
	m.Registered.Set(float64(n))
}

func (m *Metrics) observe(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.LifecycleDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
