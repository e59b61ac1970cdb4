// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nodeflow/jobflow/pkg/metrics"
)

// Metrics exports read-only Prometheus mirrors of a live MetricsStore.
// MetricsStore itself stays the single source of truth; Metrics only
// ever reads it, never writes it.
type Metrics struct {
	store *metrics.Store

	metricValue     *prometheus.GaugeVec
	ruleFired       *prometheus.CounterVec
	activeSequences prometheus.Gauge
}

// NewMetrics registers the jobflow_* collectors against reg and
// returns a Metrics mirroring store on every Refresh call.
func NewMetrics(store *metrics.Store, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		store: store,
		metricValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobflow_metric_value",
			Help: "Current value of a MetricsStore streaming estimator, by model/step/key.",
		}, []string{"model", "step", "key"}),
		ruleFired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobflow_rule_fired_total",
			Help: "Number of times a workflow rule's action fired, by step/key/action.",
		}, []string{"step", "key", "action"}),
		activeSequences: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jobflow_active_sequences",
			Help: "Number of state-machine sequences currently tracked in memory.",
		}),
	}
}

// RecordRuleFired increments the rule-firing counter for (step, key,
// action). The manager's event loop does not call it; the counter only
// moves when a caller invokes this method directly.
func (m *Metrics) RecordRuleFired(step, key, action string) {
	m.ruleFired.WithLabelValues(step, key, action).Inc()
}

// SetActiveSequences sets the live state-machine table size gauge.
func (m *Metrics) SetActiveSequences(n int) {
	m.activeSequences.Set(float64(n))
}

// Refresh walks the MetricsStore's current snapshot and sets every
// jobflow_metric_value series to match. Intended to run on a short
// ticker (a few seconds) from the manager's event loop or a dedicated
// goroutine; MetricsStore reads are cheap and already synchronized.
func (m *Metrics) Refresh() {
	for model, byStep := range m.store.SummarizeAll() {
		for step, byKey := range byStep {
			for key, value := range byKey {
				m.metricValue.WithLabelValues(model, step, key).Set(value)
			}
		}
	}
}
