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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/jobflow/pkg/metrics"
)

func TestMetricsRefreshMirrorsStore(t *testing.T) {
	store := metrics.NewStore()
	store.AddModelEntry("loss", 1.5, "train")

	reg := prometheus.NewRegistry()
	m := NewMetrics(store, reg)
	m.Refresh()

	value := testutil.ToFloat64(m.metricValue.WithLabelValues("mean", "train", "loss"))
	assert.Equal(t, 1.5, value)
}

func TestMetricsRecordRuleFired(t *testing.T) {
	store := metrics.NewStore()
	reg := prometheus.NewRegistry()
	m := NewMetrics(store, reg)

	m.RecordRuleFired("train", "loss", "grow")
	m.RecordRuleFired("train", "loss", "grow")

	value := testutil.ToFloat64(m.ruleFired.WithLabelValues("train", "loss", "grow"))
	assert.Equal(t, float64(2), value)
}

func TestMetricsSetActiveSequences(t *testing.T) {
	store := metrics.NewStore()
	reg := prometheus.NewRegistry()
	m := NewMetrics(store, reg)

	m.SetActiveSequences(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.activeSequences))
}

func TestNewMetricsRegistersCollectors(t *testing.T) {
	store := metrics.NewStore()
	reg := prometheus.NewRegistry()
	require.NotNil(t, NewMetrics(store, reg))

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "jobflow_active_sequences")
}
