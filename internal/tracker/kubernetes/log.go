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

package kubernetes

import (
	"context"
	"encoding/json"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// metricsAnnotationKey is the annotation the reference prototype
// reserves for a finished step's self-reported custom metrics.
const metricsAnnotationKey = "state-machine-metrics"

// SaveLog extracts any custom metrics a finished step recorded about
// itself, under the state-machine-metrics annotation on its Job
// object, the annotation key the reference prototype reserves for
// this. Absence is not an error: most steps report nothing beyond the
// standard duration/success/failure metrics MetricsStore already
// tracks.
func (a *Adapter) SaveLog(_ context.Context, job tracker.Job) (map[string]float64, error) {
	kj, ok := job.(Job)
	if !ok || kj.job == nil {
		return nil, nil
	}
	raw, ok := kj.job.Annotations[metricsAnnotationKey]
	if !ok || raw == "" {
		return nil, nil
	}

	var metrics map[string]float64
	if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
		return nil, jobflowerrors.Wrapf(err, "parsing %s annotation on %s", metricsAnnotationKey, kj.job.Name)
	}
	return metrics, nil
}
