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

package manager

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// admit implements new_jobs: it fills remaining node-budget capacity
// with fresh sequences. C is completions still needed, N the node
// budget expressed in first-step job slots, A the sequences already
// active; submit_n = max(0, min(C, N-A)).
func (m *Manager) admit(ctx context.Context) error {
	state, err := m.currentState(ctx)
	if err != nil {
		return err
	}

	completions := len(state.completed)
	active := len(state.active)

	first := m.cfg.Steps[0]
	nodesNeeded := first.NNodes
	if nodesNeeded <= 0 {
		nodesNeeded = 1
	}

	jobsNeeded := m.cfg.CompletionsNeeded - completions
	nodesAllowed := int(math.Floor(float64(m.cfg.MaxSize) / float64(nodesNeeded)))
	submitN := nodesAllowed - active
	if jobsNeeded < submitN {
		submitN = jobsNeeded
	}
	if submitN < 0 {
		submitN = 0
	}

	m.logger.Info("admitting new sequences",
		"completions", completions, "active", active,
		"jobs_needed", jobsNeeded, "nodes_allowed", nodesAllowed,
		"submit_n", submitN)

	for i := 0; i < submitN; i++ {
		jobid := m.generateID()
		sm := m.machineFor(jobid)
		if err := sm.Change(ctx); err != nil {
			m.logger.Warn("admission transition failed", "jobid", jobid, "error", err)
		}
	}
	return nil
}

// generateID produces an 8-digit zero-padded numeric suffix on the
// configured prefix, regenerating on the vanishingly unlikely event of
// a collision with a live sequence.
func (m *Manager) generateID() string {
	for {
		n := rand.Intn(100000000)
		jobid := fmt.Sprintf("%s%08d", m.cfg.Prefix, n)
		if _, exists := m.machines[jobid]; !exists {
			return jobid
		}
	}
}
