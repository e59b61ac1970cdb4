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
	"errors"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/statemachine"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// clusterState is one snapshot of list_jobs_by_status, partitioned per
// spec §4.5's reconciliation algorithm.
type clusterState struct {
	jobs      tracker.ByStatus
	completed map[string]bool
	failed    map[string]bool
	active    map[string]bool
}

func (m *Manager) currentState(ctx context.Context) (clusterState, error) {
	jobs, err := m.backend.ListJobsByStatus(ctx)
	if err != nil {
		return clusterState{}, jobflowerrors.Wrap(err, "listing jobs by status")
	}
	if len(jobs.Unknown) > 0 {
		m.logger.Warn("found unknown jobs", "count", len(jobs.Unknown))
	}

	lastStep := m.cfg.Steps[len(m.cfg.Steps)-1].Name

	failed := make(map[string]bool, len(jobs.Failed))
	for _, j := range jobs.Failed {
		if j.JobID() != "" {
			failed[j.JobID()] = true
		}
	}

	completed := make(map[string]bool)
	for _, j := range jobs.Success {
		if j.JobID() == "" || j.StepName() != lastStep || failed[j.JobID()] {
			continue
		}
		completed[j.JobID()] = true
	}

	active := make(map[string]bool)
	consider := append(append([]tracker.Job{}, jobs.Running...), jobs.Queued...)
	consider = append(consider, jobs.Success...)
	for _, j := range consider {
		if j.JobID() == "" || completed[j.JobID()] || failed[j.JobID()] {
			continue
		}
		active[j.JobID()] = true
	}

	return clusterState{jobs: jobs, completed: completed, failed: failed, active: active}, nil
}

// Init performs spec §4.5's reconciliation (init_state): it rebuilds
// the live machine table from the backend's current state, then
// checks for immediate completion, then admits new sequences to fill
// remaining capacity. Call once before Run.
func (m *Manager) Init(ctx context.Context) error {
	state, err := m.currentState(ctx)
	if err != nil {
		return err
	}

	for jobid := range state.completed {
		m.completed[jobid] = true
	}

	runningOrQueued := make(map[string]tracker.Job, len(state.jobs.Running)+len(state.jobs.Queued))
	for _, j := range append(append([]tracker.Job{}, state.jobs.Running...), state.jobs.Queued...) {
		runningOrQueued[j.JobID()] = j
	}

	for jobid := range state.active {
		job, ok := runningOrQueued[jobid]
		if !ok {
			continue
		}
		sm := m.machineFor(jobid)
		sm.MarkRunning(job.StepName())
	}

	// Every remaining success job not yet completed or failed has
	// already finished a non-last step: fast-forward it past that step.
	lastStep := m.cfg.Steps[len(m.cfg.Steps)-1].Name
	for _, j := range state.jobs.Success {
		jobid := j.JobID()
		if jobid == "" || j.StepName() == lastStep {
			continue
		}
		if state.completed[jobid] || state.failed[jobid] {
			continue
		}
		if _, tracked := m.machines[jobid]; tracked {
			continue
		}
		sm := m.machineFor(jobid)
		sm.MarkRunning(j.StepName())
		sm.MarkSucceeded(j.StepName())
		if err := sm.Change(ctx); err != nil && !errors.Is(err, statemachine.ErrAlreadyTransitioned) {
			m.logger.Warn("reconciliation transition failed", "jobid", jobid, "error", err)
		}
	}

	m.logger.Info("reconciled workflow state", "completions", len(state.completed), "active", len(state.active))

	if m.checkComplete(ctx) {
		return nil
	}

	return m.admit(ctx)
}

func (m *Manager) machineFor(jobid string) *statemachine.Machine {
	if sm, ok := m.machines[jobid]; ok {
		return sm
	}
	sm := statemachine.New(jobid, m.cfg.StepNames(), m.backend)
	m.machines[jobid] = sm
	return sm
}
