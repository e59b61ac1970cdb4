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

	"golang.org/x/time/rate"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/statemachine"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// reconnectRate bounds how often Run will reopen the event stream after
// it closes on its own (watch expired, connection dropped). It is not a
// retry-on-error policy: StreamEvents returning a hard error still
// fails Run immediately.
const reconnectRate = rate.Limit(0.5) // at most one reconnect every 2s

// Run starts the event loop (watch): it consumes the backend's event
// stream until the context is canceled, applying the mandated
// per-event order from spec §5: update_metrics -> state-machine rules
// -> transition -> completion check -> workflow rules -> admission. A
// stream that closes on its own (rather than erroring) is reopened,
// rate-limited so a backend stuck in a closed-reopen cycle cannot spin
// the control loop hot.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.watcher.Start(ctx); err != nil {
		return jobflowerrors.Wrap(err, "starting watcher")
	}

	limiter := rate.NewLimiter(reconnectRate, 1)

	for {
		events, err := m.backend.StreamEvents(ctx)
		if err != nil {
			return jobflowerrors.Wrap(err, "opening event stream")
		}

		closed, err := m.drainEvents(ctx, events)
		if err != nil {
			return err
		}
		if !closed {
			return nil
		}

		m.logger.Warn("event stream closed, reconnecting")
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
	}
}

// drainEvents consumes events until the context is canceled (closed=false,
// err=ctx.Err()), the workflow completes (closed=false, err=nil), or the
// channel closes on its own (closed=true) so Run can reconnect.
func (m *Manager) drainEvents(ctx context.Context, events <-chan tracker.Job) (closed bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case job, ok := <-events:
			if !ok {
				return true, nil
			}
			m.handleEvent(ctx, job)
			if m.checkComplete(ctx) {
				return false, nil
			}
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, job tracker.Job) {
	jobid := job.JobID()
	step := job.StepName()
	if jobid == "" || step == "" {
		return
	}
	sm, tracked := m.machines[jobid]
	if !tracked {
		return
	}

	m.firstSeenFor(job.Label())

	evCtx, span := m.observer.StartEvent(ctx, jobid, step)
	defer span.End(nil)

	if job.IsActive() && !job.IsCompleted() {
		return
	}

	updatePhase := span.StartPhase(evCtx, "update_metrics")
	m.updateMetrics(job, sm)
	updatePhase.End()

	repeatPhase := span.StartPhase(evCtx, "check_state_machine_metrics")
	for _, r := range m.cfg.Rules.TriggeredStateMachineRules(m.store, step, len(m.completed)) {
		repeatPhase.SetAction(string(r.Action.Name))
		sm.Repeat(step)
	}
	repeatPhase.End()

	isRepeating := sm.IsRepeating()

	dispatchPhase := span.StartPhase(evCtx, "dispatch_transition")
	switch {
	case job.IsFailed() && job.AlwaysSucceed():
		m.succeedJob(evCtx, job, sm)
	case job.IsSucceeded():
		m.succeedJob(evCtx, job, sm)
	case job.IsFailed():
		m.failJob(evCtx, jobid, sm)
	}
	dispatchPhase.End()

	m.checkComplete(ctx)

	workflowPhase := span.StartPhase(evCtx, "check_workflow_metrics")
	for _, r := range m.cfg.Rules.TriggeredWorkflowRules(m.store, len(m.completed)) {
		workflowPhase.SetAction(string(r.Action.Name))
		m.applyWorkflowRule(r)
	}
	workflowPhase.End()

	if !isRepeating {
		admitPhase := span.StartPhase(evCtx, "admit")
		if err := m.admit(evCtx); err != nil {
			m.logger.Warn("admission failed", "error", err)
		}
		admitPhase.End()
	}
}

// updateMetrics implements update_metrics: classify the completed
// job's outcome into the success/failure counters, feed duration when
// available, then drain any custom metrics the job's log surfaced.
func (m *Manager) updateMetrics(job tracker.Job, sm *statemachine.Machine) {
	step := job.StepName()
	switch {
	case job.IsSucceeded(), job.IsFailed() && job.AlwaysSucceed():
		m.store.IncrementCounter("success", step, 1)
	case job.IsFailed():
		m.store.IncrementCounter("failure", step, 1)
	}

	if job.IsCompleted() {
		if seconds, ok := job.Duration(); ok {
			m.store.AddModelEntry("duration", seconds, step)
		}
	}

	if err := sm.PostCompletion(context.Background(), job, m.saver); err != nil {
		m.logger.Warn("post-completion log save failed", "jobid", job.JobID(), "step", step, "error", err)
	}
	for _, custom := range sm.DrainMetrics() {
		m.store.AddCustomMetric(custom, step)
	}
}

// succeedJob implements succeed_job: mark_succeeded, then advance the
// machine unless it has already reached the terminal state.
func (m *Manager) succeedJob(ctx context.Context, job tracker.Job, sm *statemachine.Machine) {
	m.addTimedEvent(job.Label() + "_succeeded")
	sm.MarkSucceeded(job.StepName())
	if sm.IsComplete() {
		return
	}
	if err := sm.Change(ctx); err != nil {
		m.logger.Warn("transition failed after success", "jobid", job.JobID(), "error", err)
		return
	}
	if sm.IsComplete() {
		m.completed[job.JobID()] = true
	}
}

// failJob implements fail_job: mark_failed, cleanup every backend
// object for the sequence, then drop it from the live table.
func (m *Manager) failJob(ctx context.Context, jobid string, sm *statemachine.Machine) {
	m.addTimedEvent(jobid + "_failed")
	sm.MarkFailed("")
	if err := sm.Cleanup(ctx); err != nil {
		m.logger.Warn("cleanup failed for failed sequence", "jobid", jobid, "error", err)
	}
	delete(m.machines, jobid)
}
