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

import "github.com/nodeflow/jobflow/pkg/rules"

// applyWorkflowRule applies one fired workflow-scoped rule (grow,
// shrink, finish-workflow) against the step its coordinate names.
// repeat is handled separately, at the state-machine-scoped call site.
func (m *Manager) applyWorkflowRule(r *rules.Rule) {
	switch r.Action.Name {
	case rules.ActionGrow:
		m.applyGrow(r)
	case rules.ActionShrink:
		m.applyShrink(r)
	case rules.ActionFinishWorkflow:
		m.logger.Info("finish-workflow rule fired", "coordinate", r.Coordinate.String())
		m.requestFinish()
	}
}

// applyGrow implements trigger_grow, preserving the off-by-one noted
// in spec §9: nodes stop growing once one more would reach maxSize,
// reserving one slot below it rather than filling it exactly.
func (m *Manager) applyGrow(r *rules.Rule) {
	step, ok := m.cfg.StepByName(r.Coordinate.Step)
	if !ok {
		return
	}
	maxSize := r.Action.MaxSize
	if maxSize > 0 && step.NNodes+1 >= maxSize {
		return
	}
	step.NNodes++
	m.logger.Info("grow applied", "step", step.Name, "nnodes", step.NNodes)
}

// applyShrink implements trigger_shrink: nodes never drop below
// max(minSize, 1).
func (m *Manager) applyShrink(r *rules.Rule) {
	step, ok := m.cfg.StepByName(r.Coordinate.Step)
	if !ok {
		return
	}
	floor := r.Action.MinSize
	if floor < 1 {
		floor = 1
	}
	if step.NNodes <= floor {
		return
	}
	step.NNodes--
	m.logger.Info("shrink applied", "step", step.Name, "nnodes", step.NNodes)
}
