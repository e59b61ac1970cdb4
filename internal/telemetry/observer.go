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

import "context"

// EventObserver lets a WorkflowManager report the phases of one watch
// iteration without the control loop importing a tracing library
// directly. Tracer is the only production implementation; tests and
// callers that don't care about tracing use NoopObserver.
type EventObserver interface {
	// StartEvent opens the jobflow.event span for one (jobid, step)
	// watch notification.
	StartEvent(ctx context.Context, jobid, step string) (context.Context, EventSpan)
}

// EventSpan is the jobflow.event span for a single watch iteration. Its
// phases mirror the fixed per-event order a WorkflowManager always runs
// in: update_metrics, check_state_machine_metrics, dispatch_transition,
// check_workflow_metrics, admit.
type EventSpan interface {
	// StartPhase opens a named child span. Callers defer the returned
	// PhaseSpan's End.
	StartPhase(ctx context.Context, name string) PhaseSpan

	// End closes the event span. A non-nil err marks the span failed.
	End(err error)
}

// PhaseSpan is one child span within an EventSpan.
type PhaseSpan interface {
	// SetAction records the name of a rule action fired during this
	// phase. Safe to call more than once; each call adds an event.
	SetAction(action string)
	End()
}

// NoopObserver discards every call. The zero value is ready to use.
type NoopObserver struct{}

func (NoopObserver) StartEvent(ctx context.Context, _, _ string) (context.Context, EventSpan) {
	return ctx, noopEventSpan{}
}

type noopEventSpan struct{}

func (noopEventSpan) StartPhase(_ context.Context, _ string) PhaseSpan { return noopPhaseSpan{} }
func (noopEventSpan) End(error)                                        {}

type noopPhaseSpan struct{}

func (noopPhaseSpan) SetAction(string) {}
func (noopPhaseSpan) End()             {}
