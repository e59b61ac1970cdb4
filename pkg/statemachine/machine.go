// Package statemachine implements the per-sequence finite state machine
// described in §4.3 and §9: a fixed linear chain start -> s1 -> ... ->
// sN -> complete, represented as a tagged variant plus a parallel
// boolean vector, rather than synthesizing one FSM class per workflow
// as the original does. The step set is known at load time, so there
// is nothing dynamic left to synthesize.
package statemachine

import (
	"context"
	"fmt"

	"github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// Phase tags which of the three kinds of state a Machine is in.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseStep
	PhaseComplete
)

// ErrAlreadyTransitioned is returned by Change when the machine has
// already reached PhaseComplete; reconciliation swallows it.
var ErrAlreadyTransitioned = errors.New("state machine has already completed")

// Submitter is the narrow capability a Machine needs from a backend:
// submit a step's job and clean up every job belonging to a sequence.
// It is satisfied by tracker.StepSubmitter.
type Submitter = tracker.StepSubmitter

// Machine is one sequence's FSM: which step it is on, and the
// per-step success/failure/repeat flags that drive the guarded
// transition. Steps is shared, immutable, load-time data; everything
// else is this sequence's own mutable state.
type Machine struct {
	JobID string
	Steps []string

	phase     Phase
	stepIndex int // valid when phase == PhaseStep; 0-based into Steps

	success []bool
	failure []bool
	repeat  []bool

	isComplete bool

	submitter Submitter
	metrics   []map[string]float64
}

// New creates a Machine at PhaseStart for a fresh or reconciled
// sequence. steps must be non-empty; callers validate this at config
// load time.
func New(jobid string, steps []string, submitter Submitter) *Machine {
	n := len(steps)
	return &Machine{
		JobID:     jobid,
		Steps:     steps,
		phase:     PhaseStart,
		success:   make([]bool, n),
		failure:   make([]bool, n),
		repeat:    make([]bool, n),
		submitter: submitter,
	}
}

// CurrentStep returns the step name the machine is on, and whether it
// is currently on a step at all (false at PhaseStart and PhaseComplete).
func (m *Machine) CurrentStep() (string, bool) {
	if m.phase != PhaseStep {
		return "", false
	}
	return m.Steps[m.stepIndex], true
}

// IsComplete reports whether the sequence reached the terminal state.
func (m *Machine) IsComplete() bool { return m.isComplete }

// IsRepeating reports whether any step's repeat flag is currently set.
func (m *Machine) IsRepeating() bool {
	for _, r := range m.repeat {
		if r {
			return true
		}
	}
	return false
}

// IsRunning reports whether step is neither marked succeeded nor
// failed yet. An empty step defaults to the machine's current step.
func (m *Machine) IsRunning(step string) bool {
	i, ok := m.indexOf(step)
	if !ok {
		return false
	}
	return !m.success[i] && !m.failure[i]
}

// IsFailed reports whether step has been marked failed. An empty step
// defaults to the current step.
func (m *Machine) IsFailed(step string) bool {
	i, ok := m.indexOf(step)
	return ok && m.failure[i]
}

// IsSucceeded reports whether step has been marked succeeded. An empty
// step defaults to the current step.
func (m *Machine) IsSucceeded(step string) bool {
	i, ok := m.indexOf(step)
	return ok && m.success[i]
}

func (m *Machine) indexOf(step string) (int, bool) {
	if step == "" {
		if m.phase != PhaseStep {
			return 0, false
		}
		return m.stepIndex, true
	}
	for i, s := range m.Steps {
		if s == step {
			return i, true
		}
	}
	return 0, false
}

// Repeat sets step's repeat flag, suppressing the success mark that
// would otherwise follow so the self-loop fires on the next Change.
// An empty step defaults to the current step.
func (m *Machine) Repeat(step string) {
	if i, ok := m.indexOf(step); ok {
		m.repeat[i] = true
	}
}

// MarkSucceeded sets step's success flag, unless its repeat flag is
// set, in which case the mark is suppressed entirely so the self-loop
// fires instead. An empty step defaults to the current step.
func (m *Machine) MarkSucceeded(step string) {
	i, ok := m.indexOf(step)
	if !ok {
		return
	}
	if m.repeat[i] {
		return
	}
	m.success[i] = true
}

// MarkFailed sets step's failure flag. An empty step defaults to the
// current step.
func (m *Machine) MarkFailed(step string) {
	if i, ok := m.indexOf(step); ok {
		m.failure[i] = true
	}
}

// MarkRunning walks the step list up to and including step, marking
// every predecessor succeeded. Used during reconciliation to fast
// forward a machine to match a live backend job observed mid-sequence.
func (m *Machine) MarkRunning(step string) {
	idx, ok := m.indexOf(step)
	if !ok {
		return
	}
	for i := 0; i < idx; i++ {
		m.success[i] = true
	}
	m.phase = PhaseStep
	m.stepIndex = idx
}

// Change drives the single `change` event: guards are evaluated in
// declaration order for the current step and the first truthy guard
// wins, exactly mirroring a statechart's transition dispatch even
// though there is no statechart object behind it.
//
// Returns ErrAlreadyTransitioned if the machine is already
// PhaseComplete: reconciliation calls Change speculatively and must
// swallow this.
func (m *Machine) Change(ctx context.Context) error {
	switch m.phase {
	case PhaseComplete:
		return ErrAlreadyTransitioned
	case PhaseStart:
		m.phase = PhaseStep
		m.stepIndex = 0
		return m.onEnter(ctx)
	case PhaseStep:
		i := m.stepIndex
		switch {
		case m.repeat[i]:
			// self-loop: stay on the same step, clear the repeat
			// flag after the repeat submission is issued below.
		case m.success[i]:
			if i+1 == len(m.Steps) {
				m.phase = PhaseComplete
				m.isComplete = true
				return nil
			}
			m.stepIndex = i + 1
		case m.failure[i]:
			// terminal failure for this sequence; no further
			// transition happens from a failed step.
			return nil
		default:
			return fmt.Errorf("state machine %s: no guard satisfied for step %s", m.JobID, m.Steps[i])
		}
		return m.onEnter(ctx)
	default:
		return fmt.Errorf("state machine %s: unknown phase", m.JobID)
	}
}

func (m *Machine) onEnter(ctx context.Context) error {
	i := m.stepIndex
	step := m.Steps[i]

	if m.success[i] {
		return nil // already done; prevents double-submit
	}
	if m.failure[i] {
		return nil // terminal failure for this sequence
	}

	wasRepeat := m.repeat[i]
	code, err := m.submitter.Submit(ctx, m.JobID, step, wasRepeat)
	if err != nil && code != tracker.SubmissionConflict {
		return errors.Wrapf(err, "submitting job %s step %s", m.JobID, step)
	}
	if wasRepeat {
		m.repeat[i] = false
	}
	return nil
}

// Cleanup calls Cleanup on the submitter for this machine's jobid,
// tolerating failure (the caller logs it; it must not abort the wider
// sequence teardown).
func (m *Machine) Cleanup(ctx context.Context) error {
	return m.submitter.Cleanup(ctx, m.JobID)
}

// PostCompletion is invoked on completion (success or failure) of a
// step's job: it calls the backend's optional log-parsing capability
// and buffers any custom metrics it surfaces for later draining into
// MetricsStore. Log-save and metric-parse failures are logged by the
// caller and otherwise swallowed: they must never abort the sequence.
func (m *Machine) PostCompletion(ctx context.Context, job tracker.Job, saver tracker.LogSaver) error {
	if saver == nil {
		return nil
	}
	custom, err := saver.SaveLog(ctx, job)
	if err != nil {
		return err
	}
	if len(custom) > 0 {
		m.metrics = append(m.metrics, custom)
	}
	return nil
}

// DrainMetrics returns and clears the buffer of custom metrics
// accumulated by PostCompletion calls since the last drain.
func (m *Machine) DrainMetrics() []map[string]float64 {
	drained := m.metrics
	m.metrics = nil
	return drained
}
