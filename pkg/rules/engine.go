package rules

import (
	"github.com/nodeflow/jobflow/pkg/metrics"
)

// Engine holds the full set of Rules parsed from a workflow config and
// evaluates them against a MetricsStore. It does not own the store:
// MetricsStore is owned by the manager, and the Engine is handed a
// reference each time it is asked to evaluate.
type Engine struct {
	rules []*Rule
	eval  *Evaluator
}

// NewEngine wraps a set of already-validated rules.
func NewEngine(rules []*Rule) *Engine {
	return &Engine{rules: rules, eval: NewEvaluator()}
}

// Rules returns every rule in the engine, for callers that need to
// iterate directly (e.g. printing a config summary).
func (e *Engine) Rules() []*Rule {
	return e.rules
}

// TriggeredStateMachineRules evaluates every state-machine-scoped rule
// (currently only "repeat") whose coordinate's step matches step,
// returning the subset that fired. This is step 5 of the per-event
// order in §4.5: evaluated before the state machine's transition so a
// repeat can suppress the success mark that would otherwise follow.
func (e *Engine) TriggeredStateMachineRules(store *metrics.Store, step string, completedCount int) []*Rule {
	var fired []*Rule
	for _, r := range e.rules {
		if !r.Action.Name.StateMachineScoped() {
			continue
		}
		if r.Coordinate.Step != step {
			continue
		}
		if r.Action.MinCompletions > 0 && completedCount < r.Action.MinCompletions {
			continue
		}
		value := lookup(store, r.Coordinate)
		ok, err := r.ShouldTrigger(value, e.eval)
		if err != nil {
			continue
		}
		if ok {
			fired = append(fired, r)
		}
	}
	return fired
}

// TriggeredWorkflowRules evaluates every workflow-scoped rule (grow,
// shrink, finish-workflow) against the current MetricsStore contents,
// returning the subset that fired. This runs after the state machine's
// transition and completion check, per the mandated per-event order.
func (e *Engine) TriggeredWorkflowRules(store *metrics.Store, completedCount int) []*Rule {
	var fired []*Rule
	for _, r := range e.rules {
		if r.Action.Name.StateMachineScoped() {
			continue
		}
		if r.Action.MinCompletions > 0 && completedCount < r.Action.MinCompletions {
			continue
		}
		value := lookup(store, r.Coordinate)
		ok, err := r.ShouldTrigger(value, e.eval)
		if err != nil {
			continue
		}
		if ok {
			fired = append(fired, r)
		}
	}
	return fired
}

// lookup resolves a rule coordinate to the observed value of its
// named streaming model, or nil if the (step, key) pair has never been
// updated, or if the named model is not one of the seven known
// families.
func lookup(store *metrics.Store, coord Coordinate) *float64 {
	snap, ok := store.Get(coord.Step, coord.Key)
	if !ok {
		return nil
	}
	var v float64
	switch coord.Model {
	case "count":
		v = snap.Count
	case "mean":
		v = snap.Mean
	case "variance":
		v = snap.Variance
	case "min":
		v = snap.Min
	case "max":
		v = snap.Max
	case "iqr":
		v = snap.IQR
	case "mad":
		v = snap.MAD
	default:
		return nil
	}
	return &v
}
