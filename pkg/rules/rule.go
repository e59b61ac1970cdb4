package rules

import (
	"fmt"
	"strings"

	"github.com/nodeflow/jobflow/pkg/errors"
)

// Coordinate addresses a metric reading in MetricsStore: which
// streaming model, which step, which key. A rule's "<model>.<step>.<key>"
// config key parses directly into one.
type Coordinate struct {
	Model string
	Step  string
	Key   string
}

// ParseCoordinate splits a "<model>.<step>.<key>" rule config key.
func ParseCoordinate(raw string) (Coordinate, error) {
	parts := strings.SplitN(raw, ".", 3)
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("rule key %q must have the form <model>.<step>.<key>", raw)
	}
	return Coordinate{Model: parts[0], Step: parts[1], Key: parts[2]}, nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s.%s.%s", c.Model, c.Step, c.Key)
}

// Rule binds a predicate and an action to a metric coordinate.
type Rule struct {
	Coordinate Coordinate
	When       *When
	Action     *Action
	Disabled   bool
}

// NewRule constructs and validates a Rule from its parsed config
// fields. Validation happens once, at load time: the action name must
// be one of the four known names, a numeric "when" must be
// non-negative, and otherwise a dry-run evaluation with an arbitrary
// value must not fail.
func NewRule(coordRaw string, whenRaw interface{}, action *Action, disabled bool, eval *Evaluator) (*Rule, error) {
	coord, err := ParseCoordinate(coordRaw)
	if err != nil {
		return nil, &errors.InvalidRuleError{RuleKey: coordRaw, Reason: err.Error()}
	}

	when, err := ParseWhen(whenRaw)
	if err != nil {
		return nil, &errors.InvalidRuleError{RuleKey: coordRaw, Reason: err.Error()}
	}

	if !action.Name.Valid() {
		return nil, &errors.InvalidRuleError{RuleKey: coordRaw, Reason: fmt.Sprintf("unknown action %q", action.Name)}
	}

	if when.isNegativeEquality() {
		return nil, &errors.InvalidRuleError{RuleKey: coordRaw, Reason: "numeric when must be >= 0"}
	}

	dryRun := 10.0
	if _, err := when.Evaluate(&dryRun, eval); err != nil {
		return nil, &errors.InvalidRuleError{RuleKey: coordRaw, Reason: fmt.Sprintf("dry-run evaluation failed: %v", err)}
	}

	return &Rule{Coordinate: coord, When: when, Action: action, Disabled: disabled}, nil
}

// ShouldTrigger evaluates the rule against an observed value and, if it
// fires, commits the rate-limit state change. value is nil when the
// coordinate has never been updated in MetricsStore.
func (r *Rule) ShouldTrigger(value *float64, eval *Evaluator) (bool, error) {
	if r.Disabled {
		return false, nil
	}
	if r.Action.exhausted() {
		return false, nil
	}
	if r.Action.rateLimited() {
		return false, nil
	}

	matched, err := r.When.Evaluate(value, eval)
	if err != nil {
		return false, err
	}
	if !matched {
		return false, nil
	}

	r.Action.commit()
	return true, nil
}
