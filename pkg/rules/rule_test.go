package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/metrics"
)

func ptr(f float64) *float64 { return &f }

func TestParseWhenAbsentMatchesAlways(t *testing.T) {
	w, err := ParseWhen(nil)
	require.NoError(t, err)
	ok, err := w.Evaluate(nil, NewEvaluator())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseWhenUndefinedMatchesOnlyAbsentValue(t *testing.T) {
	w, err := ParseWhen("undefined")
	require.NoError(t, err)

	ok, _ := w.Evaluate(nil, NewEvaluator())
	assert.True(t, ok)

	ok, _ = w.Evaluate(ptr(1), NewEvaluator())
	assert.False(t, ok)
}

func TestParseWhenNumericEquality(t *testing.T) {
	w, err := ParseWhen(3.0)
	require.NoError(t, err)

	ok, _ := w.Evaluate(ptr(3), NewEvaluator())
	assert.True(t, ok)

	ok, _ = w.Evaluate(ptr(4), NewEvaluator())
	assert.False(t, ok)
}

func TestParseWhenInequalityGrammar(t *testing.T) {
	cases := []struct {
		when  string
		value float64
		want  bool
	}{
		{">= 3", 3, true},
		{">= 3", 2.9, false},
		{"> 3", 3, false},
		{"<= 10", 10, true},
		{"< 10", 10, false},
		{"== 5", 5, true},
		{"=5", 5, true},
	}
	for _, c := range cases {
		w, err := ParseWhen(c.when)
		require.NoError(t, err)
		ok, err := w.Evaluate(ptr(c.value), NewEvaluator())
		require.NoError(t, err)
		assert.Equal(t, c.want, ok, "when=%q value=%v", c.when, c.value)
	}
}

func TestParseWhenRejectsUnsupportedGrammar(t *testing.T) {
	_, err := ParseWhen("~= 5")
	assert.Error(t, err)
}

func TestValueAbsentFailsInequalityAndEquality(t *testing.T) {
	w, _ := ParseWhen(">= 3")
	ok, _ := w.Evaluate(nil, NewEvaluator())
	assert.False(t, ok)
}

func TestNewRuleRejectsUnknownAction(t *testing.T) {
	_, err := NewRule("count.step1.success", nil, &Action{Name: "explode"}, false, NewEvaluator())
	require.Error(t, err)
	var invalid *errors.InvalidRuleError
	assert.True(t, errors.As(err, &invalid))
}

func TestNewRuleRejectsNegativeNumericWhen(t *testing.T) {
	_, err := NewRule("count.step1.success", -1.0, &Action{Name: ActionGrow}, false, NewEvaluator())
	assert.Error(t, err)
}

func TestNewRuleRejectsBadCoordinate(t *testing.T) {
	_, err := NewRule("not-a-coordinate", nil, &Action{Name: ActionGrow}, false, NewEvaluator())
	assert.Error(t, err)
}

func TestRuleShouldTriggerRespectsRepetitions(t *testing.T) {
	reps := 2
	r, err := NewRule("count.step1.success", nil, &Action{Name: ActionGrow, Repetitions: &reps}, false, NewEvaluator())
	require.NoError(t, err)

	eval := NewEvaluator()
	ok, err := r.ShouldTrigger(ptr(1), eval)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, reps)

	ok, _ = r.ShouldTrigger(ptr(1), eval)
	assert.True(t, ok)
	assert.Equal(t, 0, reps)

	ok, _ = r.ShouldTrigger(ptr(1), eval)
	assert.False(t, ok, "exhausted rule must not fire a third time")
}

func TestRuleShouldTriggerRespectsBackoff(t *testing.T) {
	backoff := 2
	r, err := NewRule("count.step1.success", nil, &Action{Name: ActionGrow, Backoff: &backoff}, false, NewEvaluator())
	require.NoError(t, err)

	eval := NewEvaluator()
	ok, _ := r.ShouldTrigger(ptr(1), eval)
	assert.True(t, ok, "first evaluation always fires when when is absent")

	ok, _ = r.ShouldTrigger(ptr(1), eval)
	assert.False(t, ok, "first post-firing evaluation is throttled")

	ok, _ = r.ShouldTrigger(ptr(1), eval)
	assert.False(t, ok, "second post-firing evaluation is throttled")

	ok, _ = r.ShouldTrigger(ptr(1), eval)
	assert.True(t, ok, "third evaluation after firing is allowed again")
}

func TestRuleShouldTriggerDisabledNeverFires(t *testing.T) {
	r, err := NewRule("count.step1.success", nil, &Action{Name: ActionGrow}, true, NewEvaluator())
	require.NoError(t, err)

	ok, err := r.ShouldTrigger(ptr(1), NewEvaluator())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineTriggeredStateMachineRulesFiltersByStepAndScope(t *testing.T) {
	eval := NewEvaluator()
	repeatRule, err := NewRule("count.step1.failure", ">= 1", &Action{Name: ActionRepeat, Metric: "failure"}, false, eval)
	require.NoError(t, err)
	growRule, err := NewRule("count.step1.success", ">= 1", &Action{Name: ActionGrow, Metric: "success"}, false, eval)
	require.NoError(t, err)

	engine := NewEngine([]*Rule{repeatRule, growRule})
	store := metrics.NewStore()
	store.IncrementCounter("failure", "step1", 1)
	store.IncrementCounter("success", "step1", 1)

	fired := engine.TriggeredStateMachineRules(store, "step1", 0)
	require.Len(t, fired, 1)
	assert.Equal(t, ActionRepeat, fired[0].Action.Name)
}

func TestEngineTriggeredStateMachineRulesRespectsMinCompletions(t *testing.T) {
	eval := NewEvaluator()
	repeatRule, err := NewRule("count.step1.failure", ">= 1", &Action{Name: ActionRepeat, Metric: "failure", MinCompletions: 2}, false, eval)
	require.NoError(t, err)

	engine := NewEngine([]*Rule{repeatRule})
	store := metrics.NewStore()
	store.IncrementCounter("failure", "step1", 1)

	assert.Empty(t, engine.TriggeredStateMachineRules(store, "step1", 1))
	assert.Len(t, engine.TriggeredStateMachineRules(store, "step1", 2), 1)
}

func TestEngineTriggeredWorkflowRulesSkipsStateMachineScoped(t *testing.T) {
	repeatRule, err := NewRule("count.step1.failure", nil, &Action{Name: ActionRepeat}, false, NewEvaluator())
	require.NoError(t, err)
	finishRule, err := NewRule("count.global.success", ">= 3", &Action{Name: ActionFinishWorkflow}, false, NewEvaluator())
	require.NoError(t, err)

	engine := NewEngine([]*Rule{repeatRule, finishRule})
	store := metrics.NewStore()
	store.IncrementCounter("success", metrics.GlobalStep, 3)

	fired := engine.TriggeredWorkflowRules(store, 0)
	require.Len(t, fired, 1)
	assert.Equal(t, ActionFinishWorkflow, fired[0].Action.Name)
}

func TestEngineTriggeredWorkflowRulesRespectsMinCompletions(t *testing.T) {
	finishRule, err := NewRule("count.global.success", ">= 3", &Action{Name: ActionFinishWorkflow, MinCompletions: 5}, false, NewEvaluator())
	require.NoError(t, err)

	engine := NewEngine([]*Rule{finishRule})
	store := metrics.NewStore()
	store.IncrementCounter("success", metrics.GlobalStep, 3)

	assert.Empty(t, engine.TriggeredWorkflowRules(store, 4))
	assert.Len(t, engine.TriggeredWorkflowRules(store, 5), 1)
}
