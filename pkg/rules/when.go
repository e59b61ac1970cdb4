package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nodeflow/jobflow/pkg/errors"
)

var inequalityPattern = regexp.MustCompile(`^(<=|>=|==|<|>|=)\s*(-?\d+(\.\d*)?)$`)

type predicateKind int

const (
	predicateAbsent predicateKind = iota
	predicateUndefined
	predicateEqual
	predicateInequality
)

// When is a Rule's predicate over an observed metric value: absent
// (always true, modulo rate-limiting), the literal token "undefined"
// (true only when the value itself is absent), a bare number (equality),
// or an inequality string like ">= 3".
type When struct {
	kind predicateKind
	num  float64
	op   string
}

// ParseWhen parses a YAML-decoded "when" clause. raw is nil, a float64/
// int, or a string, matching the shapes gopkg.in/yaml.v3 produces for a
// scalar node.
func ParseWhen(raw interface{}) (*When, error) {
	switch v := raw.(type) {
	case nil:
		return &When{kind: predicateAbsent}, nil
	case float64:
		return &When{kind: predicateEqual, num: v}, nil
	case int:
		return &When{kind: predicateEqual, num: float64(v)}, nil
	case string:
		if v == "undefined" {
			return &When{kind: predicateUndefined}, nil
		}
		m := inequalityPattern.FindStringSubmatch(v)
		if m == nil {
			return nil, fmt.Errorf("when %q does not match the supported grammar", v)
		}
		num, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, fmt.Errorf("when %q has an unparseable number: %w", v, err)
		}
		return &When{kind: predicateInequality, op: m[1], num: num}, nil
	default:
		return nil, fmt.Errorf("when has unsupported type %T", raw)
	}
}

// isNegativeEquality reports whether this is a bare-equality
// predicate with a negative operand, for load-time validation.
func (w *When) isNegativeEquality() bool {
	return w.kind == predicateEqual && w.num < 0
}

// Evaluate resolves the predicate against an observed value. value is
// nil when the metric coordinate has never been updated.
func (w *When) Evaluate(value *float64, eval *Evaluator) (bool, error) {
	switch w.kind {
	case predicateAbsent:
		return true, nil
	case predicateUndefined:
		return value == nil, nil
	}
	if value == nil {
		return false, nil
	}
	switch w.kind {
	case predicateEqual:
		return *value == w.num, nil
	case predicateInequality:
		return eval.evaluateInequality(w.op, w.num, *value)
	}
	return false, nil
}

// Evaluator runs the parsed inequality through expr-lang, compiling
// each distinct operator once and caching the compiled program. This
// mirrors the compile-and-cache pattern used elsewhere in this module
// for workflow step conditions, applied here to the fixed six-operator
// grammar the rules grammar allows.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator returns an Evaluator with an empty compiled-program
// cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

func (e *Evaluator) evaluateInequality(op string, threshold, value float64) (bool, error) {
	source := fmt.Sprintf("value %s threshold", normalizeOp(op))

	program, err := e.compile(source)
	if err != nil {
		return false, errors.Wrapf(err, "compiling rule inequality %q", source)
	}

	out, err := expr.Run(program, map[string]interface{}{
		"value":     value,
		"threshold": threshold,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluating rule inequality %q", source)
	}

	result, ok := out.(bool)
	if !ok {
		return false, &errors.ValidationError{
			Field:   "when",
			Message: fmt.Sprintf("inequality expression returned %T, want bool", out),
		}
	}
	return result, nil
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[source]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	program, err := expr.Compile(source, expr.Env(map[string]interface{}{
		"value":     0.0,
		"threshold": 0.0,
	}))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[source] = program
	e.mu.Unlock()
	return program, nil
}

func normalizeOp(op string) string {
	if op == "=" {
		return "=="
	}
	return op
}
