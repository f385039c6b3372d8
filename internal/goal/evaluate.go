package goal

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// Evaluate compares actual against limit with op. When actual misses the
// limit but satisfies the same comparison against variation, the goal is
// within acceptable variation. A nil or NaN variation disables that band.
// Equality and unknown operators are not evaluated and yield NA.
//
// Comparisons follow IEEE semantics, so a NaN actual fails every supported
// operator; Evaluator decides how undefined values are reported.
func Evaluate(op model.Operator, limit float64, variation *float64, actual float64) model.Verdict {
	var cmp func(a, b float64) bool
	switch op {
	case model.OperatorGreaterThan:
		cmp = func(a, b float64) bool { return a > b }
	case model.OperatorGreaterThanOrEqual:
		cmp = func(a, b float64) bool { return a >= b }
	case model.OperatorLessThan:
		cmp = func(a, b float64) bool { return a < b }
	case model.OperatorLessThanOrEqual:
		cmp = func(a, b float64) bool { return a <= b }
	default:
		return model.VerdictNotAvailable
	}

	if cmp(actual, limit) {
		return model.VerdictPassed
	}
	if variation != nil && !math.IsNaN(*variation) && cmp(actual, *variation) {
		return model.VerdictWithinVariationAcceptable
	}
	return model.VerdictFailed
}

// UndefinedPolicy selects the verdict reported for an undefined actual value.
type UndefinedPolicy string

const (
	// UndefinedNotAvailable reports NA so an out-of-domain lookup is not
	// mistaken for a failed goal.
	UndefinedNotAvailable UndefinedPolicy = "not_available"
	// UndefinedFailed keeps plain IEEE comparison behaviour.
	UndefinedFailed UndefinedPolicy = "failed"
)

// ParseUndefinedPolicy validates a policy name.
func ParseUndefinedPolicy(s string) (UndefinedPolicy, error) {
	switch p := UndefinedPolicy(s); p {
	case UndefinedNotAvailable, UndefinedFailed:
		return p, nil
	case "":
		return UndefinedNotAvailable, nil
	default:
		return "", eris.Errorf("goal: unknown undefined-value policy %q", s)
	}
}

// Evaluator scores goals, applying limit normalisation and the undefined
// value policy around Evaluate.
type Evaluator struct {
	undefined UndefinedPolicy
}

// NewEvaluator creates an Evaluator with the given policy.
func NewEvaluator(policy UndefinedPolicy) *Evaluator {
	if policy == "" {
		policy = UndefinedNotAvailable
	}
	return &Evaluator{undefined: policy}
}

// EffectiveLimit returns the objective limit in the units actual values are
// measured in.
func EffectiveLimit(g model.ClinicalGoal) float64 {
	return g.Objective.Limit / Resolve(g).LimitDivisor
}

// EvaluateGoal scores actual against the goal's objective.
func (e *Evaluator) EvaluateGoal(g model.ClinicalGoal, actual float64) model.Verdict {
	verdict := Evaluate(g.Objective.Operator, EffectiveLimit(g), g.VariationAcceptable, actual)
	if math.IsNaN(actual) && verdict == model.VerdictFailed && e.undefined == UndefinedNotAvailable {
		return model.VerdictNotAvailable
	}
	return verdict
}
