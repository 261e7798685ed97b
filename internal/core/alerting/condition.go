package alerting

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Threshold operators supported in alert rules
const (
	OpGreaterThan    = ">"
	OpLessThan       = "<"
	OpGreaterOrEqual = ">="
	OpLessOrEqual    = "<="
	OpEqual          = "="
	OpNotEqual       = "!="
)

// conditionEpsilon is the tolerance used for equality comparisons so that
// float rounding never flips an alert decision
const conditionEpsilon = 0.001

// EvaluateCondition compares a metric value against a threshold. Unknown
// operators never trigger: malformed rule config must fail safe.
func EvaluateCondition(value, threshold float64, operator string, logger *logrus.Logger) bool {
	switch operator {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpEqual:
		return math.Abs(value-threshold) < conditionEpsilon
	case OpNotEqual:
		return math.Abs(value-threshold) >= conditionEpsilon
	default:
		logger.WithField("operator", operator).Warn("Unknown threshold operator in alert rule")
		return false
	}
}

// ValidOperator reports whether the operator is one the evaluator understands
func ValidOperator(operator string) bool {
	switch operator {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}
