package errors

import (
	"fmt"
	"math"
)

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Index     int
	Value     float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("pricecast: numerical instability detected in %s at iteration %d: value %g at index %d",
		e.Operation, e.Iteration, e.Value, e.Index)
}

func (e *NumericalInstabilityError) Unwrap() error {
	return ErrNonFinite
}

// CheckNumericalStability は values に NaN または Inf が含まれていればエラーを返します。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return WithStack(&NumericalInstabilityError{Operation: operation, Index: i, Value: v, Iteration: iteration})
		}
	}
	return nil
}
