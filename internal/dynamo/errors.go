package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates a state or parameter vector whose length
	// does not match what the model or matrix expects.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSingularMatrix indicates a pivot below threshold during a linear solve.
	ErrSingularMatrix = errors.New("dynamo: singular matrix")

	// ErrNonConvergence indicates the Newton iteration hit its sweep cap
	// without meeting the tolerance. It is reported as a [Warning], not returned.
	ErrNonConvergence = errors.New("dynamo: newton iteration did not converge")

	// ErrStepBudgetExhausted indicates max_steps outer iterations were used
	// before reaching t_end. The accompanying Result is valid but incomplete.
	ErrStepBudgetExhausted = errors.New("dynamo: step budget exhausted before t_end")

	// ErrInvalidConfig indicates options or run arguments outside their valid range.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")
)

// StepError wraps an error with the context of the step that produced it.
type StepError struct {
	Step    int
	Time    float64
	H       float64
	State   State
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g, h=%.3g): %v", e.Step, e.Time, e.H, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// WarningKind classifies a non-fatal condition observed during a run.
type WarningKind string

const (
	WarnNonConvergence WarningKind = "non-convergence"
	WarnSingularMatrix WarningKind = "singular-matrix"
)

// Warning records a non-fatal condition. Step is the outer iteration index.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Step    int         `json:"step"`
	Time    float64     `json:"time"`
	H       float64     `json:"h"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("step %d (t=%.6g, h=%.3g): %s: %s", w.Step, w.Time, w.H, w.Kind, w.Message)
}

// DimError builds an ErrDimensionMismatch with a description of what was expected.
func DimError(what string, want, got int) error {
	return fmt.Errorf("%w: %s expects %d, got %d", ErrDimensionMismatch, what, want, got)
}
