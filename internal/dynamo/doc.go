// Package dynamo provides the core primitives shared by every integrator.
//
// The package defines the data model for numerical integration of ordinary
// differential equations dy/dt = f(t, y, p):
//
//   - [State]: vector representing the system at one instant
//   - [Params]: constants passed unmodified to every model evaluation
//   - [Model]: the right-hand side f
//   - [Options]: tolerances, step bounds and iteration caps for adaptive runs
//   - [Result]: the trajectory plus statistics and warnings of one run
//
// # Example
//
//	res, err := integrators.RunImplicitRK(models.LotkaVolterra, y0, pars, 10, dynamo.DefaultOptions(), integrators.Kvaerno5())
//	if errors.Is(err, dynamo.ErrStepBudgetExhausted) {
//		// res is valid but stops short of t_end
//	}
//
// # Thread Safety
//
// A model and its parameters are treated as immutable and may be shared by
// concurrent runs. Every buffer of a run, including the returned [Result], is
// owned by that run. Use [Ensemble] to execute independent runs in parallel.
package dynamo
