package integrators

import (
	"fmt"

	"github.com/san-kum/odelab/internal/dynamo"
)

// Tableau holds the Butcher coefficients of a Runge-Kutta method. A is
// lower triangular; a zero diagonal everywhere makes the method explicit.
// BHat carries the embedded weights and may be nil for fixed-step methods.
// Tableaux are shared between runs and must not be modified.
type Tableau struct {
	Name  string
	Order int
	A     [][]float64
	B     []float64
	BHat  []float64
	C     []float64
}

func (tb *Tableau) Stages() int { return len(tb.A) }

// IsExplicit reports whether every stage depends only on earlier stages.
func (tb *Tableau) IsExplicit() bool {
	for i, row := range tb.A {
		for j := i; j < len(row); j++ {
			if row[j] != 0 {
				return false
			}
		}
	}
	return true
}

// Embedded reports whether the tableau carries an error estimator.
func (tb *Tableau) Embedded() bool { return tb.BHat != nil }

func (tb *Tableau) Validate() error {
	s := len(tb.A)
	if s == 0 {
		return fmt.Errorf("%w: tableau %q has no stages", dynamo.ErrInvalidConfig, tb.Name)
	}
	for i, row := range tb.A {
		if len(row) != s {
			return fmt.Errorf("%w: tableau %q row %d has %d entries, want %d",
				dynamo.ErrInvalidConfig, tb.Name, i, len(row), s)
		}
		for j := i + 1; j < s; j++ {
			if row[j] != 0 {
				return fmt.Errorf("%w: tableau %q is not lower triangular at (%d,%d)",
					dynamo.ErrInvalidConfig, tb.Name, i, j)
			}
		}
	}
	if len(tb.B) != s || len(tb.C) != s {
		return fmt.Errorf("%w: tableau %q weights do not match %d stages", dynamo.ErrInvalidConfig, tb.Name, s)
	}
	if tb.BHat != nil && len(tb.BHat) != s {
		return fmt.Errorf("%w: tableau %q embedded weights do not match %d stages", dynamo.ErrInvalidConfig, tb.Name, s)
	}
	return nil
}

func rowSums(a [][]float64) []float64 {
	c := make([]float64, len(a))
	for i, row := range a {
		for _, v := range row {
			c[i] += v
		}
	}
	return c
}

// Kvaerno45 is the six-stage ESDIRK pair used by the reference solver. The
// primary weights are the last row of A. The coefficients are reproduced
// literally; their weights sum to 0.5, so the pair is not consistent and
// converges only by exhausting the step budget at small h. Kvaerno5 is the
// published method and the one to use for real work.
func Kvaerno45() *Tableau {
	a := [][]float64{
		{0.24169426078821, 0, 0, 0, 0, 0},
		{0.04134189679059, 0.25865810320941, 0, 0, 0, 0},
		{0.02225576477115, 0.15955645028519, 0.26818778494366, 0, 0, 0},
		{0.03637608874327, -0.027, 0.24, 0.25062391125673, 0, 0},
		{0, 0, 0, 0, 0.5, 0},
		{0.04606, -0.044, 0.122, -0.101, 0.239, 0.23794},
	}
	return &Tableau{
		Name:  "kvaerno45",
		Order: 5,
		A:     a,
		B:     append([]float64(nil), a[5]...),
		BHat:  []float64{0.04, -0.06, 0.13, -0.09, 0.31, 0.25},
		C:     rowSums(a),
	}
}

// Kvaerno5 is Kvaerno's seven-stage stiffly accurate ESDIRK 5(4) with
// diagonal γ = 0.26. The first stage is explicit.
func Kvaerno5() *Tableau {
	const g = 0.26
	a := [][]float64{
		{0, 0, 0, 0, 0, 0, 0},
		{g, g, 0, 0, 0, 0, 0},
		{0.13, 0.84033320996790809, g, 0, 0, 0, 0},
		{0.22371961478320505, 0.47675532319799699, -0.06470895363112615, g, 0, 0, 0},
		{0.16648564323248321, 0.10450018841591720, 0.03631482272098715, -0.13090704451073998, g, 0, 0},
		{0.13855640231268224, 0, -0.04245337201752043, 0.02446657898003141, 0.61943039072480676, g, 0},
		{0.13659751177640291, 0, -0.05496908796538376, -0.04118626728321046, 0.62993304899016403, 0.06962479448202728, g},
	}
	bhat := append([]float64(nil), a[5]...)
	return &Tableau{
		Name:  "kvaerno5",
		Order: 5,
		A:     a,
		B:     append([]float64(nil), a[6]...),
		BHat:  bhat,
		C:     rowSums(a),
	}
}

// BackwardEuler is the one-stage implicit method. Its embedded weights equal
// the primary ones, so the error estimate is zero and every step is
// accepted; the step size then grows until it reaches HMax.
func BackwardEuler() *Tableau {
	return &Tableau{
		Name:  "backward-euler",
		Order: 1,
		A:     [][]float64{{1}},
		B:     []float64{1},
		BHat:  []float64{1},
		C:     []float64{1},
	}
}

// DormandPrince is the explicit RK45 pair with FSAL layout. The seventh
// stage only feeds the embedded estimate.
func DormandPrince() *Tableau {
	a := [][]float64{
		{0, 0, 0, 0, 0, 0, 0},
		{1.0 / 5.0, 0, 0, 0, 0, 0, 0},
		{3.0 / 40.0, 9.0 / 40.0, 0, 0, 0, 0, 0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0, 0, 0, 0, 0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0, 0, 0, 0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0, 0, 0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0},
	}
	return &Tableau{
		Name:  "dopri5",
		Order: 5,
		A:     a,
		B:     append([]float64(nil), a[6]...),
		BHat:  []float64{5179.0 / 57600.0, 0, 7571.0 / 16695.0, 393.0 / 640.0, -92097.0 / 339200.0, 187.0 / 2100.0, 1.0 / 40.0},
		C:     []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1},
	}
}

func ExplicitEuler() *Tableau {
	return &Tableau{
		Name:  "euler",
		Order: 1,
		A:     [][]float64{{0}},
		B:     []float64{1},
		C:     []float64{0},
	}
}

// Heun is the explicit trapezoid method.
func Heun() *Tableau {
	return &Tableau{
		Name:  "heun",
		Order: 2,
		A:     [][]float64{{0, 0}, {1, 0}},
		B:     []float64{0.5, 0.5},
		C:     []float64{0, 1},
	}
}

func ClassicRK4() *Tableau {
	return &Tableau{
		Name:  "rk4",
		Order: 4,
		A: [][]float64{
			{0, 0, 0, 0},
			{0.5, 0, 0, 0},
			{0, 0.5, 0, 0},
			{0, 0, 1, 0},
		},
		B: []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
		C: []float64{0, 0.5, 0.5, 1},
	}
}

// BogackiShampine is the explicit 3(2) pair with FSAL layout.
func BogackiShampine() *Tableau {
	a := [][]float64{
		{0, 0, 0, 0},
		{1.0 / 2.0, 0, 0, 0},
		{0, 3.0 / 4.0, 0, 0},
		{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0, 0},
	}
	return &Tableau{
		Name:  "bosh3",
		Order: 3,
		A:     a,
		B:     append([]float64(nil), a[3]...),
		BHat:  []float64{7.0 / 24.0, 1.0 / 4.0, 1.0 / 3.0, 1.0 / 8.0},
		C:     []float64{0, 1.0 / 2.0, 3.0 / 4.0, 1},
	}
}
