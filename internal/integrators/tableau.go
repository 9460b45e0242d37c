// Package integrators advances simulated mechanisms through time.
//
// Euler and RK4 are both explicit Runge-Kutta schemes, defined here by their
// Butcher tableaux and run by a shared stepper that reuses its stage buffers
// between calls.
package integrators

import "github.com/san-kum/sysid/internal/dynamo"

// tableau holds the coefficients of an explicit Runge-Kutta scheme. Stage i
// is evaluated at t+c[i]*dt from x plus dt times the a[i]-weighted slopes of
// the earlier stages; the step combines all slopes with weights b.
type tableau struct {
	a [][]float64
	b []float64
	c []float64
}

var (
	eulerTableau = tableau{
		a: [][]float64{nil},
		b: []float64{1},
		c: []float64{0},
	}
	rk4Tableau = tableau{
		a: [][]float64{nil, {0.5}, {0, 0.5}, {0, 0, 1}},
		b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		c: []float64{0, 0.5, 0.5, 1},
	}
)

type explicitRK struct {
	tab   tableau
	k     []dynamo.State
	stage dynamo.State
}

func (r *explicitRK) grow(n int) {
	if r.k != nil && len(r.stage) == n {
		return
	}
	r.k = make([]dynamo.State, len(r.tab.b))
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.stage = make(dynamo.State, n)
}

// Step returns a new state; x is not modified.
func (r *explicitRK) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	r.grow(len(x))

	for i, row := range r.tab.a {
		copy(r.stage, x)
		for j, aij := range row {
			if aij != 0 {
				axpy(r.stage, dt*aij, r.k[j])
			}
		}
		copy(r.k[i], dyn.Derive(r.stage, u, t+r.tab.c[i]*dt))
	}

	next := x.Clone()
	for i, bi := range r.tab.b {
		axpy(next, dt*bi, r.k[i])
	}
	return next
}

// axpy sets y to y + a*x.
func axpy(y dynamo.State, a float64, x dynamo.State) {
	for i := range y {
		y[i] += a * x[i]
	}
}

// Euler is the explicit first-order scheme. Cheap, but it drifts on stiff
// mechanisms unless the step is small.
type Euler struct{ explicitRK }

func NewEuler() *Euler {
	return &Euler{explicitRK{tab: eulerTableau}}
}

// RK4 is the classical fourth-order Runge-Kutta scheme.
type RK4 struct{ explicitRK }

func NewRK4() *RK4 {
	return &RK4{explicitRK{tab: rk4Tableau}}
}
