package integrators

import (
	"fmt"

	"github.com/san-kum/sysid/internal/dynamo"
)

// Advance takes one step of integ and projects the result back inside the
// limits of a [dynamo.Bounded] system. It returns [dynamo.ErrInvalidState]
// when the step produced NaN or Inf.
func Advance(integ dynamo.Integrator, sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, error) {
	next := integ.Step(sys, x, u, t, dt)
	if b, ok := sys.(dynamo.Bounded); ok {
		next = b.Clamp(next)
	}
	if !next.IsValid() {
		return nil, fmt.Errorf("t=%.4f: %w", t, dynamo.ErrInvalidState)
	}
	return next, nil
}
