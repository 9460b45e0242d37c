package sysid

import "fmt"

// Direction is the motor direction of a test.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Phase is the test state recorded alongside motor data.
type Phase int

const (
	None Phase = iota
	QuasistaticForward
	QuasistaticReverse
	DynamicForward
	DynamicReverse
)

var phaseNames = map[Phase]string{
	None:               "none",
	QuasistaticForward: "quasistatic-forward",
	QuasistaticReverse: "quasistatic-reverse",
	DynamicForward:     "dynamic-forward",
	DynamicReverse:     "dynamic-reverse",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return None, fmt.Errorf("sysid: unknown phase %q", s)
}

var (
	quasistaticPhases = map[Direction]Phase{
		Forward: QuasistaticForward,
		Reverse: QuasistaticReverse,
	}
	dynamicPhases = map[Direction]Phase{
		Forward: DynamicForward,
		Reverse: DynamicReverse,
	}
)

// QuasistaticPhase returns the phase of a quasistatic test in direction d.
// It panics on a direction other than Forward or Reverse.
func QuasistaticPhase(d Direction) Phase { return lookupPhase(quasistaticPhases, d) }

// DynamicPhase returns the phase of a dynamic test in direction d.
// It panics on a direction other than Forward or Reverse.
func DynamicPhase(d Direction) Phase { return lookupPhase(dynamicPhases, d) }

func lookupPhase(table map[Direction]Phase, d Direction) Phase {
	p, ok := table[d]
	if !ok {
		panic(fmt.Sprintf("sysid: no phase for %v", d))
	}
	return p
}

func outputSign(d Direction) float64 {
	if d == Forward {
		return 1
	}
	return -1
}
