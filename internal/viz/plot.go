package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sysid/internal/datalog"
	"github.com/san-kum/sysid/internal/sysid"
)

// Series returns the numeric values logged under key, in log order.
func Series(entries []datalog.Entry, key string) []float64 {
	var out []float64
	for _, e := range entries {
		if e.Key == key && e.Kind == datalog.KindDouble {
			out = append(out, e.Num)
		}
	}
	return out
}

// Windows returns the number of test windows per phase: a window opens at the
// first marker of a test phase and closes at the next "none".
func Windows(entries []datalog.Entry, mechanism string) map[sysid.Phase]int {
	key := sysid.StateKey(mechanism)
	out := make(map[sysid.Phase]int)
	current := sysid.None
	for _, e := range entries {
		if e.Key != key {
			continue
		}
		p, err := sysid.ParsePhase(e.Str)
		if err != nil {
			continue
		}
		if p != current && p != sysid.None {
			out[p]++
		}
		current = p
	}
	return out
}

// Plot charts voltage, position and velocity of one motor.
func Plot(entries []datalog.Entry, motor, mechanism string, width, height int) string {
	var b strings.Builder
	for _, q := range []string{"voltage", "position", "velocity"} {
		key := sysid.MotorKey(q, motor, mechanism)
		data := Series(entries, key)
		if len(data) < 2 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(key),
		)
		b.WriteString(graph)
		b.WriteString("\n\n")
	}
	if b.Len() == 0 {
		return Subtle.Render(fmt.Sprintf("no motor data for %s/%s", motor, mechanism)) + "\n"
	}
	return b.String()
}
