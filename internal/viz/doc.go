// Package viz renders characterization runs in the terminal.
//
//   - [LiveModel]: Bubble Tea view of a running experiment
//   - [Plot]: asciigraph charts of logged motor data
//
// # Key Bindings
//
//	Q / Ctrl+C - stop the run (the mechanism is driven to 0 V) and quit
package viz
