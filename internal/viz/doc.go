// Package viz renders runs in the terminal.
//
//   - [Charts]: asciigraph line charts of each state component
//   - [Canvas]: Braille pixel canvas used for phase portraits
//   - [LiveModel]: Bubble Tea view of a run in progress, fed by [Forwarder]
//
// # Key Bindings (live view)
//
//	q, ctrl+c - cancel the run and quit
package viz
