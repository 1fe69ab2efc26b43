// Package viz renders herding simulations in the terminal and to images.
//
// The live view is a Bubble Tea program:
//
//   - [Setup]: preset picker and gain editor that launches a live session
//   - [Live]: runs a simulation trial by trial on a braille [Canvas]
//   - [Indicator]: containment lamp, grey until the flock is contained
//   - Theme selection with 3 built-in color schemes
//
// Recorded trials can be plotted with asciigraph ([PlotTrial],
// [PlotSummaries]) or rendered to PNG with gonum/plot ([TrajectoryPlot]).
//
// # Key Bindings
//
//	Space - Begin/End trial
//	R     - Reset agents to their start positions
//	P     - Pause/Resume
//	Tab   - Cycle gains, Up/Down to tune
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
