// Package tui holds the interactive terminal views: a progress view for long
// collection, calibration and batch jobs, and a player for recorded
// trajectories.
//
// # Player key bindings
//
//	Space - Pause/Resume
//	←/→   - Step one frame
//	R     - Restart
//	+/-   - Playback speed
//	Q     - Quit
package tui
