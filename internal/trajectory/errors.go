package trajectory

import (
	"fmt"

	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// SyncError reports a replay that diverged from its recorded trajectory.
type SyncError struct {
	Frame    int
	WantStep int
	GotStep  int
	WantTime float64
	GotTime  float64
	Reason   string
}

func (e *SyncError) Error() string {
	switch e.Reason {
	case "physics step":
		return fmt.Sprintf("frame %d: physics step %d, recorded %d: %v", e.Frame, e.GotStep, e.WantStep, tower.ErrOutOfSync)
	case "time":
		return fmt.Sprintf("frame %d: time %v, recorded %v: %v", e.Frame, e.GotTime, e.WantTime, tower.ErrOutOfSync)
	default:
		return fmt.Sprintf("frame %d: %s: %v", e.Frame, e.Reason, tower.ErrOutOfSync)
	}
}

func (e *SyncError) Unwrap() error {
	return tower.ErrOutOfSync
}
