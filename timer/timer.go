// Package timer is the control surface of the speedrun timer the splitting
// policy drives.
package timer

import (
	"fmt"
	"math"
	"time"
)

// State is the timer's run state.
type State int

const (
	NotRunning State = iota
	Running
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case NotRunning:
		return "not_running"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Timer is the set of commands a splitting policy may issue.
type Timer interface {
	Start()
	Split()
	Reset()
	PauseGameTime()
	ResumeGameTime()
	SetGameTime(d time.Duration)
	// SetVariable publishes a named debug value next to the timer.
	SetVariable(name, value string)
	State() State
}

// FormatSeconds renders a duration as "SS.hh", "M:SS.hh" or "H:MM:SS.hh".
// Hundredths are truncated, not rounded.
func FormatSeconds(secs float64) string {
	if secs < 0 {
		return "-" + FormatSeconds(-secs)
	}
	hours := uint64(math.Floor(secs / 3600))
	minutes := uint64(math.Floor(math.Mod(secs, 3600) / 60))
	seconds := math.Trunc(math.Mod(secs, 60)*100) / 100

	switch {
	case hours > 0:
		return fmt.Sprintf("%d:%02d:%05.2f", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%d:%05.2f", minutes, seconds)
	default:
		return fmt.Sprintf("%.2f", seconds)
	}
}
