package supervisor

import "time"

// State represents the lifecycle state of the supervised worker.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateCrashed  State = "crashed"
)

// Alive reports whether a worker process exists in this state.
func (s State) Alive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// Status is a point-in-time snapshot of the worker. All fields are read
// under the runner's lock, so a snapshot is never torn.
type Status struct {
	State        State
	Command      string
	PID          int
	StartedAt    time.Time
	Uptime       time.Duration
	RestartCount int
	LastExitCode int
	LastError    string
	NextRestart  time.Time
}
