package supervisor

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Start when a worker process already exists.
var ErrAlreadyRunning = errors.New("worker is already running")

// ErrStopTimeout is returned by Stop when the worker survives both the
// graceful stop window and the subsequent kill window.
var ErrStopTimeout = errors.New("worker did not exit within the stop timeout")

// SpawnError wraps a failure to launch the worker process.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
