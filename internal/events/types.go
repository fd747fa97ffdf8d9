package events

import "github.com/skobelev/warden/internal/logging"

// Event type constants for kelindar/event.
const (
	TypeWorkerStateChanged uint32 = iota + 1
	TypeWorkerCrashed
	TypeDeploymentFinished
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// WorkerStateChangedEvent is published on every worker state transition.
type WorkerStateChangedEvent struct {
	OldState  string `json:"old_state" example:"starting" doc:"Previous worker state"`
	NewState  string `json:"new_state" example:"running" doc:"New worker state"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Worker process ID, if running"`
	Error     string `json:"error,omitempty" doc:"Error associated with the transition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for WorkerStateChangedEvent.
func (e WorkerStateChangedEvent) Type() uint32 { return TypeWorkerStateChanged }

// WorkerCrashedEvent is published when the worker exits unexpectedly.
type WorkerCrashedEvent struct {
	ExitCode     int    `json:"exit_code" example:"1" doc:"Exit code of the crashed worker"`
	RestartCount int    `json:"restart_count" example:"2" doc:"Consecutive unexpected exits so far"`
	WillRestart  bool   `json:"will_restart" doc:"Whether a restart is scheduled"`
	Delay        string `json:"delay,omitempty" example:"2s" doc:"Backoff delay before the scheduled restart"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Crash timestamp"`
}

// Type returns the event type identifier for WorkerCrashedEvent.
func (e WorkerCrashedEvent) Type() uint32 { return TypeWorkerCrashed }

// DeploymentFinishedEvent is published after every deployment attempt.
type DeploymentFinishedEvent struct {
	Outcome     string `json:"outcome" example:"success" doc:"Deployment outcome: success, failed, rolled_back"`
	PreviousRef string `json:"previous_ref,omitempty" doc:"Artifact reference before the deployment"`
	NewRef      string `json:"new_ref,omitempty" doc:"Artifact reference after the deployment"`
	Error       string `json:"error,omitempty" doc:"Failure detail, if any"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Completion timestamp"`
}

// Type returns the event type identifier for DeploymentFinishedEvent.
func (e DeploymentFinishedEvent) Type() uint32 { return TypeDeploymentFinished }

// LogEntryEvent carries a structured log entry from the logging system.
type LogEntryEvent struct {
	Entry logging.LogEntry `json:"entry" doc:"Structured log entry"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
