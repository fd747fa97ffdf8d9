package deploy

import (
	"context"
	"time"
)

// Phase tracks where an in-flight deployment currently is.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStopping  Phase = "stopping"
	PhaseUpdating  Phase = "updating"
	PhaseStarting  Phase = "starting"
	PhaseVerifying Phase = "verifying"
)

// Deployment outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeRolledBack = "rolled_back"
)

// Record is one audit log entry, appended exactly once per deployment
// attempt regardless of outcome.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Outcome     string    `json:"outcome"`
	PreviousRef string    `json:"previous_ref,omitempty"`
	NewRef      string    `json:"new_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	Duration    string    `json:"duration"`
}

// Updater fetches and applies worker updates. Implementations must be
// safe to call with the worker stopped.
type Updater interface {
	// CurrentRef identifies the currently deployed artifact
	// (commit hash, release version).
	CurrentRef(ctx context.Context) (string, error)
	// Apply fetches and installs the latest artifact, returning its ref.
	Apply(ctx context.Context) (string, error)
	// Rollback restores the previously deployed artifact.
	Rollback(ctx context.Context, ref string) error
}
