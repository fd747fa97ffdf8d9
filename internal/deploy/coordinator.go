package deploy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skobelev/warden/internal/events"
	"github.com/skobelev/warden/internal/supervisor"
)

// Worker is the slice of the supervisor the coordinator drives.
type Worker interface {
	Start() error
	Stop() error
	State() supervisor.State
}

// Coordinator runs deployments one at a time: stop the worker, apply
// the updater, restart, and verify the worker stays up. Any failure
// after the stop triggers a rollback to the previous ref.
type Coordinator struct {
	worker        Worker
	updater       Updater
	audit         *AuditLog
	bus           *events.Bus
	logger        *slog.Logger
	verifyTimeout time.Duration

	mu       sync.Mutex
	phase    Phase
	inFlight bool
}

// NewCoordinator wires a coordinator. bus may be nil in tests.
func NewCoordinator(worker Worker, updater Updater, audit *AuditLog, bus *events.Bus, logger *slog.Logger, verifyTimeout time.Duration) *Coordinator {
	return &Coordinator{
		worker:        worker,
		updater:       updater,
		audit:         audit,
		bus:           bus,
		logger:        logger,
		verifyTimeout: verifyTimeout,
		phase:         PhaseIdle,
	}
}

// Phase returns the current deployment phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// History returns the most recent deployment records, newest first.
func (c *Coordinator) History(limit int) ([]Record, error) {
	return c.audit.History(limit)
}

// Deploy runs one deployment attempt. A concurrent call fails fast with
// DEPLOY_IN_PROGRESS. Exactly one audit record is appended per
// invocation, whatever the outcome; the record is also returned
// alongside any error.
func (c *Coordinator) Deploy(ctx context.Context) (*Record, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, newError(ErrCodeInProgress, "a deployment is already in progress", nil)
	}
	c.inFlight = true
	c.mu.Unlock()

	started := time.Now()
	rec := &Record{Timestamp: started.UTC()}

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.phase = PhaseIdle
		c.mu.Unlock()

		rec.Duration = time.Since(started).Round(time.Millisecond).String()
		if err := c.audit.Append(*rec); err != nil {
			c.logger.Error("Failed to append audit record", "error", err)
		}
		c.publishFinished(*rec)
	}()

	prevRef, err := c.updater.CurrentRef(ctx)
	if err != nil {
		c.logger.Warn("Failed to resolve current ref", "error", err)
	}
	rec.PreviousRef = prevRef

	c.setPhase(PhaseStopping)
	if err := c.worker.Stop(); err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		return rec, newError(ErrCodeStopFailed, "failed to stop worker before update", err)
	}

	c.setPhase(PhaseUpdating)
	newRef, applyErr := c.updater.Apply(ctx)
	if applyErr != nil {
		c.logger.Error("Update failed, rolling back", "error", applyErr)
		return c.rollback(ctx, rec, prevRef,
			newError(ErrCodeUpdateFailed, "failed to apply update", applyErr))
	}
	rec.NewRef = newRef

	if err := c.startAndVerify(ctx); err != nil {
		c.logger.Error("Updated worker failed verification, rolling back",
			"ref", newRef, "error", err)
		return c.rollback(ctx, rec, prevRef, err.(*Error))
	}

	rec.Outcome = OutcomeSuccess
	c.logger.Info("Deployment succeeded",
		"previous_ref", prevRef, "new_ref", newRef)
	return rec, nil
}

// rollback restores prevRef and restarts the worker. The original
// deployment error is always returned to the caller; the record outcome
// reflects whether the rollback itself succeeded.
func (c *Coordinator) rollback(ctx context.Context, rec *Record, prevRef string, cause *Error) (*Record, error) {
	rec.Error = cause.Error()

	// The updated artifact may still be running or crashed
	if err := c.worker.Stop(); err != nil {
		c.logger.Error("Failed to stop worker before rollback", "error", err)
	}

	if err := c.updater.Rollback(ctx, prevRef); err != nil {
		c.logger.Error("Rollback failed, worker left stopped", "ref", prevRef, "error", err)
		rec.Outcome = OutcomeFailed
		return rec, newError(ErrCodeDeployFailed, "update and rollback both failed", err)
	}

	if err := c.startAndVerify(ctx); err != nil {
		c.logger.Error("Rolled-back worker failed verification", "ref", prevRef, "error", err)
		rec.Outcome = OutcomeFailed
		return rec, newError(ErrCodeDeployFailed, "worker failed to start after rollback", err)
	}

	rec.Outcome = OutcomeRolledBack
	c.logger.Warn("Deployment rolled back", "ref", prevRef)
	return rec, cause
}

// startAndVerify starts the worker and waits for it to reach running.
// A crashed worker fails verification immediately.
func (c *Coordinator) startAndVerify(ctx context.Context) error {
	c.setPhase(PhaseStarting)
	if err := c.worker.Start(); err != nil {
		return newError(ErrCodeStartFailed, "failed to start worker", err)
	}

	c.setPhase(PhaseVerifying)
	deadline := time.NewTimer(c.verifyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		switch c.worker.State() {
		case supervisor.StateRunning:
			return nil
		case supervisor.StateCrashed, supervisor.StateStopped:
			return newError(ErrCodeVerifyFailed, "worker exited during verification", nil)
		}

		select {
		case <-ctx.Done():
			return newError(ErrCodeVerifyFailed, "verification cancelled", ctx.Err())
		case <-deadline.C:
			return newError(ErrCodeVerifyFailed, "worker did not reach running state in time", nil)
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.logger.Debug("Deployment phase", "phase", p)
}

func (c *Coordinator) publishFinished(rec Record) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.DeploymentFinishedEvent{
		Outcome:     rec.Outcome,
		PreviousRef: rec.PreviousRef,
		NewRef:      rec.NewRef,
		Error:       rec.Error,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Rollback manually restores the previous artifact: the PreviousRef of
// the most recent successful deployment. Like Deploy, it stops the
// worker, applies the change, restarts, verifies, and appends one
// audit record.
func (c *Coordinator) Rollback(ctx context.Context) (*Record, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, newError(ErrCodeInProgress, "a deployment is already in progress", nil)
	}
	c.inFlight = true
	c.mu.Unlock()

	started := time.Now()
	rec := &Record{Timestamp: started.UTC()}

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.phase = PhaseIdle
		c.mu.Unlock()

		rec.Duration = time.Since(started).Round(time.Millisecond).String()
		if err := c.audit.Append(*rec); err != nil {
			c.logger.Error("Failed to append audit record", "error", err)
		}
		c.publishFinished(*rec)
	}()

	target, err := c.lastDeployedFrom()
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		return rec, err
	}
	currentRef, _ := c.updater.CurrentRef(ctx)
	rec.PreviousRef = currentRef
	rec.NewRef = target

	c.setPhase(PhaseStopping)
	if err := c.worker.Stop(); err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		return rec, newError(ErrCodeStopFailed, "failed to stop worker before rollback", err)
	}

	c.setPhase(PhaseUpdating)
	if err := c.updater.Rollback(ctx, target); err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		return rec, newError(ErrCodeRollbackFailed, "failed to restore previous artifact", err)
	}

	if err := c.startAndVerify(ctx); err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		return rec, newError(ErrCodeDeployFailed, "worker failed to start after rollback", err)
	}

	rec.Outcome = OutcomeRolledBack
	c.logger.Warn("Manual rollback completed", "ref", target)
	return rec, nil
}

// lastDeployedFrom finds the ref the worker ran before the most recent
// successful deployment.
func (c *Coordinator) lastDeployedFrom() (string, error) {
	history, err := c.audit.History(0)
	if err != nil {
		return "", newError(ErrCodeNoBackup, "failed to read deployment history", err)
	}
	for _, rec := range history {
		if rec.Outcome == OutcomeSuccess && rec.PreviousRef != "" {
			return rec.PreviousRef, nil
		}
	}
	return "", newError(ErrCodeNoBackup, "no previous deployment to roll back to", nil)
}
