package supervisor

import (
	"time"

	"github.com/skobelev/warden/internal/config"
)

// Policy decides whether and when a crashed worker is restarted.
// The delay doubles with each consecutive crash up to MaxDelay; once
// the consecutive crash count reaches MaxRestarts the worker is left
// in the crashed state until a manual start. A run that survives at
// least StabilityThreshold resets the count.
type Policy struct {
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	MaxRestarts        int
	StabilityThreshold time.Duration
}

// Decision is the outcome of a single policy evaluation.
type Decision struct {
	Restart    bool
	Delay      time.Duration
	ResetCount bool
}

// PolicyFromConfig builds a Policy from the [restart] config section.
func PolicyFromConfig(cfg config.RestartConfig) Policy {
	return Policy{
		BaseDelay:          cfg.BaseDelayDuration(),
		MaxDelay:           cfg.MaxDelayDuration(),
		MaxRestarts:        cfg.MaxRestartCount(),
		StabilityThreshold: cfg.StabilityDuration(),
	}
}

// Decide evaluates the policy for a worker that just exited unexpectedly.
// restartCount is the number of consecutive unexpected exits before this
// one, exitCode is the worker's exit status, and uptime is how long the
// worker ran. The exit code is recorded by the caller but does not
// influence the decision.
func (p Policy) Decide(restartCount, exitCode int, uptime time.Duration) Decision {
	if p.StabilityThreshold > 0 && uptime >= p.StabilityThreshold {
		return Decision{Restart: true, Delay: p.BaseDelay, ResetCount: true}
	}
	if p.MaxRestarts > 0 && restartCount >= p.MaxRestarts {
		return Decision{Restart: false}
	}
	return Decision{Restart: true, Delay: p.delayFor(restartCount)}
}

// delayFor computes base * 2^count, capped at MaxDelay.
func (p Policy) delayFor(count int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < count; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
