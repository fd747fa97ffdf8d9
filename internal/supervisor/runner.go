package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/skobelev/warden/internal/config"
	"github.com/skobelev/warden/internal/events"
)

// Runner supervises a single worker process. All public methods are safe
// for concurrent use; lifecycle mutations are serialized on an internal
// mutex so overlapping Start/Stop calls never race.
type Runner struct {
	logger       *slog.Logger
	workerLogger *slog.Logger
	bus          *events.Bus
	policy       Policy

	mu           sync.Mutex
	cfg          config.WorkerConfig
	readyRe      *regexp.Regexp
	state        State
	cmd          *exec.Cmd
	pid          int
	startedAt    time.Time
	restartCount int
	lastExitCode int
	lastErr      error
	stopping     bool
	generation   uint64
	restartTimer *time.Timer
	restartAt    time.Time
	exited       chan struct{}
}

// NewRunner creates a runner for the given worker definition.
// workerLogger receives the worker's stdout/stderr lines; bus receives
// state change and crash events and may be nil in tests.
func NewRunner(cfg config.WorkerConfig, policy Policy, logger, workerLogger *slog.Logger, bus *events.Bus) (*Runner, error) {
	r := &Runner{
		logger:       logger,
		workerLogger: workerLogger,
		bus:          bus,
		policy:       policy,
		state:        StateStopped,
	}
	if err := r.applyConfig(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) applyConfig(cfg config.WorkerConfig) error {
	var re *regexp.Regexp
	if cfg.ReadyPattern != "" {
		var err error
		re, err = regexp.Compile(cfg.ReadyPattern)
		if err != nil {
			return fmt.Errorf("invalid ready_pattern: %w", err)
		}
	}
	r.mu.Lock()
	r.cfg = cfg
	r.readyRe = re
	r.mu.Unlock()
	return nil
}

// UpdateConfig replaces the worker definition. A running worker keeps the
// definition it was launched with; the new one takes effect on the next
// start.
func (r *Runner) UpdateConfig(cfg config.WorkerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := r.applyConfig(cfg); err != nil {
		return err
	}
	r.logger.Info("Worker configuration updated", "command", cfg.Command)
	return nil
}

// Start launches the worker. It returns ErrAlreadyRunning when a worker
// process already exists, and cancels any pending automatic restart.
// A manual start resets the consecutive crash count.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Alive() {
		return ErrAlreadyRunning
	}
	r.cancelRestartLocked()
	r.stopping = false
	r.restartCount = 0
	return r.spawnLocked()
}

// Stop terminates the worker gracefully: SIGTERM to the process group,
// then SIGKILL after the stop timeout. Stopping an already stopped worker
// is a no-op; stopping a crashed worker cancels any pending restart.
// A completed stop resets the consecutive crash count.
func (r *Runner) Stop() error {
	return r.StopWithTimeout(0)
}

// StopWithTimeout is Stop with an explicit graceful timeout. A timeout of
// zero or less uses the configured stop timeout.
func (r *Runner) StopWithTimeout(timeout time.Duration) error {
	r.mu.Lock()
	switch r.state {
	case StateStopped:
		r.mu.Unlock()
		return nil
	case StateCrashed:
		r.cancelRestartLocked()
		r.restartCount = 0
		r.transitionLocked(StateStopped, nil)
		r.mu.Unlock()
		return nil
	}

	alreadyStopping := r.state == StateStopping
	r.stopping = true
	if !alreadyStopping {
		r.transitionLocked(StateStopping, nil)
	}
	pid := r.pid
	exited := r.exited
	stopTimeout := timeout
	if stopTimeout <= 0 {
		stopTimeout = r.cfg.StopDuration()
	}
	killTimeout := r.cfg.KillDuration()
	r.mu.Unlock()

	if !alreadyStopping {
		r.logger.Info("Sending SIGTERM to worker", "pid", pid)
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
			r.logger.Warn("Failed to signal worker group", "pid", pid, "error", err)
		}
	}

	select {
	case <-exited:
		return nil
	case <-time.After(stopTimeout):
	}

	r.logger.Warn("Graceful stop timed out, sending SIGKILL", "pid", pid, "timeout", stopTimeout)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.logger.Error("Failed to kill worker group", "pid", pid, "error", err)
	}

	select {
	case <-exited:
		return nil
	case <-time.After(killTimeout):
		r.logger.Error("Worker did not exit after SIGKILL", "pid", pid)
		return ErrStopTimeout
	}
}

// Report returns a consistent snapshot of the worker's state.
func (r *Runner) Report() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:        r.state,
		Command:      r.cfg.Command,
		PID:          r.pid,
		StartedAt:    r.startedAt,
		RestartCount: r.restartCount,
		LastExitCode: r.lastExitCode,
	}
	if r.state.Alive() {
		st.Uptime = time.Since(r.startedAt)
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	if r.restartTimer != nil {
		st.NextRestart = r.restartAt
	}
	return st
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// spawnLocked launches the worker process. Callers hold r.mu.
func (r *Runner) spawnLocked() error {
	args, err := parseCommand(r.cfg.Command)
	if err != nil {
		r.lastErr = err
		r.transitionLocked(StateCrashed, err)
		return &SpawnError{Command: r.cfg.Command, Err: err}
	}
	if len(args) == 0 {
		err := fmt.Errorf("empty command")
		r.lastErr = err
		r.transitionLocked(StateCrashed, err)
		return &SpawnError{Command: r.cfg.Command, Err: err}
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = r.cfg.Dir
	cmd.Env = buildEnv(r.cfg.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.lastErr = err
		r.transitionLocked(StateCrashed, err)
		return &SpawnError{Command: r.cfg.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.lastErr = err
		r.transitionLocked(StateCrashed, err)
		return &SpawnError{Command: r.cfg.Command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		r.lastErr = err
		r.transitionLocked(StateCrashed, err)
		return &SpawnError{Command: r.cfg.Command, Err: err}
	}

	r.generation++
	gen := r.generation
	r.cmd = cmd
	r.pid = cmd.Process.Pid
	r.startedAt = time.Now()
	r.lastErr = nil
	r.exited = make(chan struct{})
	exited := r.exited

	r.logger.Info("Worker started", "pid", r.pid, "command", r.cfg.Command)
	r.transitionLocked(StateStarting, nil)

	go r.streamOutput(stdout, "stdout", gen)
	go r.streamOutput(stderr, "stderr", gen)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	go r.watch(gen, done, exited)

	if r.readyRe == nil {
		grace := r.cfg.GraceDuration()
		time.AfterFunc(grace, func() { r.markReady(gen) })
	}
	return nil
}

// markReady promotes starting to running for the given process generation.
func (r *Runner) markReady(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen || r.state != StateStarting {
		return
	}
	r.transitionLocked(StateRunning, nil)
}

// watch waits for the worker process to exit and drives the crash and
// stop transitions. exited closes after the state is updated.
func (r *Runner) watch(gen uint64, done <-chan error, exited chan struct{}) {
	err := <-done
	code := exitCodeFromError(err)

	defer close(exited)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != gen {
		return
	}

	uptime := time.Since(r.startedAt)
	r.lastExitCode = code
	r.cmd = nil
	r.pid = 0

	if r.stopping {
		r.stopping = false
		r.restartCount = 0
		r.logger.Info("Worker stopped", "exit_code", code, "uptime", uptime.Round(time.Millisecond))
		r.transitionLocked(StateStopped, nil)
		return
	}

	crashErr := fmt.Errorf("worker exited unexpectedly with code %d", code)
	r.lastErr = crashErr
	decision := r.policy.Decide(r.restartCount, code, uptime)
	if decision.ResetCount {
		r.restartCount = 0
	}

	if !decision.Restart {
		r.logger.Error("Worker crash loop, giving up",
			"exit_code", code,
			"restart_count", r.restartCount,
			"uptime", uptime.Round(time.Millisecond))
		r.transitionLocked(StateCrashed, crashErr)
		r.publish(events.WorkerCrashedEvent{
			ExitCode:     code,
			RestartCount: r.restartCount,
			WillRestart:  false,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	r.restartCount++
	r.logger.Warn("Worker crashed, restart scheduled",
		"exit_code", code,
		"restart_count", r.restartCount,
		"delay", decision.Delay,
		"uptime", uptime.Round(time.Millisecond))
	r.transitionLocked(StateCrashed, crashErr)
	r.publish(events.WorkerCrashedEvent{
		ExitCode:     code,
		RestartCount: r.restartCount,
		WillRestart:  true,
		Delay:        decision.Delay.String(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})

	r.restartAt = time.Now().Add(decision.Delay)
	r.restartTimer = time.AfterFunc(decision.Delay, func() { r.autoRestart(gen) })
}

// autoRestart fires from the backoff timer.
func (r *Runner) autoRestart(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen || r.state != StateCrashed || r.stopping {
		return
	}
	r.restartTimer = nil
	r.logger.Info("Restarting worker after crash", "restart_count", r.restartCount)
	if err := r.spawnLocked(); err != nil {
		r.logger.Error("Automatic restart failed", "error", err)
	}
}

// cancelRestartLocked stops a pending backoff timer. Callers hold r.mu.
func (r *Runner) cancelRestartLocked() {
	if r.restartTimer != nil {
		r.restartTimer.Stop()
		r.restartTimer = nil
	}
}

// transitionLocked updates the state and publishes the change.
// Callers hold r.mu.
func (r *Runner) transitionLocked(next State, cause error) {
	if r.state == next {
		return
	}
	old := r.state
	r.state = next
	r.logger.Debug("Worker state changed", "from", old, "to", next)

	ev := events.WorkerStateChangedEvent{
		OldState:  string(old),
		NewState:  string(next),
		PID:       r.pid,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	r.publish(ev)
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

// streamOutput forwards worker output lines to the worker logger and
// watches for the readiness pattern while the worker is starting.
func (r *Runner) streamOutput(reader io.Reader, source string, gen uint64) {
	scanner := bufio.NewScanner(reader)
	logger := r.workerLogger
	if logger == nil {
		logger = r.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if source == "stderr" {
			logger.Warn(line)
		} else {
			logger.Info(line)
		}

		r.mu.Lock()
		re := r.readyRe
		matches := re != nil && r.generation == gen && r.state == StateStarting && re.MatchString(line)
		r.mu.Unlock()
		if matches {
			r.markReady(gen)
		}
	}

	if err := scanner.Err(); err != nil {
		r.logger.Warn("Error reading worker output", "source", source, "error", err)
	}
}

// buildEnv merges the worker env table onto the supervisor's environment.
// Values are passed through verbatim.
func buildEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// exitCodeFromError extracts the exit code from cmd.Wait's error.
// Returns 0 for nil, 128+signal for a signaled process, the exit code
// for a normal non-zero exit, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

// parseCommand splits a command string into arguments, handling quoted
// strings and backslash escapes.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
