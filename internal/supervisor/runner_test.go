package supervisor

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skobelev/warden/internal/config"
	"github.com/skobelev/warden/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(t *testing.T, cfg config.WorkerConfig, policy Policy, bus *events.Bus) *Runner {
	t.Helper()
	if cfg.GracePeriod == "" {
		cfg.GracePeriod = "100ms"
	}
	if cfg.StopTimeout == "" {
		cfg.StopTimeout = "2s"
	}
	if cfg.KillTimeout == "" {
		cfg.KillTimeout = "2s"
	}
	if policy.BaseDelay == 0 {
		policy.BaseDelay = 50 * time.Millisecond
	}
	if policy.MaxDelay == 0 {
		policy.MaxDelay = time.Second
	}
	r, err := NewRunner(cfg, policy, testLogger(), testLogger(), bus)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func waitForState(t *testing.T, r *Runner, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("worker never reached state %q, still %q", want, r.State())
}

// longRunner is a worker that exits cleanly on TERM or INT.
const longRunner = `sh -c 'trap "exit 0" TERM INT; while :; do sleep 0.05; done'`

func TestRunnerStartStop(t *testing.T) {
	r := newTestRunner(t, config.WorkerConfig{Command: longRunner}, Policy{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, r, StateRunning, 2*time.Second)

	st := r.Report()
	if st.PID <= 0 {
		t.Errorf("running worker should report a PID, got %d", st.PID)
	}
	if st.Uptime <= 0 {
		t.Error("running worker should report a positive uptime")
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	st = r.Report()
	if st.State != StateStopped {
		t.Errorf("state after stop = %q, want stopped", st.State)
	}
	if st.PID != 0 {
		t.Errorf("stopped worker should report PID 0, got %d", st.PID)
	}
}

func TestRunnerStartWhileRunning(t *testing.T) {
	r := newTestRunner(t, config.WorkerConfig{Command: longRunner}, Policy{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunnerStopIdempotent(t *testing.T) {
	r := newTestRunner(t, config.WorkerConfig{Command: longRunner}, Policy{}, nil)

	if err := r.Stop(); err != nil {
		t.Errorf("Stop on stopped worker = %v, want nil", err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, r, StateRunning, 2*time.Second)
	if err := r.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop = %v, want nil", err)
	}
}

func TestRunnerSpawnFailure(t *testing.T) {
	r := newTestRunner(t, config.WorkerConfig{Command: "/nonexistent/worker-binary"}, Policy{}, nil)

	err := r.Start()
	if err == nil {
		t.Fatal("expected spawn error for a nonexistent binary")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Errorf("error type = %T, want *SpawnError", err)
	}
	if r.State() != StateCrashed {
		t.Errorf("state after spawn failure = %q, want crashed", r.State())
	}
}

func TestRunnerCrashLoop(t *testing.T) {
	bus := events.New()
	crashed := make(chan events.WorkerCrashedEvent, 8)
	unsub := bus.Subscribe(func(ev events.WorkerCrashedEvent) {
		crashed <- ev
	})
	defer unsub()

	policy := Policy{
		BaseDelay:          20 * time.Millisecond,
		MaxDelay:           100 * time.Millisecond,
		MaxRestarts:        2,
		StabilityThreshold: time.Hour,
	}
	r := newTestRunner(t, config.WorkerConfig{Command: `sh -c 'exit 7'`}, policy, bus)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Initial crash plus two restarts, then the policy halts
	var last events.WorkerCrashedEvent
	for i := 0; i < 3; i++ {
		select {
		case last = <-crashed:
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for crash event %d", i+1)
		}
		if last.ExitCode != 7 {
			t.Errorf("crash %d exit code = %d, want 7", i+1, last.ExitCode)
		}
	}
	if last.WillRestart {
		t.Error("final crash event should not schedule a restart")
	}
	if last.RestartCount != 2 {
		t.Errorf("final restart count = %d, want 2", last.RestartCount)
	}

	waitForState(t, r, StateCrashed, time.Second)
	time.Sleep(150 * time.Millisecond)
	if r.State() != StateCrashed {
		t.Errorf("worker restarted past the ceiling, state %q", r.State())
	}
}

func TestRunnerManualStopDoesNotRestart(t *testing.T) {
	policy := Policy{
		BaseDelay:          20 * time.Millisecond,
		MaxRestarts:        5,
		StabilityThreshold: time.Hour,
	}
	r := newTestRunner(t, config.WorkerConfig{Command: longRunner}, policy, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, r, StateRunning, 2*time.Second)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	st := r.Report()
	if st.State != StateStopped {
		t.Errorf("worker restarted after manual stop, state %q", st.State)
	}
	if st.RestartCount != 0 {
		t.Errorf("manual stop should reset restart count, got %d", st.RestartCount)
	}
}

func TestRunnerStopEscalatesToKill(t *testing.T) {
	cfg := config.WorkerConfig{
		Command:     `sh -c 'trap "" TERM; while :; do sleep 0.05; done'`,
		StopTimeout: "200ms",
		KillTimeout: "2s",
	}
	r := newTestRunner(t, cfg, Policy{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, r, StateRunning, 2*time.Second)

	start := time.Now()
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("stop returned in %v, before the graceful window elapsed", elapsed)
	}

	st := r.Report()
	if st.State != StateStopped {
		t.Errorf("state after kill = %q, want stopped", st.State)
	}
	if st.LastExitCode != 137 {
		t.Errorf("exit code after SIGKILL = %d, want 137", st.LastExitCode)
	}
}

func TestRunnerReadyPattern(t *testing.T) {
	cfg := config.WorkerConfig{
		Command:      `sh -c 'echo "worker ready"; trap "exit 0" TERM; while :; do sleep 0.05; done'`,
		ReadyPattern: "worker ready",
		GracePeriod:  "30s",
	}
	r := newTestRunner(t, cfg, Policy{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// With a 30s grace period, only the output pattern can promote
	// the worker to running this quickly
	waitForState(t, r, StateRunning, 2*time.Second)
}

func TestRunnerInvalidReadyPattern(t *testing.T) {
	cfg := config.WorkerConfig{Command: "sleep 1", ReadyPattern: "[unclosed"}
	if _, err := NewRunner(cfg, Policy{}, testLogger(), nil, nil); err == nil {
		t.Fatal("expected error for invalid ready pattern")
	}
}

func TestRunnerStateChangeEvents(t *testing.T) {
	bus := events.New()
	changes := make(chan events.WorkerStateChangedEvent, 16)
	unsub := bus.Subscribe(func(ev events.WorkerStateChangedEvent) {
		changes <- ev
	})
	defer unsub()

	cfg := config.WorkerConfig{Command: longRunner, GracePeriod: "50ms"}
	r := newTestRunner(t, cfg, Policy{}, bus)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, r, StateRunning, 2*time.Second)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"starting", "running", "stopping", "stopped"}
	for _, next := range want {
		select {
		case ev := <-changes:
			if ev.NewState != next {
				t.Errorf("transition to %q, want %q", ev.NewState, next)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for transition to %q", next)
		}
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		command string
		want    []string
		wantErr bool
	}{
		{"python3 main.py", []string{"python3", "main.py"}, false},
		{`sh -c 'echo hello world'`, []string{"sh", "-c", "echo hello world"}, false},
		{`prog "a b" c`, []string{"prog", "a b", "c"}, false},
		{`prog a\ b`, []string{"prog", "a b"}, false},
		{`prog "unclosed`, nil, true},
		{"   spaced   out   ", []string{"spaced", "out"}, false},
	}

	for _, tc := range cases {
		got, err := parseCommand(tc.command)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseCommand(%q): expected error", tc.command)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCommand(%q): %v", tc.command, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("parseCommand(%q) = %v, want %v", tc.command, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("parseCommand(%q)[%d] = %q, want %q", tc.command, i, got[i], tc.want[i])
			}
		}
	}
}
