package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testWatcherConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestWatcherConfig(path string) (testWatcherConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testWatcherConfig{}, err
	}
	var cfg testWatcherConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeWatcherFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeWatcherFile(t, path, "name = \"initial\"\nvalue = 1\n")

	received := make(chan testWatcherConfig, 1)
	watcher := NewConfigWatcher(
		path,
		loadTestWatcherConfig,
		newTestLogger(),
		WithDebounce[testWatcherConfig](50*time.Millisecond),
	)

	watcher.OnReload(func(cfg testWatcherConfig) {
		received <- cfg
	})

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	writeWatcherFile(t, path, "name = \"updated\"\nvalue = 2\n")

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 2 {
			t.Errorf("got %+v, want updated/2", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload notification")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeWatcherFile(t, path, "name = \"initial\"\nvalue = 1\n")

	var reloads atomic.Int32
	watcher := NewConfigWatcher(
		path,
		loadTestWatcherConfig,
		newTestLogger(),
		WithDebounce[testWatcherConfig](200*time.Millisecond),
	)
	watcher.OnReload(func(testWatcherConfig) {
		reloads.Add(1)
	})

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	// Rapid writes should collapse into a single reload
	for i := 0; i < 5; i++ {
		writeWatcherFile(t, path, "name = \"burst\"\nvalue = 3\n")
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Errorf("expected 1 debounced reload, got %d", got)
	}
}

func TestConfigWatcher_LoadErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeWatcherFile(t, path, "name = \"initial\"\n")

	errs := make(chan error, 1)
	watcher := NewConfigWatcher(
		path,
		loadTestWatcherConfig,
		newTestLogger(),
		WithDebounce[testWatcherConfig](50*time.Millisecond),
		WithErrorHandler[testWatcherConfig](func(err error) {
			errs <- err
		}),
	)

	reloaded := make(chan struct{}, 1)
	watcher.OnReload(func(testWatcherConfig) {
		reloaded <- struct{}{}
	})

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	writeWatcherFile(t, path, "name = \"broken\nvalue = not-toml")

	select {
	case <-errs:
		// Expected - malformed TOML reported via error handler
	case <-reloaded:
		t.Fatal("handler should not be notified for a broken config")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeWatcherFile(t, path, "name = \"initial\"\n")

	received := make(chan testWatcherConfig, 1)
	watcher := NewConfigWatcher(
		path,
		loadTestWatcherConfig,
		newTestLogger(),
		WithDebounce[testWatcherConfig](50*time.Millisecond),
	)

	unsub := watcher.OnReload(func(cfg testWatcherConfig) {
		received <- cfg
	})
	unsub()

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	writeWatcherFile(t, path, "name = \"updated\"\n")

	select {
	case <-received:
		t.Fatal("unsubscribed handler should not be notified")
	case <-time.After(300 * time.Millisecond):
		// Expected
	}
}

func TestConfigWatcher_StartMissingFile(t *testing.T) {
	watcher := NewConfigWatcher(
		filepath.Join(t.TempDir(), "missing.toml"),
		loadTestWatcherConfig,
		newTestLogger(),
	)
	if err := watcher.Start(); err == nil {
		watcher.Stop()
		t.Fatal("expected error starting watcher on a missing file")
	}
}
