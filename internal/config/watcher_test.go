package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/audiocard/internal/logging"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher[T any](t *testing.T, w *Watcher[T]) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// fsnotify needs a moment before the first event is seen
	time.Sleep(50 * time.Millisecond)
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "name = \"initial\"\nvalue = 1\n")

	received := make(chan testConfig, 1)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(cfg testConfig) { received <- cfg })
	startWatcher(t, w)

	writeConfig(t, path, "name = \"updated\"\nvalue = 42\n")

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v, want name=updated, value=42", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_RenameOverSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "name = \"initial\"\n")

	received := make(chan testConfig, 1)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(cfg testConfig) { received <- cfg })
	startWatcher(t, w)

	tmp := filepath.Join(dir, ".config.toml.swp")
	writeConfig(t, tmp, "name = \"renamed\"\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "renamed" {
			t.Errorf("got %+v, want name=renamed", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "name = \"initial\"\n")

	var calls atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](20*time.Millisecond))
	w.OnReload(func(testConfig) { calls.Add(1) })
	startWatcher(t, w)

	writeConfig(t, filepath.Join(dir, "board.yaml"), "name: other\n")
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for an unrelated file", n)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "value = 1\n")

	var kept, dropped atomic.Int32
	done := make(chan struct{}, 1)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](20*time.Millisecond))
	unsubscribe := w.OnReload(func(testConfig) { dropped.Add(1) })
	w.OnReload(func(testConfig) {
		kept.Add(1)
		done <- struct{}{}
	})
	unsubscribe()
	unsubscribe()
	startWatcher(t, w)

	writeConfig(t, path, "value = 2\n")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	if kept.Load() != 1 || dropped.Load() != 0 {
		t.Errorf("kept=%d dropped=%d, want 1 and 0", kept.Load(), dropped.Load())
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "value = 1\n")

	errs := make(chan error, 1)
	var calls atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(),
		WithDebounce[testConfig](20*time.Millisecond),
		WithErrorHandler[testConfig](func(err error) { errs <- err }),
	)
	w.OnReload(func(testConfig) { calls.Add(1) })
	startWatcher(t, w)

	writeConfig(t, path, "value = [unterminated\n")

	select {
	case err := <-errs:
		if err == nil {
			t.Error("error handler received nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	if calls.Load() != 0 {
		t.Error("reload handler must not run when loading fails")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "value = 0\n")

	var calls atomic.Int32
	last := make(chan int, 10)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](150*time.Millisecond))
	w.OnReload(func(cfg testConfig) {
		calls.Add(1)
		last <- cfg.Value
	})
	startWatcher(t, w)

	for i := 1; i <= 5; i++ {
		writeConfig(t, path, "value = "+string(rune('0'+i))+"\n")
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case v := <-last:
		if v != 5 {
			t.Errorf("got value %d, want the final write", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced reload")
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestConfigWatcher_ContextCancelStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "value = 1\n")

	var calls atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](20*time.Millisecond))
	w.OnReload(func(testConfig) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	cancel()

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not exit on cancel")
	}

	writeConfig(t, path, "value = 2\n")
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("handler ran after cancellation")
	}
	if err := w.Stop(); err != nil && !errors.Is(err, os.ErrClosed) {
		t.Errorf("Stop after cancel: %v", err)
	}
}

func TestWatchLogging_AppliesModuleLevels(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	logger := logging.GetLogger("watchtest")
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should start disabled")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[logging]\nlevel = \"info\"\n")

	applied := make(chan struct{}, 1)
	w := WatchLogging(path, newTestLogger(), WithDebounce[logging.Config](20*time.Millisecond))
	w.OnReload(func(logging.Config) { applied <- struct{}{} })
	startWatcher(t, w)

	writeConfig(t, path, "[logging]\nlevel = \"info\"\nwatchtest = \"debug\"\n")

	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for logging reload")
	}
	// handlers run in map order; poll until the level handler has run too
	deadline := time.Now().Add(time.Second)
	for !logger.Enabled(context.Background(), slog.LevelDebug) {
		if time.Now().After(deadline) {
			t.Fatal("module level was not applied to the cached logger")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
