package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/lingoxa/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
providers:
  llm:
    name: openai
scenarios:
  - id: cafe
    title: Cafe
    difficulty: easy
    category: daily
    setting: A busy cafe.
    user_role: Customer
    ai_role: Barista
    initial_message: What can I get you?
    key_phrases: [{phrase: "I'd like ..."}]
`

const watcherUpdatedYAML = `
server:
  log_level: debug
providers:
  llm:
    name: openai
scenarios:
  - id: cafe
    title: Cafe
    difficulty: easy
    category: daily
    setting: A quiet cafe.
    user_role: Customer
    ai_role: Barista
    initial_message: What can I get you?
    key_phrases: [{phrase: "I'd like ..."}]
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

// writeFile writes content and pushes the mtime forward so every write is
// observed regardless of filesystem timestamp resolution.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	bumpMtime(t, path)
}

var (
	mtimeMu   sync.Mutex
	mtimeNext = time.Now().Add(time.Hour)
)

func bumpMtime(t *testing.T, path string) {
	t.Helper()
	mtimeMu.Lock()
	mtimeNext = mtimeNext.Add(time.Second)
	ts := mtimeNext
	mtimeMu.Unlock()
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

// startWatcher runs w until the test ends.
func startWatcher(t *testing.T, w *config.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewWatcher(path, nil, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	cfg := w.Current()
	if cfg == nil || cfg.Server.LogLevel != config.LogInfo || len(cfg.Scenarios) != 1 {
		t.Fatalf("Current() = %+v", cfg)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherInvalidYAML)

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected an error for an invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	type change struct{ old, new *config.Config }
	changes := make(chan change, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- change{old, new}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, path, watcherUpdatedYAML)

	var got change
	select {
	case got = <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called")
	}
	if got.old.Server.LogLevel != config.LogInfo || got.new.Server.LogLevel != config.LogDebug {
		t.Errorf("log levels old=%q new=%q", got.old.Server.LogLevel, got.new.Server.LogLevel)
	}
	d := config.Diff(got.old, got.new)
	if len(d.ScenariosChanged) != 1 || d.ScenariosChanged[0].ID != "cafe" {
		t.Errorf("diff = %+v", d)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() not updated")
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	changes := make(chan struct{}, 4)
	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		changes <- struct{}{}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, path, watcherInvalidYAML)
	time.Sleep(150 * time.Millisecond)

	select {
	case <-changes:
		t.Fatal("onChange called for an invalid config")
	default:
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log level = %q, want info", w.Current().Server.LogLevel)
	}

	// A later valid edit is still picked up.
	writeFile(t, path, watcherUpdatedYAML)
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after recovery")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	var mu sync.Mutex
	calls := 0
	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	startWatcher(t, w)

	bumpMtime(t, path)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("onChange called %d times for a touch", calls)
	}
}
