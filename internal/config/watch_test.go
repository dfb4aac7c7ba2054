package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// loadTestConfig creates the file with defaults and returns it.
func loadTestConfig(t *testing.T, path string) *Config {
	t.Helper()
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func startWatch(t *testing.T, path string) (<-chan *Config, context.CancelFunc) {
	t.Helper()
	changed := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := Watch(ctx, path, func(cfg *Config) {
			select {
			case changed <- cfg:
			default:
			}
		}); err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return changed, cancel
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := tempConfigPath(t)
	cfg := loadTestConfig(t, path)

	changed, cancel := startWatch(t, path)
	defer cancel()

	cfg.Search.CacheTTLSec = 120
	writeTestConfig(t, path, cfg)

	select {
	case reloaded := <-changed:
		if reloaded.Search.CacheTTLSec != 120 {
			t.Errorf("expected reloaded CacheTTLSec 120, got %d", reloaded.Search.CacheTTLSec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	path := tempConfigPath(t)
	loadTestConfig(t, path)

	changed, cancel := startWatch(t, path)
	defer cancel()

	other := filepath.Join(filepath.Dir(path), "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0o644); err != nil {
		t.Fatalf("failed to write unrelated file: %v", err)
	}

	select {
	case <-changed:
		t.Error("should not reload for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_SurvivesBadWrite(t *testing.T) {
	path := tempConfigPath(t)
	cfg := loadTestConfig(t, path)

	changed, cancel := startWatch(t, path)
	defer cancel()

	// A write that fails to parse is logged and skipped.
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write bad config: %v", err)
	}
	select {
	case <-changed:
		t.Error("should not reload an unparsable config")
	case <-time.After(300 * time.Millisecond):
	}

	cfg.Search.DebounceMs = 400
	writeTestConfig(t, path, cfg)

	select {
	case reloaded := <-changed:
		if reloaded.Search.DebounceMs != 400 {
			t.Errorf("expected reloaded DebounceMs 400, got %d", reloaded.Search.DebounceMs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after recovery")
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	path := tempConfigPath(t)
	loadTestConfig(t, path)

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		done <- Watch(ctx, path, func(*Config) {})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error on cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
