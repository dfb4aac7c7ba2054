package maintenance

import (
	"testing"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/recordings"
	"github.com/user/parley/internal/search"
	"github.com/user/parley/pkg/backend"
)

func testClock() *clock.FakeClock {
	return clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	clk := testClock()
	cache := search.NewCache(clk, time.Minute, 10)
	runner := New(cache, recordings.New(clk, nil), clk, "@every 1m", "@every 5m", 2*time.Minute)

	cache.Put("a", backend.SearchResults{Query: "a"})
	cache.Put("b", backend.SearchResults{Query: "b"})
	clk.Advance(2 * time.Minute)

	runner.runSweep()

	if cache.Len() != 0 {
		t.Errorf("cache has %d entries after sweep, want 0", cache.Len())
	}
}

func TestStalePendingDetection(t *testing.T) {
	clk := testClock()
	manager := recordings.New(clk, nil)
	runner := New(search.NewCache(clk, time.Minute, 10), manager, clk, "@every 1m", "@every 5m", 2*time.Minute)

	manager.Upsert(backend.Recording{ID: "rec-1", FolderID: "folder-a", Name: "standup"})
	oldToken, err := manager.ApplyRename("rec-1", "renamed")
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(3 * time.Minute)
	if _, err := manager.ApplyRename("rec-1", "renamed again"); err != nil {
		t.Fatal(err)
	}

	stale := runner.stalePending()
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale mutation, got %d", len(stale))
	}
	if stale[0].Token != oldToken {
		t.Errorf("stale token = %s, want %s", stale[0].Token, oldToken)
	}
}

func TestStalePendingEmptyWhenFresh(t *testing.T) {
	clk := testClock()
	manager := recordings.New(clk, nil)
	runner := New(search.NewCache(clk, time.Minute, 10), manager, clk, "@every 1m", "@every 5m", 2*time.Minute)

	manager.Apply(backend.Recording{FolderID: "folder-a", Name: "fresh"})

	if stale := runner.stalePending(); len(stale) != 0 {
		t.Errorf("expected no stale mutations, got %d", len(stale))
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	clk := testClock()
	runner := New(search.NewCache(clk, time.Minute, 10), recordings.New(clk, nil), clk, "not a schedule", "@every 5m", time.Minute)

	if err := runner.Start(); err == nil {
		runner.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}

func TestCronFiresSweep(t *testing.T) {
	clk := testClock()
	cache := search.NewCache(clk, time.Millisecond, 10)
	runner := New(cache, recordings.New(clk, nil), clk, "* * * * * *", "@every 1h", time.Minute)

	cache.Put("a", backend.SearchResults{Query: "a"})
	clk.Advance(time.Second)

	if err := runner.Start(); err != nil {
		t.Fatal(err)
	}
	defer runner.Stop()

	// Wait up to 2.5 seconds for the every-second job to fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("sweep did not fire within 2.5s, cache len=%d", cache.Len())
		case <-ticker.C:
			if cache.Len() == 0 {
				return
			}
		}
	}
}
