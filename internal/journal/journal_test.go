package journal

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/session"
	"github.com/user/parley/pkg/backend"
)

func testClock() *clock.FakeClock {
	return clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestAppendAndTail(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, testClock())
	ctx := context.Background()

	sessionID := session.NewID()

	ev := backend.StreamEvent{
		Type:    backend.EventTranscript,
		Payload: json.RawMessage(`{"text":"hello","turn_order":1}`),
	}
	if err := j.Append(ctx, sessionID, ev); err != nil {
		t.Fatal(err)
	}

	entries, err := j.Tail(ctx, sessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Seq != 1 {
		t.Errorf("expected seq 1, got %d", entries[0].Seq)
	}
	if entries[0].Type != backend.EventTranscript {
		t.Errorf("expected type %s, got %s", backend.EventTranscript, entries[0].Type)
	}
	if entries[0].ReceivedAt != time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected received_at %v", entries[0].ReceivedAt)
	}

	count, err := j.Count(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestSequenceIncrements(t *testing.T) {
	j := NewJournal(t.TempDir(), testClock())
	ctx := context.Background()
	sessionID := session.NewID()

	for i := 0; i < 3; i++ {
		ev := backend.StreamEvent{Type: backend.EventTranscript, Payload: json.RawMessage(`{}`)}
		if err := j.Append(ctx, sessionID, ev); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Tail(ctx, sessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Seq != int64(i+1) {
			t.Errorf("entry %d: expected seq %d, got %d", i, i+1, entry.Seq)
		}
	}
}

func TestTailLimit(t *testing.T) {
	j := NewJournal(t.TempDir(), testClock())
	ctx := context.Background()
	sessionID := session.NewID()

	for i := 0; i < 5; i++ {
		ev := backend.StreamEvent{Type: backend.EventIntelligenceResult, Payload: json.RawMessage(`{}`)}
		if err := j.Append(ctx, sessionID, ev); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Tail(ctx, sessionID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seq != 4 || entries[1].Seq != 5 {
		t.Errorf("expected last two entries, got seqs %d and %d", entries[0].Seq, entries[1].Seq)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	j := NewJournal(t.TempDir(), testClock())
	ctx := context.Background()
	a := session.NewID()
	b := session.NewID()

	if err := j.Append(ctx, a, backend.StreamEvent{Type: backend.EventTranscript, Payload: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}

	count, err := j.Count(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected empty journal for session b, got %d", count)
	}
}

func TestTailMissingSegment(t *testing.T) {
	j := NewJournal(t.TempDir(), testClock())

	entries, err := j.Tail(context.Background(), session.NewID(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for missing segment, got %v", entries)
	}
}

func TestSegmentPathLayout(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, testClock())
	ctx := context.Background()
	sessionID := session.NewID()

	if err := j.Append(ctx, sessionID, backend.StreamEvent{Type: backend.EventTranscript, Payload: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(j.SegmentPath(sessionID)); err != nil {
		t.Fatalf("segment file missing: %v", err)
	}
}
