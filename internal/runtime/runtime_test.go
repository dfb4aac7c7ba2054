package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/notify"
	"github.com/user/parley/internal/recordings"
	"github.com/user/parley/internal/session"
	"github.com/user/parley/internal/transcript"
	"github.com/user/parley/pkg/backend"
)

type fixture struct {
	rt       *Runtime
	session  *session.Session
	manager  *recordings.Manager
	messages []string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		session: session.New(clk, nil),
		manager: recordings.New(clk, nil),
	}
	reg := notify.NewRegistry()
	reg.Register("test:", func(_, message string) error {
		f.messages = append(f.messages, message)
		return nil
	})
	f.rt = New(f.session, f.manager, reg, []string{"test:main"})
	return f
}

func event(typ, payload string) backend.StreamEvent {
	return backend.StreamEvent{Type: typ, Payload: json.RawMessage(payload)}
}

func TestTranscriptEventFeedsSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.rt.handleTranscript(ctx, event(backend.EventTranscript, `{"text":"Hello","turn_order":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := f.rt.handleTranscript(ctx, event(backend.EventTranscript, `{"text":" world.","turn_order":1}`)); err != nil {
		t.Fatal(err)
	}

	if got := f.session.Transcript(transcript.ViewRaw); got != "Hello world." {
		t.Errorf("raw transcript = %q", got)
	}
}

func TestTranscriptEventMissingTurnOrderRejected(t *testing.T) {
	f := setup(t)

	err := f.rt.handleTranscript(context.Background(), event(backend.EventTranscript, `{"text":"orphan"}`))
	if err == nil {
		t.Fatal("expected error for missing turn_order")
	}
	if f.session.Transcript(transcript.ViewRaw) != "" {
		t.Error("malformed event mutated the transcript")
	}
}

func TestEnhancedTranscriptEventFeedsMerger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.rt.handleTranscript(ctx, event(backend.EventTranscript, `{"text":"raw text","turn_order":4}`)); err != nil {
		t.Fatal(err)
	}
	if err := f.rt.handleEnhancedTranscript(ctx, event(backend.EventEnhancedTranscript, `{"buffer_id":1,"enhanced_text":"Cleaned text."}`)); err != nil {
		t.Fatal(err)
	}

	if got := f.session.Transcript(transcript.ViewEnhanced); got != "Cleaned text." {
		t.Errorf("enhanced transcript = %q", got)
	}
	if got := f.session.Transcript(transcript.ViewHybrid); got != "Cleaned text." {
		t.Errorf("hybrid transcript = %q, want enhanced text covering the raw turn", got)
	}
}

func TestIntelligenceResultCompletesAnalysis(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	partial := `{"buffer_id":2,"analysis_type":"sentiment","result":{"overall":"positive"},"timestamp":"2026-03-01T09:01:00Z","all_analyses_complete":false}`
	if err := f.rt.handleIntelligenceResult(ctx, event(backend.EventIntelligenceResult, partial)); err != nil {
		t.Fatal(err)
	}
	if len(f.session.Analyses()) != 0 {
		t.Fatal("partial result produced a combined analysis")
	}

	completing := `{"buffer_id":2,"analysis_type":"summary","result":{"text":"Ship on friday."},"timestamp":"2026-03-01T09:02:00Z","all_analyses_complete":true}`
	if err := f.rt.handleIntelligenceResult(ctx, event(backend.EventIntelligenceResult, completing)); err != nil {
		t.Fatal(err)
	}

	analyses := f.session.Analyses()
	if len(analyses) != 1 {
		t.Fatalf("expected 1 combined analysis, got %d", len(analyses))
	}
	if len(analyses[0].Results) != 2 {
		t.Errorf("combined results = %d, want sentiment and summary", len(analyses[0].Results))
	}

	if len(f.messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.messages))
	}
	if !strings.Contains(f.messages[0], "Ship on friday.") {
		t.Errorf("notification missing summary text: %q", f.messages[0])
	}
	if !strings.Contains(f.messages[0], "buffer 2") {
		t.Errorf("notification missing buffer id: %q", f.messages[0])
	}
}

func TestRecordingCreatedConfirmsOptimistic(t *testing.T) {
	f := setup(t)

	tempID := f.manager.Apply(backend.Recording{FolderID: "folder-a", Name: "standup"})
	payload := fmt.Sprintf(`{"recording":{"id":"rec-9","folder_id":"folder-a","name":"standup","created_at":%q,"updated_at":%q}}`,
		"2026-03-01T09:00:05Z", "2026-03-01T09:00:05Z")
	if err := f.rt.handleRecordingUpsert(context.Background(), event(backend.EventRecordingCreated, payload)); err != nil {
		t.Fatal(err)
	}

	if _, ok := f.manager.Get(tempID); ok {
		t.Error("temp recording survived confirmation")
	}
	rec, ok := f.manager.Get("rec-9")
	if !ok || rec.Name != "standup" {
		t.Errorf("authoritative recording = %+v, ok=%v", rec, ok)
	}
	visible := f.manager.Visible()
	if len(visible) != 1 {
		t.Errorf("visible = %d recordings, want 1", len(visible))
	}
}

func TestRecordingDeletedRemoves(t *testing.T) {
	f := setup(t)
	f.manager.Upsert(backend.Recording{ID: "rec-1", FolderID: "folder-a", Name: "standup"})

	if err := f.rt.handleRecordingDeleted(context.Background(), event(backend.EventRecordingDeleted, `{"recording":{"id":"rec-1"}}`)); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.manager.Get("rec-1"); ok {
		t.Error("deleted recording still present")
	}
}

func TestSummaryGeneratedConvertsAndNotifies(t *testing.T) {
	f := setup(t)
	f.manager.Upsert(backend.Recording{ID: "rec-1", FolderID: "folder-a", Name: "standup"})

	payload := `{"recording_id":"rec-1","summary_html":"<h1>Standup</h1><p>All on track.</p>"}`
	if err := f.rt.handleSummaryGenerated(context.Background(), event(backend.EventSummaryGenerated, payload)); err != nil {
		t.Fatal(err)
	}

	rec, _ := f.manager.Get("rec-1")
	if !strings.Contains(rec.SummaryMarkdown, "Standup") {
		t.Errorf("summary markdown = %q", rec.SummaryMarkdown)
	}
	if strings.Contains(rec.SummaryMarkdown, "<h1>") {
		t.Errorf("summary markdown still contains HTML: %q", rec.SummaryMarkdown)
	}
	if len(f.messages) != 1 || !strings.Contains(f.messages[0], "standup") {
		t.Errorf("messages = %v", f.messages)
	}
}

func TestSummaryFailedRecordsErrorAndNotifies(t *testing.T) {
	f := setup(t)
	f.manager.Upsert(backend.Recording{ID: "rec-1", FolderID: "folder-a", Name: "standup"})

	payload := `{"recording_id":"rec-1","error":"model overloaded"}`
	if err := f.rt.handleSummaryFailed(context.Background(), event(backend.EventSummaryFailed, payload)); err != nil {
		t.Fatal(err)
	}

	rec, _ := f.manager.Get("rec-1")
	if rec.SummaryError != "model overloaded" {
		t.Errorf("summary error = %q", rec.SummaryError)
	}
	if len(f.messages) != 1 || !strings.Contains(f.messages[0], "model overloaded") {
		t.Errorf("messages = %v", f.messages)
	}
}

func TestSummaryForUnknownRecordingErrors(t *testing.T) {
	f := setup(t)

	payload := `{"recording_id":"ghost","summary_html":"<p>hi</p>"}`
	if err := f.rt.handleSummaryGenerated(context.Background(), event(backend.EventSummaryGenerated, payload)); err == nil {
		t.Fatal("expected error for unknown recording")
	}
	if len(f.messages) != 0 {
		t.Errorf("unexpected notifications: %v", f.messages)
	}
}
