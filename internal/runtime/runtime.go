// Package runtime applies decoded stream events to the state
// components. It is the processing core handed to the dispatcher: each
// handler decodes one event type and folds it into the session, the
// recordings manager, or the notification registry.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/parley/internal/dispatch"
	"github.com/user/parley/internal/notify"
	"github.com/user/parley/internal/recordings"
	"github.com/user/parley/internal/session"
	"github.com/user/parley/pkg/backend"
)

// Runtime binds stream events to client state.
type Runtime struct {
	session    *session.Session
	recordings *recordings.Manager
	notifier   *notify.Registry
	targets    []string
}

// New creates a Runtime. notifier and targets may be empty to disable
// outbound notifications. The analysis-complete hook is installed on
// the session's correlator here.
func New(sess *session.Session, recs *recordings.Manager, notifier *notify.Registry, targets []string) *Runtime {
	rt := &Runtime{
		session:    sess,
		recordings: recs,
		notifier:   notifier,
		targets:    targets,
	}
	sess.Correlator().OnComplete(rt.analysisComplete)
	return rt
}

// RegisterHandlers installs one handler per stream event type on the
// dispatcher.
func (rt *Runtime) RegisterHandlers(d *dispatch.Dispatcher) {
	d.Register(backend.EventTranscript, rt.handleTranscript)
	d.Register(backend.EventEnhancedTranscript, rt.handleEnhancedTranscript)
	d.Register(backend.EventIntelligenceResult, rt.handleIntelligenceResult)
	d.Register(backend.EventRecordingCreated, rt.handleRecordingUpsert)
	d.Register(backend.EventRecordingUpdated, rt.handleRecordingUpsert)
	d.Register(backend.EventRecordingSaved, rt.handleRecordingUpsert)
	d.Register(backend.EventRecordingDeleted, rt.handleRecordingDeleted)
	d.Register(backend.EventSummaryGenerated, rt.handleSummaryGenerated)
	d.Register(backend.EventSummaryFailed, rt.handleSummaryFailed)
}

func (rt *Runtime) handleTranscript(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeTranscript(ev.Payload)
	if err != nil {
		return err
	}
	rt.session.IngestTurn(*decoded.TurnOrder, decoded.Text)
	return nil
}

func (rt *Runtime) handleEnhancedTranscript(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeEnhancedTranscript(ev.Payload)
	if err != nil {
		return err
	}
	rt.session.IngestEnhanced(*decoded.BufferID, decoded.EnhancedText)
	return nil
}

func (rt *Runtime) handleIntelligenceResult(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeIntelligenceResult(ev.Payload)
	if err != nil {
		return err
	}
	rt.session.IngestAnalysis(backend.AnalysisResult{
		BufferID:  *decoded.BufferID,
		Type:      decoded.AnalysisType,
		Payload:   decoded.Result,
		Timestamp: decoded.Timestamp,
		Complete:  decoded.AllAnalysesComplete,
	})
	return nil
}

// handleRecordingUpsert settles created/updated/saved events against
// the optimistic collection. Created events confirm a matching pending
// create; the others fold the authoritative entity in directly.
func (rt *Runtime) handleRecordingUpsert(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeRecording(ev.Payload)
	if err != nil {
		return err
	}
	if matched := rt.recordings.Confirm(decoded.Recording); matched {
		slog.Debug("optimistic recording confirmed",
			"recording_id", string(decoded.Recording.ID), "event", ev.Type)
	}
	return nil
}

func (rt *Runtime) handleRecordingDeleted(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeRecording(ev.Payload)
	if err != nil {
		return err
	}
	rt.recordings.Remove(decoded.Recording.ID)
	return nil
}

func (rt *Runtime) handleSummaryGenerated(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeSummary(ev.Payload)
	if err != nil {
		return err
	}
	rec, err := rt.recordings.SetSummary(decoded.RecordingID, decoded.SummaryHTML)
	if err != nil {
		return fmt.Errorf("apply summary: %w", err)
	}
	rt.notifyAll(fmt.Sprintf("Summary ready for %q.", rec.Name))
	return nil
}

func (rt *Runtime) handleSummaryFailed(_ context.Context, ev backend.StreamEvent) error {
	decoded, err := backend.DecodeSummary(ev.Payload)
	if err != nil {
		return err
	}
	rec, err := rt.recordings.SetSummaryError(decoded.RecordingID, decoded.Error)
	if err != nil {
		return fmt.Errorf("apply summary error: %w", err)
	}
	rt.notifyAll(fmt.Sprintf("Summary failed for %q: %s", rec.Name, decoded.Error))
	return nil
}

// analysisComplete fires when a buffer's analysis run finishes. The
// message leads with the summary text when one was produced.
func (rt *Runtime) analysisComplete(ca backend.CombinedAnalysis) {
	var lines []string
	if res, ok := ca.Results[backend.AnalysisSummary]; ok {
		if payload, err := res.Summary(); err == nil && payload.Text != "" {
			lines = append(lines, payload.Text)
		}
	}
	lines = append(lines, fmt.Sprintf("Analysis complete for buffer %d (%d results).", ca.BufferID, len(ca.Results)))
	rt.notifyAll(strings.Join(lines, "\n"))
}

func (rt *Runtime) notifyAll(message string) {
	if rt.notifier == nil {
		return
	}
	for _, target := range rt.targets {
		if err := rt.notifier.Notify(target, message); err != nil {
			slog.Warn("notification failed", "target", target, "error", err)
		}
	}
}
