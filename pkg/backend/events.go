package backend

import (
	"encoding/json"
	"fmt"
)

// Event types carried on the backend stream.
const (
	EventTranscript         = "transcript"
	EventEnhancedTranscript = "enhanced_transcript"
	EventIntelligenceResult = "intelligence_result"
	EventRecordingCreated   = "recording_created"
	EventRecordingUpdated   = "recording_updated"
	EventRecordingDeleted   = "recording_deleted"
	EventRecordingSaved     = "recording_saved"
	EventSummaryGenerated   = "summary_generated"
	EventSummaryFailed      = "summary_failed"
)

// StreamEvent is the envelope for every event on the backend stream, one
// JSON object per line.
type StreamEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TranscriptEvent is a streaming transcription fragment. TurnOrder is a
// pointer so a missing field is distinguishable from turn 0; events
// without a turn order are rejected at decode.
type TranscriptEvent struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	TurnOrder  *int64  `json:"turn_order"`
	EndOfTurn  bool    `json:"end_of_turn"`
	Words      []Word  `json:"words,omitempty"`
}

// EnhancedTranscriptEvent carries the final cleaned text for one buffer.
// The text replaces, never appends to, any earlier text for the same id.
type EnhancedTranscriptEvent struct {
	BufferID         *int64 `json:"buffer_id"`
	EnhancedText     string `json:"enhanced_text"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	ModelUsed        string `json:"model_used,omitempty"`
}

// IntelligenceResultEvent carries one per-type analysis result for a
// buffer. AllAnalysesComplete marks the final result of the buffer's run.
type IntelligenceResultEvent struct {
	BufferID            *int64          `json:"buffer_id"`
	AnalysisType        AnalysisType    `json:"analysis_type"`
	Result              json.RawMessage `json:"result"`
	Timestamp           string          `json:"timestamp,omitempty"`
	AllAnalysesComplete bool            `json:"all_analyses_complete"`
}

// RecordingEvent is the payload for recording lifecycle events
// (created/updated/deleted/saved).
type RecordingEvent struct {
	Recording Recording `json:"recording"`
}

// SummaryEvent is the payload for summary_generated and summary_failed.
// SummaryHTML is set on success, Error on failure.
type SummaryEvent struct {
	RecordingID RecordingID `json:"recording_id"`
	SummaryHTML string      `json:"summary_html,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// DecodeTranscript decodes a transcript payload, rejecting events with
// no turn order.
func DecodeTranscript(payload json.RawMessage) (*TranscriptEvent, error) {
	var ev TranscriptEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode transcript event: %w", err)
	}
	if ev.TurnOrder == nil {
		return nil, fmt.Errorf("transcript event missing turn_order")
	}
	return &ev, nil
}

// DecodeEnhancedTranscript decodes an enhanced_transcript payload,
// rejecting events with no buffer id.
func DecodeEnhancedTranscript(payload json.RawMessage) (*EnhancedTranscriptEvent, error) {
	var ev EnhancedTranscriptEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode enhanced_transcript event: %w", err)
	}
	if ev.BufferID == nil {
		return nil, fmt.Errorf("enhanced_transcript event missing buffer_id")
	}
	return &ev, nil
}

// DecodeIntelligenceResult decodes an intelligence_result payload,
// rejecting events with no buffer id or an unknown analysis type.
func DecodeIntelligenceResult(payload json.RawMessage) (*IntelligenceResultEvent, error) {
	var ev IntelligenceResultEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode intelligence_result event: %w", err)
	}
	if ev.BufferID == nil {
		return nil, fmt.Errorf("intelligence_result event missing buffer_id")
	}
	if !ev.AnalysisType.Valid() {
		return nil, fmt.Errorf("unknown analysis type: %q", ev.AnalysisType)
	}
	return &ev, nil
}

// DecodeRecording decodes a recording lifecycle payload.
func DecodeRecording(payload json.RawMessage) (*RecordingEvent, error) {
	var ev RecordingEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode recording event: %w", err)
	}
	if ev.Recording.ID == "" {
		return nil, fmt.Errorf("recording event missing id")
	}
	return &ev, nil
}

// DecodeSummary decodes a summary_generated or summary_failed payload.
func DecodeSummary(payload json.RawMessage) (*SummaryEvent, error) {
	var ev SummaryEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode summary event: %w", err)
	}
	if ev.RecordingID == "" {
		return nil, fmt.Errorf("summary event missing recording_id")
	}
	return &ev, nil
}
