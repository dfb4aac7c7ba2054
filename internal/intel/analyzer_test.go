package intel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/user/parley/pkg/backend"
)

type stubAnalysisService struct {
	lastBufferID int64
	lastText     string
	lastTypes    []backend.AnalysisType
	result       *backend.CombinedAnalysis
	err          error
}

func (s *stubAnalysisService) Analyze(ctx context.Context, bufferID int64, text string, types []backend.AnalysisType) (*backend.CombinedAnalysis, error) {
	s.lastBufferID = bufferID
	s.lastText = text
	s.lastTypes = types
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestAnalyzeTextMergesIntoStore(t *testing.T) {
	correlator := NewCorrelator(testClock())
	svc := &stubAnalysisService{
		result: &backend.CombinedAnalysis{
			BufferID:  42,
			Timestamp: "2026-03-01T12:00:00Z",
			Results: map[backend.AnalysisType]backend.AnalysisResult{
				backend.AnalysisSummary: {
					BufferID: 42,
					Type:     backend.AnalysisSummary,
					Payload:  json.RawMessage(`{"text":"recap"}`),
				},
			},
			Complete: true,
		},
	}
	a := NewAnalyzer(svc, correlator, nil)

	got, err := a.AnalyzeText(context.Background(), 42, "meeting text", []backend.AnalysisType{backend.AnalysisSummary})
	if err != nil {
		t.Fatalf("AnalyzeText failed: %v", err)
	}
	if got.BufferID != 42 {
		t.Errorf("BufferID = %d, want 42", got.BufferID)
	}
	if svc.lastText != "meeting text" {
		t.Errorf("service got text %q", svc.lastText)
	}

	stored, ok := correlator.Combined(42)
	if !ok {
		t.Fatal("manual analysis not merged into correlator")
	}
	if _, ok := stored.Results[backend.AnalysisSummary]; !ok {
		t.Error("summary result missing from merged record")
	}
}

func TestAnalyzeTextDefaultsToAllTypes(t *testing.T) {
	correlator := NewCorrelator(testClock())
	svc := &stubAnalysisService{result: &backend.CombinedAnalysis{BufferID: 1, Complete: true}}
	a := NewAnalyzer(svc, correlator, nil)

	if _, err := a.AnalyzeText(context.Background(), 1, "text", nil); err != nil {
		t.Fatalf("AnalyzeText failed: %v", err)
	}
	if len(svc.lastTypes) != len(backend.AllAnalysisTypes()) {
		t.Errorf("requested %d types, want all %d", len(svc.lastTypes), len(backend.AllAnalysisTypes()))
	}
}

func TestAnalyzeTextRejectsUnknownType(t *testing.T) {
	correlator := NewCorrelator(testClock())
	svc := &stubAnalysisService{}
	a := NewAnalyzer(svc, correlator, nil)

	_, err := a.AnalyzeText(context.Background(), 1, "text", []backend.AnalysisType{"bogus"})
	if err == nil {
		t.Fatal("expected error for unknown analysis type")
	}
	if svc.lastText != "" {
		t.Error("backend called despite invalid type")
	}
}

func TestAnalyzeTextPropagatesBackendError(t *testing.T) {
	correlator := NewCorrelator(testClock())
	svc := &stubAnalysisService{err: errors.New("backend down")}
	a := NewAnalyzer(svc, correlator, nil)

	_, err := a.AnalyzeText(context.Background(), 1, "text", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := correlator.Combined(1); ok {
		t.Error("failed analysis left a combined record")
	}
}
