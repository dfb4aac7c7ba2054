package backend

import (
	"fmt"
	"testing"
)

func TestNewTempRecordingID(t *testing.T) {
	id := NewTempRecordingID()
	if !id.IsTemp() {
		t.Errorf("expected temp id, got %s", id)
	}
	if id == NewTempRecordingID() {
		t.Error("temp ids must be unique")
	}
	if RecordingID("rec-42").IsTemp() {
		t.Error("backend id misclassified as temp")
	}
}

func TestAnalysisTypeValid(t *testing.T) {
	for _, at := range AllAnalysisTypes() {
		if !at.Valid() {
			t.Errorf("known type %s reported invalid", at)
		}
	}
	if AnalysisType("astrology").Valid() {
		t.Error("unknown type reported valid")
	}
}

func TestSentimentPayloadAccessor(t *testing.T) {
	res := AnalysisResult{
		Type:    AnalysisSentiment,
		Payload: []byte(`{"overall":"positive","score":0.8}`),
	}
	p, err := res.Sentiment()
	if err != nil {
		t.Fatal(err)
	}
	if p.Overall != "positive" || p.Score != 0.8 {
		t.Errorf("unexpected payload: %+v", p)
	}

	if _, err := res.Summary(); err == nil {
		t.Error("expected error decoding sentiment result as summary")
	}
}

func TestCombinedAnalysisClone(t *testing.T) {
	orig := &CombinedAnalysis{
		BufferID: 3,
		Results: map[AnalysisType]AnalysisResult{
			AnalysisSummary: {Type: AnalysisSummary, Payload: []byte(`{"text":"a"}`)},
		},
		Complete: true,
	}
	clone := orig.Clone()
	clone.Results[AnalysisRisk] = AnalysisResult{Type: AnalysisRisk}
	clone.Results[AnalysisSummary].Payload[2] = 'X'

	if _, ok := orig.Results[AnalysisRisk]; ok {
		t.Error("clone map shares storage with original")
	}
	if string(orig.Results[AnalysisSummary].Payload) != `{"text":"a"}` {
		t.Error("clone payload shares storage with original")
	}

	var nilCombined *CombinedAnalysis
	if nilCombined.Clone() != nil {
		t.Error("nil Clone should stay nil")
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 404, Message: "not found"}
	if err.Error() != "API error (status 404): not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := fmt.Errorf("search failed: %w", err)
	if !IsStatus(wrapped, 404) {
		t.Error("IsStatus should match through wrapping")
	}
	if IsStatus(wrapped, 500) {
		t.Error("IsStatus matched the wrong status")
	}
}
