package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RecordingID string
type FolderID string

// NewTempRecordingID returns a locally generated placeholder id for an
// optimistic recording. Temp ids never collide with backend-assigned ids,
// which carry no "tmp-" prefix.
func NewTempRecordingID() RecordingID {
	return RecordingID("tmp-" + uuid.New().String())
}

// IsTemp reports whether the id is a locally generated placeholder.
func (id RecordingID) IsTemp() bool {
	return strings.HasPrefix(string(id), "tmp-")
}

// AnalysisType identifies one category of AI analysis produced per buffer.
type AnalysisType string

const (
	AnalysisSentiment   AnalysisType = "sentiment"
	AnalysisFinancial   AnalysisType = "financial"
	AnalysisCompetitive AnalysisType = "competitive"
	AnalysisSummary     AnalysisType = "summary"
	AnalysisRisk        AnalysisType = "risk"
)

// AllAnalysisTypes returns every known analysis type in a stable order.
func AllAnalysisTypes() []AnalysisType {
	return []AnalysisType{
		AnalysisSentiment,
		AnalysisFinancial,
		AnalysisCompetitive,
		AnalysisSummary,
		AnalysisRisk,
	}
}

// Valid reports whether t is one of the known analysis types.
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisSentiment, AnalysisFinancial, AnalysisCompetitive, AnalysisSummary, AnalysisRisk:
		return true
	}
	return false
}

// AnalysisResult is one backend result for a (buffer, analysis type) pair.
// Payload is the type-specific result body; decode it with the typed
// accessors below.
type AnalysisResult struct {
	BufferID  int64           `json:"buffer_id"`
	Type      AnalysisType    `json:"analysis_type"`
	Payload   json.RawMessage `json:"result"`
	Timestamp string          `json:"timestamp"`
	Complete  bool            `json:"all_analyses_complete"`
}

// SentimentPayload is the result body for AnalysisSentiment.
type SentimentPayload struct {
	Overall   string  `json:"overall"`
	Score     float64 `json:"score"`
	Breakdown struct {
		Positive float64 `json:"positive"`
		Neutral  float64 `json:"neutral"`
		Negative float64 `json:"negative"`
	} `json:"breakdown"`
}

// FinancialPayload is the result body for AnalysisFinancial.
type FinancialPayload struct {
	Mentions []FinancialMention `json:"mentions"`
}

type FinancialMention struct {
	Text     string  `json:"text"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Context  string  `json:"context,omitempty"`
}

// CompetitivePayload is the result body for AnalysisCompetitive.
type CompetitivePayload struct {
	Competitors []CompetitorMention `json:"competitors"`
}

type CompetitorMention struct {
	Name      string `json:"name"`
	Sentiment string `json:"sentiment,omitempty"`
	Context   string `json:"context,omitempty"`
}

// SummaryPayload is the result body for AnalysisSummary.
type SummaryPayload struct {
	Text        string   `json:"text"`
	KeyPoints   []string `json:"key_points,omitempty"`
	Decisions   []string `json:"decisions,omitempty"`
	ActionItems []string `json:"action_items,omitempty"`
	ModelUsed   string   `json:"model_used,omitempty"`
}

// RiskPayload is the result body for AnalysisRisk.
type RiskPayload struct {
	Risks []RiskItem `json:"risks"`
}

type RiskItem struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Sentiment decodes the payload as a SentimentPayload. Returns an error
// if the result is not a sentiment result.
func (r AnalysisResult) Sentiment() (*SentimentPayload, error) {
	if r.Type != AnalysisSentiment {
		return nil, fmt.Errorf("result is %s, not %s", r.Type, AnalysisSentiment)
	}
	var p SentimentPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode sentiment payload: %w", err)
	}
	return &p, nil
}

// Summary decodes the payload as a SummaryPayload. Returns an error if
// the result is not a summary result.
func (r AnalysisResult) Summary() (*SummaryPayload, error) {
	if r.Type != AnalysisSummary {
		return nil, fmt.Errorf("result is %s, not %s", r.Type, AnalysisSummary)
	}
	var p SummaryPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode summary payload: %w", err)
	}
	return &p, nil
}

// CombinedAnalysis is the correlated view of every analysis result seen
// for one buffer. It is created only once the backend marks the buffer's
// analysis run complete; Timestamp comes from the completing result.
type CombinedAnalysis struct {
	BufferID  int64                           `json:"buffer_id"`
	Timestamp string                          `json:"timestamp"`
	Results   map[AnalysisType]AnalysisResult `json:"results"`
	Complete  bool                            `json:"complete"`
}

// Clone returns a deep copy safe to hand across component boundaries.
func (c *CombinedAnalysis) Clone() *CombinedAnalysis {
	if c == nil {
		return nil
	}
	out := &CombinedAnalysis{
		BufferID:  c.BufferID,
		Timestamp: c.Timestamp,
		Complete:  c.Complete,
		Results:   make(map[AnalysisType]AnalysisResult, len(c.Results)),
	}
	for k, v := range c.Results {
		if v.Payload != nil {
			payload := make(json.RawMessage, len(v.Payload))
			copy(payload, v.Payload)
			v.Payload = payload
		}
		out.Results[k] = v
	}
	return out
}

// Recording is an entry in the managed recording collection.
type Recording struct {
	ID              RecordingID `json:"id"`
	FolderID        FolderID    `json:"folder_id"`
	Name            string      `json:"name"`
	Transcript      string      `json:"transcript,omitempty"`
	SummaryHTML     string      `json:"summary_html,omitempty"`
	SummaryMarkdown string      `json:"summary_markdown,omitempty"`
	SummaryError    string      `json:"summary_error,omitempty"`
	DurationSec     float64     `json:"duration_sec,omitempty"`
	Saved           bool        `json:"saved"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Word is one word-level timing entry inside a transcript fragment.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// SearchMode selects the retrieval strategy for semantic search.
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeHybrid   SearchMode = "hybrid"
)

// DateRange bounds a search to recordings within [From, To], ISO dates.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SearchFilters narrows a search query.
type SearchFilters struct {
	ProjectID     string         `json:"project_id,omitempty"`
	AnalysisTypes []AnalysisType `json:"analysis_types,omitempty"`
	DateRange     *DateRange     `json:"date_range,omitempty"`
	TopK          int            `json:"top_k,omitempty"`
	MinSimilarity float64        `json:"min_similarity,omitempty"`
}

// SearchHit is one scored match returned by the search backend.
type SearchHit struct {
	RecordingID RecordingID `json:"recording_id"`
	BufferID    int64       `json:"buffer_id,omitempty"`
	Snippet     string      `json:"snippet"`
	Score       float64     `json:"score"`
}

// SearchResults is the full response for one search query.
type SearchResults struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
}
