package backend

import "context"

// AnalysisService invokes AI analysis on a block of text. Implementations
// handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type AnalysisService interface {
	// Analyze runs the requested analysis types over text and returns the
	// combined result. A nil or empty types slice means all types.
	Analyze(ctx context.Context, bufferID int64, text string, types []AnalysisType) (*CombinedAnalysis, error)
}

// SearchService executes semantic search queries against the backend's
// vector index.
type SearchService interface {
	Search(ctx context.Context, query string, filters SearchFilters, mode SearchMode) (*SearchResults, error)
}

// RecordingService issues mutation commands against the authoritative
// recording store. Each call returns either the authoritative entity or
// an error; confirmation also arrives asynchronously on the event stream.
type RecordingService interface {
	Create(ctx context.Context, rec Recording) (*Recording, error)
	Rename(ctx context.Context, id RecordingID, name string) (*Recording, error)
	Delete(ctx context.Context, id RecordingID) error
}

// Config holds common configuration for backend clients.
type Config struct {
	BaseURL string
	APIKey  string
}
