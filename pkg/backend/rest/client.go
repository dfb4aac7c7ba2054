package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/parley/pkg/backend"
)

// Client talks to the meeting-intelligence backend's REST API. It
// implements backend.AnalysisService, backend.SearchService, and
// backend.RecordingService.
type Client struct {
	config     *backend.Config
	httpClient *http.Client
}

// New creates a REST client with the given configuration.
func New(config *backend.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// analyzeRequest is the request body for POST /v1/analyze.
type analyzeRequest struct {
	BufferID int64                  `json:"buffer_id"`
	Text     string                 `json:"text"`
	Types    []backend.AnalysisType `json:"types,omitempty"`
}

// Analyze runs the requested analysis types over text and returns the
// combined result.
func (c *Client) Analyze(ctx context.Context, bufferID int64, text string, types []backend.AnalysisType) (*backend.CombinedAnalysis, error) {
	body := analyzeRequest{BufferID: bufferID, Text: text, Types: types}

	var combined backend.CombinedAnalysis
	if err := c.do(ctx, http.MethodPost, "/v1/analyze", body, &combined); err != nil {
		return nil, err
	}
	if combined.Results == nil {
		combined.Results = make(map[backend.AnalysisType]backend.AnalysisResult)
	}
	return &combined, nil
}

// searchRequest is the request body for POST /v1/search.
type searchRequest struct {
	Query   string                `json:"query"`
	Filters backend.SearchFilters `json:"filters"`
	Mode    backend.SearchMode    `json:"mode"`
}

// Search executes a semantic search query.
func (c *Client) Search(ctx context.Context, query string, filters backend.SearchFilters, mode backend.SearchMode) (*backend.SearchResults, error) {
	body := searchRequest{Query: query, Filters: filters, Mode: mode}

	var results backend.SearchResults
	if err := c.do(ctx, http.MethodPost, "/v1/search", body, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// createRequest is the request body for POST /v1/recordings.
type createRequest struct {
	FolderID backend.FolderID `json:"folder_id"`
	Name     string           `json:"name"`
}

// Create creates a recording in the authoritative store.
func (c *Client) Create(ctx context.Context, rec backend.Recording) (*backend.Recording, error) {
	body := createRequest{FolderID: rec.FolderID, Name: rec.Name}

	var created backend.Recording
	if err := c.do(ctx, http.MethodPost, "/v1/recordings", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// renameRequest is the request body for PATCH /v1/recordings/{id}.
type renameRequest struct {
	Name string `json:"name"`
}

// Rename changes a recording's name in the authoritative store.
func (c *Client) Rename(ctx context.Context, id backend.RecordingID, name string) (*backend.Recording, error) {
	var updated backend.Recording
	if err := c.do(ctx, http.MethodPatch, "/v1/recordings/"+string(id), renameRequest{Name: name}, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a recording from the authoritative store.
func (c *Client) Delete(ctx context.Context, id backend.RecordingID) error {
	return c.do(ctx, http.MethodDelete, "/v1/recordings/"+string(id), nil, nil)
}

// do sends one JSON request and decodes the response into out. A nil
// body sends no payload; a nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &backend.APIError{Status: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
