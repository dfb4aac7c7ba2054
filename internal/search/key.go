// Package search fronts the backend search API with a TTL cache, a
// debounced submission path, and a persisted recent-query list. Cache
// keys are content-derived, eviction is strictly insertion-ordered,
// and a generation counter keeps late responses from clobbering newer
// state.
package search

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/user/parley/pkg/backend"
)

// NormalizeQuery lowercases the query and collapses whitespace runs to
// single spaces, so trivially different spellings share a cache key.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// canonicalRequest is the hashed representation of a search request.
// Field order is fixed and list-valued filters are sorted, so equal
// requests always serialize identically.
type canonicalRequest struct {
	Query         string                 `json:"query"`
	Mode          backend.SearchMode     `json:"mode"`
	ProjectID     string                 `json:"project_id"`
	AnalysisTypes []backend.AnalysisType `json:"analysis_types"`
	From          string                 `json:"from"`
	To            string                 `json:"to"`
	TopK          int                    `json:"top_k"`
	MinSimilarity float64                `json:"min_similarity"`
}

// Key derives the stable cache key for a search request.
func Key(query string, filters backend.SearchFilters, mode backend.SearchMode) string {
	canon := canonicalRequest{
		Query:         NormalizeQuery(query),
		Mode:          mode,
		ProjectID:     filters.ProjectID,
		TopK:          filters.TopK,
		MinSimilarity: filters.MinSimilarity,
	}
	if len(filters.AnalysisTypes) > 0 {
		canon.AnalysisTypes = append([]backend.AnalysisType(nil), filters.AnalysisTypes...)
		sort.Slice(canon.AnalysisTypes, func(i, j int) bool {
			return canon.AnalysisTypes[i] < canon.AnalysisTypes[j]
		})
	}
	if filters.DateRange != nil {
		canon.From = filters.DateRange.From
		canon.To = filters.DateRange.To
	}

	data, err := json.Marshal(canon)
	if err != nil {
		// canonicalRequest contains only marshalable fields
		panic(err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
