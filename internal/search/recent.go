package search

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RecentStore is a JSON-file-backed list of past search queries,
// newest first, deduplicated, and capped. It survives restarts so the
// recent list outlives any one session.
type RecentStore struct {
	path  string
	limit int
	mu    sync.Mutex
}

// NewRecentStore creates a store persisting to path, keeping at most
// limit queries.
func NewRecentStore(path string, limit int) *RecentStore {
	return &RecentStore{path: path, limit: limit}
}

func (s *RecentStore) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recent queries: %w", err)
	}

	var queries []string
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("unmarshal recent queries: %w", err)
	}
	return queries, nil
}

func (s *RecentStore) save(queries []string) error {
	data, err := json.MarshalIndent(queries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recent queries: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp recent queries: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp recent queries: %w", err)
	}
	return nil
}

// Add front-inserts query, dropping any earlier entry that normalizes
// to the same string and trimming past the cap. Blank queries are
// ignored.
func (s *RecentStore) Add(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queries, err := s.load()
	if err != nil {
		return err
	}

	norm := NormalizeQuery(query)
	out := make([]string, 0, len(queries)+1)
	out = append(out, query)
	for _, q := range queries {
		if NormalizeQuery(q) == norm {
			continue
		}
		out = append(out, q)
	}
	if s.limit > 0 && len(out) > s.limit {
		out = out[:s.limit]
	}
	return s.save(out)
}

// List returns the stored queries, newest first.
func (s *RecentStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Clear empties the stored list.
func (s *RecentStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save([]string{})
}
