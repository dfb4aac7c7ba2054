package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/pkg/backend"
)

// ErrNoPreviousSearch means Retry was called before any search ran.
var ErrNoPreviousSearch = errors.New("no previous search to retry")

// Searcher coordinates search execution: synchronous cache hits,
// debounced submission, generation-guarded responses, and retry of the
// last issued request. Settled results and the last error are held as
// queryable state; a failed search keeps the prior results visible.
type Searcher struct {
	svc    backend.SearchService
	cache  *Cache
	recent *RecentStore
	clk    clock.Clock

	mu         sync.Mutex
	debounce   time.Duration
	autoSearch bool
	generation uint64
	inflight   int
	timer      *clock.Timer

	pendingCtx     context.Context
	pendingQuery   string
	pendingFilters backend.SearchFilters
	pendingMode    backend.SearchMode

	lastQuery   string
	lastFilters backend.SearchFilters
	lastMode    backend.SearchMode
	hasLast     bool

	results *backend.SearchResults
	lastErr error
}

// NewSearcher creates a searcher. recent may be nil to skip recording
// queries.
func NewSearcher(svc backend.SearchService, cache *Cache, recent *RecentStore, clk clock.Clock, debounce time.Duration, autoSearch bool) *Searcher {
	return &Searcher{
		svc:        svc,
		cache:      cache,
		recent:     recent,
		clk:        clk,
		debounce:   debounce,
		autoSearch: autoSearch,
	}
}

// Submit records a query intention. A fresh cached result settles
// synchronously and is returned with ok=true; no backend call, no
// loading transition. Otherwise, with auto-search on, execution is
// debounced: only the last submission in the window runs, earlier ones
// are discarded without side effects. With auto-search off the search
// runs immediately. Every submission cancels a pending one.
func (s *Searcher) Submit(ctx context.Context, query string, filters backend.SearchFilters, mode backend.SearchMode) (*backend.SearchResults, bool) {
	s.mu.Lock()
	s.cancelTimerLocked()

	key := Key(query, filters, mode)
	if res, ok := s.cache.Get(key); ok {
		s.results = &res
		s.lastErr = nil
		s.mu.Unlock()
		out := cloneResults(res)
		return &out, true
	}

	if !s.autoSearch || s.debounce <= 0 {
		s.mu.Unlock()
		res, err := s.SearchNow(ctx, query, filters, mode)
		if err != nil {
			return nil, false
		}
		return res, true
	}

	s.pendingCtx = ctx
	s.pendingQuery = query
	s.pendingFilters = filters
	s.pendingMode = mode
	s.timer = s.clk.AfterFunc(s.debounce, s.firePending)
	s.mu.Unlock()
	return nil, false
}

func (s *Searcher) firePending() {
	s.mu.Lock()
	ctx := s.pendingCtx
	query, filters, mode := s.pendingQuery, s.pendingFilters, s.pendingMode
	s.timer = nil
	s.pendingCtx = nil
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.SearchNow(ctx, query, filters, mode); err != nil {
		slog.Debug("debounced search failed", "query", query, "error", err)
	}
}

// SearchNow executes a search immediately, bypassing the debounce
// window (and cancelling a pending one). A fresh cache entry settles
// without a backend call. The response only updates searcher state if
// no newer request was issued while it was in flight: a stale response
// is returned to its caller but never overwrites newer state.
func (s *Searcher) SearchNow(ctx context.Context, query string, filters backend.SearchFilters, mode backend.SearchMode) (*backend.SearchResults, error) {
	s.mu.Lock()
	s.cancelTimerLocked()

	s.generation++
	gen := s.generation
	s.lastQuery, s.lastFilters, s.lastMode = query, filters, mode
	s.hasLast = true

	key := Key(query, filters, mode)
	if res, ok := s.cache.Get(key); ok {
		s.results = &res
		s.lastErr = nil
		s.mu.Unlock()
		out := cloneResults(res)
		return &out, nil
	}

	s.inflight++
	s.mu.Unlock()

	res, err := s.svc.Search(ctx, query, filters, mode)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	if gen != s.generation {
		slog.Debug("discarding stale search response", "query", query)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		return res, nil
	}

	if err != nil {
		// Prior results stay visible; the error is held until dismissed
		// or the next success.
		s.lastErr = err
		return nil, fmt.Errorf("search: %w", err)
	}

	stored := cloneResults(*res)
	s.results = &stored
	s.lastErr = nil
	s.cache.Put(key, *res)
	if s.recent != nil {
		if err := s.recent.Add(query); err != nil {
			slog.Warn("failed to persist recent query", "error", err)
		}
	}
	return res, nil
}

// Retry re-runs the exact last issued request.
func (s *Searcher) Retry(ctx context.Context) (*backend.SearchResults, error) {
	s.mu.Lock()
	if !s.hasLast {
		s.mu.Unlock()
		return nil, ErrNoPreviousSearch
	}
	query, filters, mode := s.lastQuery, s.lastFilters, s.lastMode
	s.mu.Unlock()

	return s.SearchNow(ctx, query, filters, mode)
}

// Results returns a snapshot of the last settled results, or nil if
// none have settled yet.
func (s *Searcher) Results() *backend.SearchResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return nil
	}
	out := cloneResults(*s.results)
	return &out
}

// Err returns the held search error, if any.
func (s *Searcher) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DismissError clears the held search error.
func (s *Searcher) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Loading reports whether a backend call is in flight.
func (s *Searcher) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// CancelPending discards a debounced submission that has not fired.
func (s *Searcher) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
}

// SetTunables applies reloaded config values.
func (s *Searcher) SetTunables(debounce time.Duration, autoSearch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = debounce
	s.autoSearch = autoSearch
}

func (s *Searcher) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.pendingCtx = nil
	}
}
