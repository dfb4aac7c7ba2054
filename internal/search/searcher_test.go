package search

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/user/parley/pkg/backend"
)

type stubSearchService struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	block   map[string]bool
	started chan struct{}
	gate    chan struct{}
}

func (s *stubSearchService) Search(ctx context.Context, query string, filters backend.SearchFilters, mode backend.SearchMode) (*backend.SearchResults, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	blocked := s.block[query]
	s.mu.Unlock()

	if blocked {
		s.started <- struct{}{}
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return &backend.SearchResults{
		Query: query,
		Hits:  []backend.SearchHit{{RecordingID: "rec-1", Snippet: query, Score: 0.8}},
		Total: 1,
	}, nil
}

func (s *stubSearchService) callList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubSearchService) setErr(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[string]error)
	}
	if err == nil {
		delete(s.errs, query)
	} else {
		s.errs[query] = err
	}
}

func newTestSearcher(t *testing.T, svc *stubSearchService, debounce time.Duration, autoSearch bool) (*Searcher, *Cache, *RecentStore) {
	t.Helper()
	clk := testClock()
	cache := NewCache(clk, 5*time.Minute, 10)
	recent := NewRecentStore(filepath.Join(t.TempDir(), "recent.json"), 10)
	s := NewSearcher(svc, cache, recent, clk, debounce, autoSearch)
	return s, cache, recent
}

func TestDebounceOnlyLastExecutes(t *testing.T) {
	svc := &stubSearchService{}
	clk := testClock()
	cache := NewCache(clk, 5*time.Minute, 10)
	recent := NewRecentStore(filepath.Join(t.TempDir(), "recent.json"), 10)
	s := NewSearcher(svc, cache, recent, clk, 300*time.Millisecond, true)
	ctx := context.Background()

	if _, ok := s.Submit(ctx, "q1", backend.SearchFilters{}, backend.SearchModeHybrid); ok {
		t.Fatal("cold submit settled synchronously")
	}
	clk.Advance(100 * time.Millisecond)
	s.Submit(ctx, "q2", backend.SearchFilters{}, backend.SearchModeHybrid)
	clk.Advance(100 * time.Millisecond)
	s.Submit(ctx, "q3", backend.SearchFilters{}, backend.SearchModeHybrid)

	// One tick short of the window: nothing may fire
	clk.Advance(300*time.Millisecond - time.Millisecond)
	if calls := svc.callList(); len(calls) != 0 {
		t.Fatalf("backend called before the window closed: %v", calls)
	}

	clk.Advance(time.Millisecond)
	if calls := svc.callList(); !reflect.DeepEqual(calls, []string{"q3"}) {
		t.Fatalf("backend calls = %v, want only the last submission", calls)
	}

	if got := s.Results(); got == nil || got.Query != "q3" {
		t.Errorf("results = %+v, want q3's", got)
	}

	// Discarded submissions left no side effects
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", cache.Len())
	}
	queries, _ := recent.List()
	if !reflect.DeepEqual(queries, []string{"q3"}) {
		t.Errorf("recent = %v, want only q3", queries)
	}
}

func TestCacheHitSettlesSynchronously(t *testing.T) {
	svc := &stubSearchService{}
	s, _, _ := newTestSearcher(t, svc, 300*time.Millisecond, true)
	ctx := context.Background()

	if _, err := s.SearchNow(ctx, "revenue", backend.SearchFilters{}, backend.SearchModeHybrid); err != nil {
		t.Fatal(err)
	}
	if len(svc.callList()) != 1 {
		t.Fatalf("priming call count = %d", len(svc.callList()))
	}

	res, ok := s.Submit(ctx, "Revenue", backend.SearchFilters{}, backend.SearchModeHybrid)
	if !ok {
		t.Fatal("cached submit did not settle synchronously")
	}
	if res.Query != "revenue" {
		t.Errorf("cached results query = %q", res.Query)
	}
	if len(svc.callList()) != 1 {
		t.Error("cache hit still called the backend")
	}
	if s.Loading() {
		t.Error("cache hit entered a loading state")
	}
}

func TestAutoSearchDisabledRunsImmediately(t *testing.T) {
	svc := &stubSearchService{}
	s, _, _ := newTestSearcher(t, svc, 300*time.Millisecond, false)

	res, ok := s.Submit(context.Background(), "q", backend.SearchFilters{}, backend.SearchModeHybrid)
	if !ok || res == nil {
		t.Fatal("submit with auto-search off should execute immediately")
	}
	if len(svc.callList()) != 1 {
		t.Errorf("backend calls = %d, want 1", len(svc.callList()))
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	svc := &stubSearchService{
		block:   map[string]bool{"slow": true},
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	s, cache, _ := newTestSearcher(t, svc, 0, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	var slowRes *backend.SearchResults
	var slowErr error
	go func() {
		defer wg.Done()
		slowRes, slowErr = s.SearchNow(ctx, "slow", backend.SearchFilters{}, backend.SearchModeHybrid)
	}()

	<-svc.started
	if !s.Loading() {
		t.Error("Loading() should be true while a call is in flight")
	}

	// A newer request settles while the first is still in flight
	if _, err := s.SearchNow(ctx, "fast", backend.SearchFilters{}, backend.SearchModeHybrid); err != nil {
		t.Fatal(err)
	}

	close(svc.gate)
	wg.Wait()

	if slowErr != nil {
		t.Fatalf("stale call errored: %v", slowErr)
	}
	if slowRes == nil || slowRes.Query != "slow" {
		t.Errorf("stale caller should still get its own response, got %+v", slowRes)
	}

	// Shared state kept the newer response
	if got := s.Results(); got == nil || got.Query != "fast" {
		t.Errorf("results = %+v, want the newer request's", got)
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries, stale response must not be cached", cache.Len())
	}
	if s.Loading() {
		t.Error("Loading() stuck after all calls settled")
	}
}

func TestFailureKeepsPriorResultsAndRetries(t *testing.T) {
	svc := &stubSearchService{}
	svc.setErr("flaky", errors.New("backend down"))
	s, _, _ := newTestSearcher(t, svc, 0, false)
	ctx := context.Background()

	if _, err := s.SearchNow(ctx, "good", backend.SearchFilters{}, backend.SearchModeHybrid); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SearchNow(ctx, "flaky", backend.SearchFilters{}, backend.SearchModeHybrid); err == nil {
		t.Fatal("expected search error")
	}

	if got := s.Results(); got == nil || got.Query != "good" {
		t.Errorf("prior results lost on failure: %+v", got)
	}
	if s.Err() == nil {
		t.Error("error not held after failure")
	}

	// Backend recovers; Retry re-runs the exact last request
	svc.setErr("flaky", nil)
	res, err := s.Retry(ctx)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if res.Query != "flaky" {
		t.Errorf("Retry ran %q, want the last issued request", res.Query)
	}
	if s.Err() != nil {
		t.Error("error not cleared after successful retry")
	}

	calls := svc.callList()
	if !reflect.DeepEqual(calls, []string{"good", "flaky", "flaky"}) {
		t.Errorf("backend calls = %v", calls)
	}
}

func TestRetryWithoutHistory(t *testing.T) {
	s, _, _ := newTestSearcher(t, &stubSearchService{}, 0, false)
	if _, err := s.Retry(context.Background()); !errors.Is(err, ErrNoPreviousSearch) {
		t.Errorf("err = %v, want ErrNoPreviousSearch", err)
	}
}

func TestDismissError(t *testing.T) {
	svc := &stubSearchService{}
	svc.setErr("bad", errors.New("boom"))
	s, _, _ := newTestSearcher(t, svc, 0, false)

	s.SearchNow(context.Background(), "bad", backend.SearchFilters{}, backend.SearchModeHybrid)
	if s.Err() == nil {
		t.Fatal("expected held error")
	}
	s.DismissError()
	if s.Err() != nil {
		t.Error("DismissError left the error in place")
	}
}

func TestCancelPending(t *testing.T) {
	svc := &stubSearchService{}
	clk := testClock()
	s := NewSearcher(svc, NewCache(clk, time.Minute, 10), nil, clk, 300*time.Millisecond, true)

	s.Submit(context.Background(), "q", backend.SearchFilters{}, backend.SearchModeHybrid)
	s.CancelPending()

	clk.Advance(time.Second)
	if len(svc.callList()) != 0 {
		t.Error("cancelled submission still executed")
	}
}

func TestCacheHitCancelsPendingSubmission(t *testing.T) {
	svc := &stubSearchService{}
	clk := testClock()
	cache := NewCache(clk, 5*time.Minute, 10)
	s := NewSearcher(svc, cache, nil, clk, 300*time.Millisecond, true)
	ctx := context.Background()

	// Prime the cache, then schedule a different query
	s.SearchNow(ctx, "cached", backend.SearchFilters{}, backend.SearchModeHybrid)
	s.Submit(ctx, "pending", backend.SearchFilters{}, backend.SearchModeHybrid)

	// The cache hit supersedes the scheduled query
	if _, ok := s.Submit(ctx, "cached", backend.SearchFilters{}, backend.SearchModeHybrid); !ok {
		t.Fatal("expected cache hit")
	}

	clk.Advance(time.Second)
	if calls := svc.callList(); !reflect.DeepEqual(calls, []string{"cached"}) {
		t.Errorf("backend calls = %v, superseded submission should never run", calls)
	}
}

func TestTunablesApply(t *testing.T) {
	svc := &stubSearchService{}
	clk := testClock()
	s := NewSearcher(svc, NewCache(clk, time.Minute, 10), nil, clk, 300*time.Millisecond, true)

	// Turning auto-search off makes submissions immediate
	s.SetTunables(300*time.Millisecond, false)
	if _, ok := s.Submit(context.Background(), "q", backend.SearchFilters{}, backend.SearchModeHybrid); !ok {
		t.Error("submission should execute immediately after tunables change")
	}
}
