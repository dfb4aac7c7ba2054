// Package intel correlates per-type analysis results into combined
// per-buffer records. Results for a buffer trickle in one analysis
// type at a time; the buffer completes only when the backend flags a
// result as final, at which point everything seen for that buffer is
// gathered into one CombinedAnalysis. Manual analysis requests feed
// the same store so consumers read a single consistent map.
package intel

import (
	"sort"
	"sync"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/pkg/backend"
)

// State describes how far a buffer has progressed.
type State string

const (
	StatePending           State = "pending"
	StatePartiallyComplete State = "partially_complete"
	StateComplete          State = "complete"
)

// Correlator accumulates analysis results per buffer and promotes a
// buffer to a CombinedAnalysis when a result arrives with the
// completeness flag set. Per-type results are retained after
// completion, so a later completing event rebuilds the combined record
// from everything seen. Buffers never affect each other.
type Correlator struct {
	mu         sync.Mutex
	clk        clock.Clock
	seen       map[int64]map[backend.AnalysisType]backend.AnalysisResult
	combined   map[int64]backend.CombinedAnalysis
	onComplete func(backend.CombinedAnalysis)
}

func NewCorrelator(clk clock.Clock) *Correlator {
	return &Correlator{
		clk:      clk,
		seen:     make(map[int64]map[backend.AnalysisType]backend.AnalysisResult),
		combined: make(map[int64]backend.CombinedAnalysis),
	}
}

// OnComplete registers a hook invoked with a snapshot of each newly
// completed CombinedAnalysis. The hook runs outside the correlator's
// lock.
func (c *Correlator) OnComplete(fn func(backend.CombinedAnalysis)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// Ingest stores one analysis result. A result without a timestamp is
// stamped at ingest. When the result carries the completeness flag,
// all results seen for its buffer are combined and the snapshot is
// returned (nil otherwise).
func (c *Correlator) Ingest(res backend.AnalysisResult) *backend.CombinedAnalysis {
	c.mu.Lock()

	if res.Timestamp == "" {
		res.Timestamp = c.clk.Now().UTC().Format(time.RFC3339)
	}

	byType, ok := c.seen[res.BufferID]
	if !ok {
		byType = make(map[backend.AnalysisType]backend.AnalysisResult)
		c.seen[res.BufferID] = byType
	}
	byType[res.Type] = res

	var done *backend.CombinedAnalysis
	var hook func(backend.CombinedAnalysis)
	if res.Complete {
		combined := backend.CombinedAnalysis{
			BufferID:  res.BufferID,
			Timestamp: res.Timestamp,
			Results:   make(map[backend.AnalysisType]backend.AnalysisResult, len(byType)),
			Complete:  true,
		}
		for typ, r := range byType {
			combined.Results[typ] = r
		}
		c.combined[res.BufferID] = combined

		snapshot := combined.Clone()
		done = &snapshot
		hook = c.onComplete
	}
	c.mu.Unlock()

	if done != nil && hook != nil {
		hook(done.Clone())
	}
	return done
}

// Merge folds an externally produced CombinedAnalysis (manual analysis
// via the REST API) into the store, replacing any combined record for
// the same buffer. Its per-type results join the seen set so a later
// event-path completion still gathers them.
func (c *Correlator) Merge(ca backend.CombinedAnalysis) {
	c.mu.Lock()

	if ca.Timestamp == "" {
		ca.Timestamp = c.clk.Now().UTC().Format(time.RFC3339)
	}

	byType, ok := c.seen[ca.BufferID]
	if !ok {
		byType = make(map[backend.AnalysisType]backend.AnalysisResult)
		c.seen[ca.BufferID] = byType
	}
	for typ, r := range ca.Results {
		byType[typ] = r
	}
	c.combined[ca.BufferID] = ca.Clone()

	var hook func(backend.CombinedAnalysis)
	if ca.Complete {
		hook = c.onComplete
	}
	c.mu.Unlock()

	if hook != nil {
		hook(ca.Clone())
	}
}

// Combined returns a snapshot of the combined record for bufferID.
func (c *Correlator) Combined(bufferID int64) (backend.CombinedAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ca, ok := c.combined[bufferID]
	if !ok {
		return backend.CombinedAnalysis{}, false
	}
	return ca.Clone(), true
}

// All returns snapshots of every combined record, sorted by buffer id.
func (c *Correlator) All() []backend.CombinedAnalysis {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]backend.CombinedAnalysis, 0, len(c.combined))
	for _, ca := range c.combined {
		out = append(out, ca.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BufferID < out[j].BufferID })
	return out
}

// Results returns a snapshot of every per-type result seen for
// bufferID, complete or not.
func (c *Correlator) Results(bufferID int64) map[backend.AnalysisType]backend.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := c.seen[bufferID]
	out := make(map[backend.AnalysisType]backend.AnalysisResult, len(byType))
	for typ, r := range byType {
		r.Payload = append([]byte(nil), r.Payload...)
		out[typ] = r
	}
	return out
}

// StateOf reports the buffer's progression. A buffer with no results
// is pending; one with results but no combined record is partially
// complete.
func (c *Correlator) StateOf(bufferID int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.combined[bufferID]; ok {
		return StateComplete
	}
	if len(c.seen[bufferID]) > 0 {
		return StatePartiallyComplete
	}
	return StatePending
}

// Clear drops all per-type and combined state for a new session.
func (c *Correlator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[int64]map[backend.AnalysisType]backend.AnalysisResult)
	c.combined = make(map[int64]backend.CombinedAnalysis)
}
