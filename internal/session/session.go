// Package session owns one recording session's live state: the raw
// transcript, the enhanced buffers, and the correlated analyses. They
// clear together; clearing archives the session first and starts a
// fresh one under a new id.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/intel"
	"github.com/user/parley/internal/transcript"
	"github.com/user/parley/pkg/backend"
)

// ID identifies one recording session.
type ID string

// NewID generates a random session ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// Snapshot is the archivable view of a session at clear time.
type Snapshot struct {
	ID            ID
	StartedAt     time.Time
	ClearedAt     time.Time
	RawTranscript string
	Enhanced      string
	Analyses      []backend.CombinedAnalysis
}

// Archiver persists a cleared session's snapshot.
type Archiver interface {
	ArchiveSession(ctx context.Context, snap Snapshot) error
}

// Session bundles the components whose state shares one lifecycle. The
// component instances are stable for the session's whole life; Clear
// resets their state in place, so references handed out at wiring time
// stay valid across clears.
type Session struct {
	mu        sync.Mutex
	clk       clock.Clock
	archiver  Archiver
	id        ID
	startedAt time.Time

	agg        *transcript.Aggregator
	merger     *transcript.Merger
	correlator *intel.Correlator
}

// New creates a session with a fresh id. archiver may be nil to skip
// archiving on clear.
func New(clk clock.Clock, archiver Archiver) *Session {
	return &Session{
		clk:        clk,
		archiver:   archiver,
		id:         NewID(),
		startedAt:  clk.Now(),
		agg:        transcript.NewAggregator(),
		merger:     transcript.NewMerger(),
		correlator: intel.NewCorrelator(clk),
	}
}

// ID returns the current session id.
func (s *Session) ID() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// StartedAt returns when the current session began.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Correlator exposes the analysis store for wiring (manual analysis,
// completion hooks). The instance is stable across clears.
func (s *Session) Correlator() *intel.Correlator {
	return s.correlator
}

// IngestTurn feeds a raw transcript fragment and returns the merged
// transcript.
func (s *Session) IngestTurn(order int64, text string) string {
	return s.agg.Ingest(order, text)
}

// IngestEnhanced feeds an enhanced buffer and returns the enhanced
// view. The raw-turn watermark is captured from the aggregator at this
// moment.
func (s *Session) IngestEnhanced(bufferID int64, text string) string {
	return s.merger.Ingest(bufferID, text, s.agg.LatestOrder())
}

// IngestAnalysis feeds one analysis result, returning the combined
// record if this result completed its buffer.
func (s *Session) IngestAnalysis(res backend.AnalysisResult) *backend.CombinedAnalysis {
	return s.correlator.Ingest(res)
}

// Transcript renders the requested projection.
func (s *Session) Transcript(mode transcript.ViewMode) string {
	return transcript.Render(mode, s.agg, s.merger)
}

// Analyses returns snapshots of all combined analyses.
func (s *Session) Analyses() []backend.CombinedAnalysis {
	return s.correlator.All()
}

// Analysis returns the combined analysis for one buffer.
func (s *Session) Analysis(bufferID int64) (backend.CombinedAnalysis, bool) {
	return s.correlator.Combined(bufferID)
}

// Clear archives the current session (when it holds anything) and
// resets all state under a new id. The old id is returned.
func (s *Session) Clear(ctx context.Context) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.id
	if s.archiver != nil && !s.emptyLocked() {
		snap := Snapshot{
			ID:            s.id,
			StartedAt:     s.startedAt,
			ClearedAt:     s.clk.Now(),
			RawTranscript: s.agg.Text(),
			Enhanced:      s.merger.Text(),
			Analyses:      s.correlator.All(),
		}
		if err := s.archiver.ArchiveSession(ctx, snap); err != nil {
			return old, fmt.Errorf("archive session: %w", err)
		}
	}

	s.agg.Clear()
	s.merger.Clear()
	s.correlator.Clear()
	s.id = NewID()
	s.startedAt = s.clk.Now()
	return old, nil
}

// StartNew is Clear under its user-facing name: archive what the
// session holds and begin a fresh one. The new id is returned.
func (s *Session) StartNew(ctx context.Context) (ID, error) {
	if _, err := s.Clear(ctx); err != nil {
		return "", err
	}
	return s.ID(), nil
}

func (s *Session) emptyLocked() bool {
	return s.agg.Len() == 0 && s.merger.Len() == 0 && len(s.correlator.All()) == 0
}
