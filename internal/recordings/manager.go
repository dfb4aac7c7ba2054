// Package recordings keeps the client's view of the recording
// collection in sync with the backend while mutations are in flight.
// User mutations apply optimistically and are settled later: confirmed
// by the backend's response or a lifecycle event, or rolled back to a
// snapshot captured before the optimistic write.
package recordings

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/google/uuid"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/pkg/backend"
)

var (
	// ErrNotFound means no visible recording has the given id.
	ErrNotFound = errors.New("recording not found")

	// ErrPendingRecording means the target is an optimistic entry whose
	// creation has not settled; mutating it is an illegal state, not a
	// no-op.
	ErrPendingRecording = errors.New("recording mutation still pending")

	// ErrUnknownMutation means no snapshot exists for the token.
	ErrUnknownMutation = errors.New("unknown mutation token")
)

// MutationKind labels a pending mutation.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationRename MutationKind = "rename"
	MutationDelete MutationKind = "delete"
)

// PendingMutation describes one unsettled optimistic mutation.
type PendingMutation struct {
	Token       string
	Kind        MutationKind
	RecordingID backend.RecordingID
	At          time.Time
}

// snapshot captures the whole collection before an optimistic write.
// Rollback restores it verbatim; writes applied after the capture are
// superseded, never patched around.
type snapshot struct {
	authoritative map[backend.RecordingID]backend.Recording
	optimistic    map[backend.RecordingID]backend.Recording
	applyOrder    []backend.RecordingID
}

type pending struct {
	snap snapshot
	kind MutationKind
	id   backend.RecordingID
	at   time.Time
}

// Manager holds the authoritative recording collection plus an
// optimistic side map for unsettled creations. The visible collection
// is always the union of the two.
type Manager struct {
	mu            sync.Mutex
	clk           clock.Clock
	match         MatchFunc
	authoritative map[backend.RecordingID]backend.Recording
	optimistic    map[backend.RecordingID]backend.Recording
	applyOrder    []backend.RecordingID
	pending       map[string]pending
}

// New creates a manager. A nil match falls back to DefaultMatch.
func New(clk clock.Clock, match MatchFunc) *Manager {
	if match == nil {
		match = DefaultMatch
	}
	return &Manager{
		clk:           clk,
		match:         match,
		authoritative: make(map[backend.RecordingID]backend.Recording),
		optimistic:    make(map[backend.RecordingID]backend.Recording),
		pending:       make(map[string]pending),
	}
}

func (m *Manager) captureLocked() snapshot {
	snap := snapshot{
		authoritative: make(map[backend.RecordingID]backend.Recording, len(m.authoritative)),
		optimistic:    make(map[backend.RecordingID]backend.Recording, len(m.optimistic)),
		applyOrder:    append([]backend.RecordingID(nil), m.applyOrder...),
	}
	for id, rec := range m.authoritative {
		snap.authoritative[id] = rec
	}
	for id, rec := range m.optimistic {
		snap.optimistic[id] = rec
	}
	return snap
}

// Apply inserts rec optimistically under a fresh temp id and returns
// the mutation token (the temp id itself). The collection state is
// snapshotted first, so Reject can restore it exactly.
func (m *Manager) Apply(rec backend.Recording) backend.RecordingID {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.captureLocked()

	tempID := backend.NewTempRecordingID()
	now := m.clk.Now()
	rec.ID = tempID
	rec.CreatedAt = now
	rec.UpdatedAt = now

	m.optimistic[tempID] = rec
	m.applyOrder = append(m.applyOrder, tempID)
	m.pending[string(tempID)] = pending{snap: snap, kind: MutationCreate, id: tempID, at: now}
	return tempID
}

// ApplyRename renames a recording optimistically and returns a
// mutation token for settling. Renaming an unsettled optimistic entry
// is refused with ErrPendingRecording.
func (m *Manager) ApplyRename(id backend.RecordingID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id.IsTemp() {
		return "", ErrPendingRecording
	}
	rec, ok := m.authoritative[id]
	if !ok {
		return "", ErrNotFound
	}

	snap := m.captureLocked()

	rec.Name = name
	rec.UpdatedAt = m.clk.Now()
	m.authoritative[id] = rec

	token := "mut-" + uuid.NewString()
	m.pending[token] = pending{snap: snap, kind: MutationRename, id: id, at: rec.UpdatedAt}
	return token, nil
}

// ApplyDelete removes a recording optimistically and returns a
// mutation token for settling. Deleting an unsettled optimistic entry
// is refused with ErrPendingRecording.
func (m *Manager) ApplyDelete(id backend.RecordingID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id.IsTemp() {
		return "", ErrPendingRecording
	}
	if _, ok := m.authoritative[id]; !ok {
		return "", ErrNotFound
	}

	snap := m.captureLocked()

	delete(m.authoritative, id)

	token := "mut-" + uuid.NewString()
	m.pending[token] = pending{snap: snap, kind: MutationDelete, id: id, at: m.clk.Now()}
	return token, nil
}

// Confirm settles an optimistic creation against the server's
// recording: the first optimistic entry, in apply order, that the
// match func accepts is removed along with its snapshot, and the
// server recording joins the authoritative map. Without a match the
// server recording is upserted anyway.
func (m *Manager) Confirm(server backend.Recording) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := false
	for i, tempID := range m.applyOrder {
		opt, ok := m.optimistic[tempID]
		if !ok {
			continue
		}
		if m.match(opt, server) {
			delete(m.optimistic, tempID)
			delete(m.pending, string(tempID))
			m.applyOrder = append(m.applyOrder[:i], m.applyOrder[i+1:]...)
			matched = true
			break
		}
	}

	m.authoritative[server.ID] = server
	return matched
}

// Commit settles a rename or delete mutation: the optimistic write
// becomes permanent and its snapshot is discarded.
func (m *Manager) Commit(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, token)
}

// Reject rolls a mutation back by restoring the snapshot captured
// before its optimistic write. The restore is verbatim; anything
// applied after the capture is superseded.
func (m *Manager) Reject(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[token]
	if !ok {
		return ErrUnknownMutation
	}
	delete(m.pending, token)

	m.authoritative = p.snap.authoritative
	m.optimistic = p.snap.optimistic
	m.applyOrder = p.snap.applyOrder
	return nil
}

// Upsert applies a server-side recording state (updated/saved events).
func (m *Manager) Upsert(rec backend.Recording) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authoritative[rec.ID] = rec
}

// Remove applies a server-side deletion.
func (m *Manager) Remove(id backend.RecordingID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.authoritative, id)
}

// SetSummary attaches a generated summary to a recording. The HTML is
// kept as delivered and also converted to markdown for text surfaces;
// a conversion failure keeps the HTML and logs.
func (m *Manager) SetSummary(id backend.RecordingID, html string) (backend.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.authoritative[id]
	if !ok {
		return backend.Recording{}, ErrNotFound
	}

	rec.SummaryHTML = html
	rec.SummaryError = ""
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		slog.Warn("summary markdown conversion failed", "recording_id", id, "error", err)
		rec.SummaryMarkdown = ""
	} else {
		rec.SummaryMarkdown = markdown
	}
	rec.UpdatedAt = m.clk.Now()
	m.authoritative[id] = rec
	return rec, nil
}

// SetSummaryError records a failed summary generation.
func (m *Manager) SetSummaryError(id backend.RecordingID, msg string) (backend.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.authoritative[id]
	if !ok {
		return backend.Recording{}, ErrNotFound
	}
	rec.SummaryError = msg
	rec.UpdatedAt = m.clk.Now()
	m.authoritative[id] = rec
	return rec, nil
}

// Get returns the visible recording for id, optimistic entries
// included.
func (m *Manager) Get(id backend.RecordingID) (backend.Recording, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.optimistic[id]; ok {
		return rec, true
	}
	rec, ok := m.authoritative[id]
	return rec, ok
}

// Visible returns the union of authoritative and optimistic
// recordings, sorted by creation time (ties by id).
func (m *Manager) Visible() []backend.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]backend.Recording, 0, len(m.authoritative)+len(m.optimistic))
	for _, rec := range m.authoritative {
		out = append(out, rec)
	}
	for _, rec := range m.optimistic {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pending lists unsettled mutations, oldest first.
func (m *Manager) Pending() []PendingMutation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingMutation, 0, len(m.pending))
	for token, p := range m.pending {
		out = append(out, PendingMutation{Token: token, Kind: p.kind, RecordingID: p.id, At: p.at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
