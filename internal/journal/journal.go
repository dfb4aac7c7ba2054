// Package journal keeps an append-only JSONL log of inbound stream
// events, one file per session. The log is the replay record for a
// session and is compressed into the archive when the session clears.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/session"
	"github.com/user/parley/pkg/backend"
)

// Entry is one journaled stream event with its arrival metadata.
type Entry struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Journal is a JSONL-backed append-only event log, one segment per
// session under sessions/<sessionID>/events.jsonl.
type Journal struct {
	root  string
	clk   clock.Clock
	mu    sync.Mutex
	locks map[session.ID]*sync.Mutex
}

// NewJournal creates a file-backed Journal rooted at the given directory.
func NewJournal(root string, clk clock.Clock) *Journal {
	return &Journal{
		root:  root,
		clk:   clk,
		locks: make(map[session.ID]*sync.Mutex),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (j *Journal) getLock(sessionID session.ID) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()

	if lock, ok := j.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	j.locks[sessionID] = lock
	return lock
}

// SegmentPath returns the journal file for a session. The file may not
// exist yet if nothing was appended.
func (j *Journal) SegmentPath(sessionID session.ID) string {
	return filepath.Join(j.root, "sessions", string(sessionID), "events.jsonl")
}

// count reads the segment and counts lines. Caller must hold the
// session lock.
func (j *Journal) count(sessionID session.ID) (int64, error) {
	f, err := os.Open(j.SegmentPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal segment: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan journal segment: %w", err)
	}
	return count, nil
}

// Append writes one stream event to the session's segment with an
// auto-incremented sequence number and an arrival timestamp.
func (j *Journal) Append(_ context.Context, sessionID session.ID, ev backend.StreamEvent) error {
	lock := j.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(j.SegmentPath(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	existing, err := j.count(sessionID)
	if err != nil {
		return err
	}

	entry := Entry{
		Seq:        existing + 1,
		Type:       ev.Type,
		Payload:    ev.Payload,
		ReceivedAt: j.clk.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(j.SegmentPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal segment: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}

	return nil
}

// Tail returns the last N entries for the given session.
func (j *Journal) Tail(_ context.Context, sessionID session.ID, limit int) ([]Entry, error) {
	lock := j.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(j.SegmentPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal segment: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal segment: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Count returns the number of entries journaled for the session.
func (j *Journal) Count(_ context.Context, sessionID session.ID) (int64, error) {
	lock := j.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return j.count(sessionID)
}
