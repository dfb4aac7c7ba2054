package transcript

import (
	"sort"
	"strings"
	"sync"
)

// Merger holds enhanced transcript buffers. Each buffer is a cleaned-up
// span of the transcript keyed by buffer id; re-delivery replaces the
// buffer's text wholesale (last write wins). The enhanced view is the
// buffers sorted by id, joined with single spaces.
//
// The merger also tracks a raw-turn watermark: the aggregator's latest
// order at the moment the highest buffer was ingested. Raw turns past
// the watermark have no enhanced counterpart yet and form the hybrid
// view's tail.
type Merger struct {
	mu        sync.Mutex
	buffers   map[int64]string
	maxBuffer int64
	watermark int64
}

func NewMerger() *Merger {
	return &Merger{
		buffers:   make(map[int64]string),
		maxBuffer: -1,
		watermark: -1,
	}
}

// Ingest stores text for bufferID, replacing any previous text for the
// same id, and returns the full enhanced view. rawOrder is the
// aggregator's latest turn order at ingest time; it becomes the new
// watermark when bufferID is the highest buffer seen so far.
func (m *Merger) Ingest(bufferID int64, text string, rawOrder int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffers[bufferID] = text
	if bufferID >= m.maxBuffer {
		m.maxBuffer = bufferID
		m.watermark = rawOrder
	}
	return m.textLocked()
}

// Text returns the enhanced view: buffers sorted by id, joined with
// single spaces.
func (m *Merger) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textLocked()
}

func (m *Merger) textLocked() string {
	ids := make([]int64, 0, len(m.buffers))
	for id := range m.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, m.buffers[id])
	}
	return strings.Join(parts, " ")
}

// Watermark returns the raw-turn order covered by enhancement, or -1
// when no buffers exist.
func (m *Merger) Watermark() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark
}

// Len returns the number of enhanced buffers held.
func (m *Merger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}

// Clear drops all buffers and resets the watermark.
func (m *Merger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = make(map[int64]string)
	m.maxBuffer = -1
	m.watermark = -1
}
