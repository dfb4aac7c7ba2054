// Package transcript merges streaming transcription fragments into
// ordered transcript views. Raw turns arrive out of order and
// accumulate by turn order; enhanced buffers arrive asynchronously and
// replace wholesale. The two sides stay independently queryable, with
// a hybrid projection joining cleaned text to the not-yet-cleaned raw
// tail.
package transcript

import (
	"sort"
	"strings"
	"sync"
)

// Turn is one ordered slot of raw transcript text. Fragments for the
// same order append to the slot's text.
type Turn struct {
	Order int64  `json:"order"`
	Text  string `json:"text"`
}

// Aggregator accumulates raw transcript fragments keyed by turn order.
// Arrival order does not matter; the merged transcript is always the
// slots sorted by order. Fragments carry their own spacing, so slots
// concatenate without a separator.
type Aggregator struct {
	mu     sync.Mutex
	turns  map[int64]string
	latest int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		turns:  make(map[int64]string),
		latest: -1,
	}
}

// Ingest appends text to the slot for order, creating it if needed,
// and returns the full merged transcript.
func (a *Aggregator) Ingest(order int64, text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.turns[order] += text
	if order > a.latest {
		a.latest = order
	}
	return a.textLocked(-1)
}

// Text returns the merged transcript: all slots sorted by order,
// concatenated.
func (a *Aggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.textLocked(-1)
}

// TextAfter returns the merged transcript restricted to slots with
// order strictly greater than after.
func (a *Aggregator) TextAfter(after int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.textLocked(after)
}

func (a *Aggregator) textLocked(after int64) string {
	orders := make([]int64, 0, len(a.turns))
	for order := range a.turns {
		if order > after {
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i] < orders[j] })

	var b strings.Builder
	for _, order := range orders {
		b.WriteString(a.turns[order])
	}
	return b.String()
}

// LatestOrder returns the highest order ingested so far, or -1 when no
// turns exist.
func (a *Aggregator) LatestOrder() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Turns returns a snapshot of all slots sorted by order.
func (a *Aggregator) Turns() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Turn, 0, len(a.turns))
	for order, text := range a.turns {
		out = append(out, Turn{Order: order, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Len returns the number of distinct turn orders seen.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.turns)
}

// Clear drops all turns, resetting the aggregator for a new session.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.turns = make(map[int64]string)
	a.latest = -1
}
