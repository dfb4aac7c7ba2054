// Package dispatch routes decoded stream events onto fixed per-domain
// lanes. Events within a lane are processed strictly in arrival order;
// lanes run independently, with a global semaphore bounding how many
// handlers execute at once.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/parley/pkg/backend"
)

// Lane names one ordered processing stream.
type Lane string

const (
	LaneTranscript   Lane = "transcript"
	LaneIntelligence Lane = "intelligence"
	LaneRecordings   Lane = "recordings"
)

// laneFor routes an event type to its lane. Unroutable types return "".
func laneFor(eventType string) Lane {
	switch eventType {
	case backend.EventTranscript, backend.EventEnhancedTranscript:
		return LaneTranscript
	case backend.EventIntelligenceResult:
		return LaneIntelligence
	case backend.EventRecordingCreated, backend.EventRecordingUpdated,
		backend.EventRecordingDeleted, backend.EventRecordingSaved,
		backend.EventSummaryGenerated, backend.EventSummaryFailed:
		return LaneRecordings
	default:
		return ""
	}
}

// Handler processes one stream event. A returned error is logged and the
// event dropped; the lane keeps draining.
type Handler func(ctx context.Context, ev backend.StreamEvent) error

// Dispatcher fans stream events out to three fixed lanes, one goroutine
// per lane, with a weighted semaphore limiting concurrent handler
// execution across lanes.
type Dispatcher struct {
	lanes     map[Lane]chan backend.StreamEvent
	semaphore *semaphore.Weighted
	handlers  map[string]Handler
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New creates a Dispatcher allowing up to maxConcurrent handlers to run
// simultaneously across all lanes.
func New(maxConcurrent int64) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		lanes: map[Lane]chan backend.StreamEvent{
			LaneTranscript:   make(chan backend.StreamEvent, 256),
			LaneIntelligence: make(chan backend.StreamEvent, 256),
			LaneRecordings:   make(chan backend.StreamEvent, 256),
		},
		semaphore: semaphore.NewWeighted(maxConcurrent),
		handlers:  make(map[string]Handler),
	}
}

// Register sets the handler for an event type. Must be called before
// Start.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// Start spawns the lane goroutines. Must be called before Dispatch.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
	for lane, ch := range d.lanes {
		d.wg.Add(1)
		go d.processLane(lane, ch)
	}
}

// Stop cancels the dispatcher context, closes all lanes, and waits for
// in-flight handlers to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Lock()
	for _, ch := range d.lanes {
		close(ch)
	}
	d.lanes = map[Lane]chan backend.StreamEvent{}
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch routes one event to its lane. Events with no route are
// warned and dropped without error; a full lane returns an error so the
// caller can decide whether to back off.
func (d *Dispatcher) Dispatch(ev backend.StreamEvent) error {
	lane := laneFor(ev.Type)
	if lane == "" {
		slog.Warn("dropping unroutable stream event", "type", ev.Type)
		return nil
	}

	d.mu.RLock()
	ch, ok := d.lanes[lane]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("dispatcher stopped")
	}

	select {
	case ch <- ev:
		return nil
	default:
		return fmt.Errorf("lane %s full", lane)
	}
}

// processLane drains a single lane, acquiring a semaphore slot before
// running the handler synchronously. Ordering within the lane is strict
// FIFO; the semaphore only limits cross-lane parallelism.
func (d *Dispatcher) processLane(lane Lane, ch chan backend.StreamEvent) {
	defer d.wg.Done()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := d.semaphore.Acquire(d.ctx, 1); err != nil {
				return
			}
			d.handle(lane, ev)
			d.semaphore.Release(1)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) handle(lane Lane, ev backend.StreamEvent) {
	d.mu.RLock()
	h := d.handlers[ev.Type]
	d.mu.RUnlock()
	if h == nil {
		slog.Warn("no handler for stream event", "type", ev.Type, "lane", string(lane))
		return
	}
	d.active.Add(1)
	defer d.active.Add(-1)
	if err := h(d.ctx, ev); err != nil {
		slog.Warn("event handler failed", "type", ev.Type, "lane", string(lane), "error", err)
	}
}

// WaitIdle blocks until no handlers are actively running and all lanes
// are drained, or the timeout expires. Returns true if idle.
func (d *Dispatcher) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if d.active.Load() == 0 && d.queuedEvents() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (d *Dispatcher) queuedEvents() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, ch := range d.lanes {
		n += len(ch)
	}
	return n
}
