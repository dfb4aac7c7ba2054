package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"time"

	"github.com/user/parley/pkg/backend"
)

// Handler consumes one decoded stream event. Handlers must not block for
// long; they run on the read loop.
type Handler func(ev backend.StreamEvent)

// maxLineSize bounds one NDJSON line. Transcript fragments are small but
// summary payloads can carry whole documents.
const maxLineSize = 4 * 1024 * 1024

// Client maintains a long-lived connection to the backend event stream.
// Events arrive as newline-delimited JSON envelopes. On connection loss
// the client reconnects with exponential backoff and keeps consuming.
type Client struct {
	addr    string
	handler Handler
}

// New creates a stream client that delivers every decoded event to handler.
func New(addr string, handler Handler) *Client {
	return &Client{addr: addr, handler: handler}
}

// Run connects and consumes events until ctx is cancelled. Dial and read
// failures are logged and retried; Run only returns on cancellation.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			delay := backoffDelay(attempt)
			attempt++
			slog.Warn("stream connect failed", "addr", c.addr, "attempt", attempt, "retry_in", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}

		attempt = 0
		slog.Info("stream connected", "addr", c.addr)

		if err := c.consume(ctx, conn); err != nil && ctx.Err() == nil {
			slog.Warn("stream disconnected", "addr", c.addr, "error", err)
		}
		conn.Close()
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", c.addr)
}

// consume reads envelopes off the connection until it fails or ctx is
// cancelled. Malformed lines are logged and dropped; they never stop the
// stream.
func (c *Client) consume(ctx context.Context, conn net.Conn) error {
	// Unblock the scanner when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev backend.StreamEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Warn("dropping malformed stream event", "error", err)
			continue
		}
		if ev.Type == "" {
			slog.Warn("dropping stream event with no type")
			continue
		}
		c.handler(ev)
	}
	return scanner.Err()
}

// backoffDelay returns the reconnect delay for the given attempt count:
// 1s, 2s, 4s, 8s, then 16s, capped at 30s.
func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
