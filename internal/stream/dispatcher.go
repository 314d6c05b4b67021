// Package stream implements the streaming dispatcher (C12): it
// subscribes a single WebSocket connection to one request's event
// stream and forwards events in emission order on a dedicated writer
// goroutine, closing the stream with error(backpressure) if the client
// falls behind.
package stream

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/lakeql/nlsearch/internal/domain"
)

const defaultQueueSize = 32

// Dispatcher forwards PipelineEvents to one WebSocket connection.
type Dispatcher struct {
	conn      *websocket.Conn
	requestID string
	cancel    context.CancelFunc

	queue  chan domain.PipelineEvent
	urgent chan struct{}

	seq    atomic.Int64
	closed atomic.Bool
}

// New builds a Dispatcher. cancel is called exactly once, the first
// time the client disconnects, the connection errors, or the client
// can't keep up with the event rate; callers use it to propagate
// cancellation into the in-flight pipeline run.
func New(conn *websocket.Conn, requestID string, cancel context.CancelFunc) *Dispatcher {
	return &Dispatcher{
		conn:      conn,
		requestID: requestID,
		cancel:    cancel,
		queue:     make(chan domain.PipelineEvent, defaultQueueSize),
		urgent:    make(chan struct{}, 1),
	}
}

// Send enqueues ev for delivery. It returns false if the queue is full
// or the dispatcher has already closed; a false return on a full queue
// also triggers the backpressure close sequence.
func (d *Dispatcher) Send(ev domain.PipelineEvent) bool {
	if d.closed.Load() {
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		select {
		case d.urgent <- struct{}{}:
		default:
		}
		return false
	}
}

// Run drains the queue on the calling goroutine until a terminal event
// is written, the connection errors, backpressure fires, or ctx is
// cancelled. It should be the only goroutine that writes to conn.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.conn.Close()

	for {
		select {
		case <-d.urgent:
			d.writeEvent(domain.ErrorEvent{
				RequestID: d.requestID,
				ErrKind:   domain.ErrBackpressure,
				Message:   "client did not keep up with the event stream",
			})
			d.closed.Store(true)
			d.cancel()
			return

		case ev, ok := <-d.queue:
			if !ok {
				return
			}
			if err := d.writeEvent(ev); err != nil {
				d.closed.Store(true)
				d.cancel()
				return
			}
			if isTerminal(ev.Kind()) {
				d.closed.Store(true)
				return
			}

		case <-ctx.Done():
			d.closed.Store(true)
			d.cancel()
			return
		}
	}
}

func isTerminal(kind domain.EventKind) bool {
	return kind == domain.EventComplete || kind == domain.EventError
}

func (d *Dispatcher) writeEvent(ev domain.PipelineEvent) error {
	payload, err := marshalEvent(ev, d.seq.Add(1))
	if err != nil {
		return err
	}
	return d.conn.WriteMessage(websocket.TextMessage, payload)
}

// marshalEvent flattens ev's own JSON fields together with the
// event_type discriminator and sequence number, matching the wire
// format's flat event_type/seq/... shape.
func marshalEvent(ev domain.PipelineEvent, seq int64) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["event_type"] = string(ev.Kind())
	fields["seq"] = seq
	return json.Marshal(fields)
}
