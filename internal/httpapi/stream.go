package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/metrics"
	"github.com/lakeql/nlsearch/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// searchRequestMessage is the client->server WebSocket envelope:
// {"type":"search_request", "query":..., "options"?:..., "context"?:...}.
type searchRequestMessage struct {
	Type    string                `json:"type"`
	Query   string                `json:"query"`
	Context map[string]any        `json:"context,omitempty"`
	Options domain.RequestOptions `json:"options,omitempty"`
}

// Stream handles GET /search/stream?client_id=... — it upgrades to a
// WebSocket, waits for exactly one search_request message, and runs
// that request through the Controller with the connection as its
// event sink for the life of the stream.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	metrics.WebSocketConnectionsActive.Inc()
	defer metrics.WebSocketConnectionsActive.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	requestID := uuid.NewString()
	dispatcher := stream.New(conn, requestID, cancel)

	// Run is the sole writer for the life of the connection; starting it
	// now means connection_established reaches the client without
	// waiting on the first read below.
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()

	dispatcher.Send(domain.ConnectionEstablishedEvent{ClientID: clientID})

	var msg searchRequestMessage
	if err := conn.ReadJSON(&msg); err != nil {
		cancel()
		<-done
		return
	}
	if msg.Type != "search_request" {
		dispatcher.Send(domain.ErrorEvent{RequestID: requestID, ErrKind: domain.ErrValidation, Message: "first message must be search_request"})
		<-done
		return
	}

	req := domain.Request{Query: msg.Query, Context: msg.Context, Options: msg.Options}

	go func() {
		_, _, _ = h.ctrl.RunWithID(ctx, requestID, dispatcher, req)
	}()

	// Sole reader from here on: watch for client disconnect and
	// propagate it as cancellation, per the dispatcher's contract.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	<-done
}
