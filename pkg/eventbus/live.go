package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds how long a single WebSocket send may block. A client
// that stalls past this is dropped rather than allowed to back up the bus.
const writeTimeout = 5 * time.Second

// LiveTransport bridges the Bus to WebSocket clients for the operator
// dashboard and the CLI's `spec show --watch`. One HandleConnection call
// blocks for the lifetime of a single client connection.
type LiveTransport struct {
	bus *Bus
}

// NewLiveTransport creates a transport reading from bus.
func NewLiveTransport(bus *Bus) *LiveTransport {
	return &LiveTransport{bus: bus}
}

// subscribeRequest is the client-sent message selecting which envelopes to
// stream; an empty field matches any value, mirroring Filter.
type subscribeRequest struct {
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// HandleConnection reads one subscribe request, then streams matching
// envelopes to conn until the client disconnects or ctx is canceled.
func (t *LiveTransport) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	connID := uuid.NewString()
	logger := slog.With("connection_id", connID, "component", "eventbus-live")

	_, data, err := conn.Read(ctx)
	if err != nil {
		logger.Warn("failed to read subscribe request", "error", err)
		return
	}

	var req subscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn("invalid subscribe request", "error", err)
		_ = conn.Close(websocket.StatusUnsupportedData, "invalid subscribe request")
		return
	}

	envelopes, unsubscribe := t.bus.Subscribe(Filter{
		EventType:  req.EventType,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}
			if err := t.send(ctx, conn, env); err != nil {
				logger.Warn("failed to send envelope to client", "error", err)
				return
			}
		}
	}
}

func (t *LiveTransport) send(ctx context.Context, conn *websocket.Conn, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
