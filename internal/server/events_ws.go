package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// EventsSocketHandler streams events over a websocket, one JSON text message per event
type EventsSocketHandler struct {
	eventBus     *events.Bus
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewEventsSocketHandler creates a new websocket events handler
func NewEventsSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		eventBus:     eventBus,
		writeTimeout: 10 * time.Second,
		log:          log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws; ?types=A,B narrows the stream
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	eventChan, unsubscribe := subscribe(h.eventBus, parseTypesFilter(r.URL.Query().Get("types")), 100, h.log)
	defer unsubscribe()

	// Clients never send; CloseRead handles control frames and cancels ctx on close
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Client connected to event socket")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("remote", r.RemoteAddr).Msg("Client disconnected from event socket")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			if err := h.write(ctx, conn, event); err != nil {
				status := websocket.CloseStatus(err)
				if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
					return
				}
				h.log.Warn().Err(err).Msg("Failed to write event")
				return
			}
		}
	}
}

func (h *EventsSocketHandler) write(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
