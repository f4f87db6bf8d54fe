// If you are AI: This file implements the websocket event feed for the web UI.
// Session, pairing and app notifications stream to every connected browser.

package admin

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeWait bounds how long a slow browser may stall a broadcast.
const writeWait = 5 * time.Second

// Event is one notification pushed to the UI.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Time    int64       `json:"time"`
}

// EventHub fans events out to connected websocket clients.
type EventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		conns: map[*websocket.Conn]bool{},
		upgrader: websocket.Upgrader{
			// The admin API is already origin-gated and cookie-authed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("events"),
	}
}

// Publish broadcasts an event to every subscriber. Connections that can't
// keep up are dropped.
func (h *EventHub) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{
		Type:    eventType,
		Payload: payload,
		Time:    time.Now().Unix(),
	})
	if err != nil {
		h.logger.Warn("couldn't encode event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("dropping slow event subscriber", zap.Error(err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// handleEvents upgrades the request and keeps the connection registered
// until the peer goes away.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	conn, err := s.events.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		return
	}

	s.events.mu.Lock()
	s.events.conns[conn] = true
	s.events.mu.Unlock()

	// Drain reads to observe the close handshake; the feed is write-only.
	go func() {
		defer func() {
			s.events.mu.Lock()
			delete(s.events.conns, conn)
			s.events.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
