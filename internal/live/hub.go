// Package live pushes match events to websocket subscribers. Each match is a
// room; every committed event on a match is broadcast to its room.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message is one frame sent to subscribers.
type Message struct {
	Type    string `json:"type"` // "snapshot" or an event kind
	MatchID int64  `json:"match_id"`
	Payload any    `json:"payload"`
}

type broadcast struct {
	room int64
	data []byte
}

// Hub owns the rooms. Only the Run goroutine touches the room map.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan broadcast
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	rooms map[int64]map[*client]struct{}
}

var _ bus.Publisher = (*Hub)(nil)

// NewHub returns a hub accepting browser connections from allowedOrigins.
// An empty list or "*" accepts any origin.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcast, 256),
		done:       make(chan struct{}),
		logger:     logger,
		rooms:      make(map[int64]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 ||
				slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			room, ok := h.rooms[c.room]
			if !ok {
				room = make(map[*client]struct{})
				h.rooms[c.room] = room
			}
			room[c] = struct{}{}
			h.logger.Debug("Live subscriber joined", "match_id", c.room, "subscribers", len(room))

		case c := <-h.unregister:
			h.drop(c)

		case b := <-h.broadcast:
			for c := range h.rooms[b.room] {
				select {
				case c.send <- b.data:
				default:
					h.logger.Warn("Live subscriber too slow, disconnecting", "match_id", b.room)
					h.drop(c)
				}
			}

		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			h.rooms = nil
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	room, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.room)
	}
}

// Publish broadcasts match events to the match's room. Tournament events
// are ignored.
func (h *Hub) Publish(ctx context.Context, evt domain.Event) {
	if evt.Match == nil {
		return
	}
	data, err := json.Marshal(Message{Type: string(evt.Kind), MatchID: evt.Match.ID, Payload: evt})
	if err != nil {
		h.logger.Warn("Failed to encode live message", "event_id", evt.ID, "error", err)
		return
	}
	select {
	case h.broadcast <- broadcast{room: evt.Match.ID, data: data}:
	case <-h.done:
	case <-ctx.Done():
	}
}

// Serve upgrades the request and subscribes it to matchID. snapshot, when
// non-nil, is sent first so the client starts from the current score.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, matchID int64, snapshot any) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("Websocket upgrade failed", "match_id", matchID, "error", err)
		return
	}
	c := &client{hub: h, conn: conn, room: matchID, send: make(chan []byte, sendBuffer)}
	if snapshot != nil {
		if data, err := json.Marshal(Message{Type: "snapshot", MatchID: matchID, Payload: snapshot}); err == nil {
			c.send <- data
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// --------------------------------------------------------------------------
// Client pumps
// --------------------------------------------------------------------------

type client struct {
	hub  *Hub
	conn *websocket.Conn
	room int64
	send chan []byte
}

// readPump discards inbound frames; it exists to process pongs and notice
// the peer going away.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Live subscriber read error", "match_id", c.room, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
