package ws

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// MarkerEvent announces a new marker to subscribers of a tile. PixelX and
// PixelY are global pixel coordinates at the tile's level.
type MarkerEvent struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	PixelX float64 `json:"px"`
	PixelY float64 `json:"py"`
	Seq    uint64  `json:"seq"`
	Ts     int64   `json:"ts"`
}

// RoomKey names the room for a tile
func RoomKey(level uint, x, y int64) string {
	return fmt.Sprintf("%d/%d/%d", level, x, y)
}

// Conn represents a WebSocket connection
type Conn struct {
	ws     *websocket.Conn
	send   chan MarkerEvent
	hub    *Hub
	roomID string
}

// ReadPump reads messages from the WebSocket connection until it fails, then
// unregisters it. Clients never send anything but control frames.
func (c *Conn) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws %s: %v", c.roomID, err)
			}
			break
		}
	}
}

// WritePump writes events and pings to the WebSocket connection
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Room holds the subscribers of one tile
type Room struct {
	subs map[*Conn]struct{}
	mu   sync.Mutex
}

func newRoom() *Room {
	return &Room{subs: make(map[*Conn]struct{})}
}

func (r *Room) addSubscriber(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[conn] = struct{}{}
}

func (r *Room) removeSubscriber(conn *Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, conn)
	return len(r.subs)
}

func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// broadcast sends an event to all subscribers in the room
func (r *Room) broadcast(ev MarkerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn := range r.subs {
		select {
		case conn.send <- ev:
		default:
			// Drop on backpressure
			close(conn.send)
			delete(r.subs, conn)
		}
	}
}

// Hub manages WebSocket connections and tile rooms
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	register   chan *Conn
	unregister chan *Conn
	done       chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			room, exists := h.rooms[conn.roomID]
			if !exists {
				room = newRoom()
				h.rooms[conn.roomID] = room
			}
			room.addSubscriber(conn)
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if room, exists := h.rooms[conn.roomID]; exists {
				if room.removeSubscriber(conn) == 0 {
					delete(h.rooms, conn.roomID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends an event to the room of a tile, if anyone is subscribed
func (h *Hub) Publish(level uint, x, y int64, ev MarkerEvent) {
	h.mu.RLock()
	room, exists := h.rooms[RoomKey(level, x, y)]
	h.mu.RUnlock()

	if !exists {
		return
	}

	room.broadcast(ev)
}

// HasRoom reports whether a tile has subscribers
func (h *Hub) HasRoom(level uint, x, y int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.rooms[RoomKey(level, x, y)]
	return exists
}

// GetRoomCount returns the number of active rooms
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetSubscriberCount returns the number of subscribers in a room
func (h *Hub) GetSubscriberCount(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, exists := h.rooms[roomKey]; exists {
		return room.size()
	}
	return 0
}

// RegisterConn registers a new connection for a tile. Once Run has returned
// the connection is never subscribed.
func (h *Hub) RegisterConn(ws *websocket.Conn, level uint, x, y int64) *Conn {
	conn := &Conn{
		ws:     ws,
		send:   make(chan MarkerEvent, sendBuffer),
		hub:    h,
		roomID: RoomKey(level, x, y),
	}

	select {
	case h.register <- conn:
	case <-h.done:
	}

	return conn
}
