package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"libraryhub/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub giữ các kết nối websocket và đẩy lifecycle event tới đúng người nhận
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client

	events     <-chan models.LifecycleEvent
	register   chan *client
	unregister chan *websocket.Conn
	done       chan struct{}

	log *slog.Logger
}

func NewHub(events <-chan models.LifecycleEvent, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]*client),
		events:     events,
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run handles connection bookkeeping and delivery until ctx is cancelled or
// the event channel is closed. All clients are disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for conn, c := range h.clients {
			delete(h.clients, conn)
			close(c.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			h.mu.Unlock()
			h.log.Info("websocket client connected", "username", c.username, "role", c.role)

		case conn := <-h.unregister:
			h.mu.Lock()
			if c, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(c.send)
				h.log.Info("websocket client disconnected", "username", c.username)
			}
			h.mu.Unlock()

		case ev, ok := <-h.events:
			if !ok {
				return
			}
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev models.LifecycleEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal lifecycle event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn("websocket send buffer full, dropping client", "username", c.username)
			delete(h.clients, conn)
			close(c.send)
			conn.Close()
		}
	}
}
