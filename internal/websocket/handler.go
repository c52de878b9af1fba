package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"libraryhub/internal/auth"
	"libraryhub/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Origin is enforced by CORS and the token, not here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	username string
	role     models.Role
	send     chan []byte
}

// Librarians follow every event; readers only their own.
func (c *client) wants(ev models.LifecycleEvent) bool {
	return c.role == models.RoleLibrarian || ev.Username == c.username
}

// HandleWebSocket must sit behind the auth gate, which puts the caller's
// username and role into the gin context.
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, role := auth.Username(c), auth.Role(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade", "err", err)
			return
		}

		cl := &client{
			hub:      hub,
			conn:     conn,
			username: username,
			role:     role,
			send:     make(chan []byte, 256),
		}
		select {
		case hub.register <- cl:
		case <-hub.done:
			conn.Close()
			return
		}

		go cl.readPump()
		go cl.writePump()
	}
}

// readPump chỉ để phát hiện client đóng kết nối, feed này chỉ gửi một chiều
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c.conn:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read", "username", c.username, "err", err)
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
