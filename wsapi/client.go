package wsapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one WebSocket-connected participant. It may be subscribed to
// several of a document's paths (presence, operations, cursors) at once.
type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	documentID string
	userID     string
	userName   string

	mu    sync.Mutex
	paths map[string]bool
}

func newClient(hub *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, 256),
		paths: make(map[string]bool),
	}
}

func (c *client) subscribe(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[path] = true
}

func (c *client) subscribedTo(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

// ServeWS upgrades the connection and starts the read/write pumps. Room and
// document identity arrive via the first subscribe/edit/cursor message, not
// the URL, since a single connection may subscribe to several paths across
// several documents over its lifetime.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsapi: upgrade failed: %v", err)
		return
	}

	c := newClient(hub, conn)
	hub.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("wsapi: read error: %v", err)
			}
			break
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			log.Printf("wsapi: malformed message: %v", err)
			continue
		}

		c.hub.dispatch(c, envelope.Type, message)
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
