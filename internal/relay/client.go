package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one connected socket.
type client struct {
	id    uuid.UUID
	user  string
	ws    *websocket.Conn
	relay *Relay

	mu     sync.Mutex
	queue  chan []byte
	closed bool
}

func newClient(id uuid.UUID, user string, ws *websocket.Conn, r *Relay) *client {
	return &client{
		id:    id,
		user:  user,
		ws:    ws,
		relay: r,
		queue: make(chan []byte, r.cfg.SendQueueSize),
	}
}

func (c *client) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		return ErrSendQueue
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *client) readPump() {
	defer func() {
		c.relay.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.relay.cfg.MaxMessageSize)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.relay.logger.Warn("read error", "user", c.user, "client_id", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.relay.route(c, data)
	}
}

func (c *client) writePump() {
	defer c.ws.Close()

	for frame := range c.queue {
		c.ws.SetWriteDeadline(time.Now().Add(c.relay.cfg.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.relay.cfg.WriteTimeout))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
