package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	// file uploads arrive inline as a single hex-encoded envelope
	maxMessageSize = 16 << 20
)

// Client is one websocket connection. The registry binding from connection
// to username lives in ChatServer; username here is set on register and
// read by other goroutines only under the server lock.
type Client struct {
	conn      *websocket.Conn
	server    *ChatServer
	log       *log.Logger
	sessionId string
	// seq is the registration order, used for first-match delivery when
	// several connections claim the same username.
	seq      uint64
	username string
	send     chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func newClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:      conn,
		server:    cs,
		log:       l,
		sessionId: uuid.NewString(),
		send:      make(chan []byte, 256),
		stop:      make(chan struct{}),
	}
}

// queueMessage serializes msg and enqueues it without blocking. Delivery
// order per connection matches enqueue order; a full buffer drops the
// message rather than stalling the caller.
func (c *Client) queueMessage(msg any) bool {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.log.Printf("session %s: marshal message: %v", c.sessionId, err)
		return false
	}

	select {
	case c.send <- raw:
	default:
		c.log.Printf("session %s: send buffer full, dropping message", c.sessionId)
		return false
	}

	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("session %s: write exiting", c.sessionId)
	}()

	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return
			}

			if !c.writeMessage(websocket.TextMessage, raw) {
				return
			}
		case <-c.stop:
			// flush whatever is queued so a final notice (e.g. kicked)
			// reaches the peer before the connection closes
			c.drainSend()
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) drainSend() {
	for {
		select {
		case raw := <-c.send:
			if !c.writeMessage(websocket.TextMessage, raw) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.server.unregister(c)
		c.stopClient()
		c.log.Printf("session %s: read exiting", c.sessionId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("session %s: read: %v", c.sessionId, err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// malformed envelopes are swallowed, the connection stays open
			c.log.Printf("session %s: parse message: %v", c.sessionId, err)
			continue
		}

		msg.raw = raw
		c.server.route(c, &msg)
	}
}

func (c *Client) writeMessage(msgType int, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("session %s: write message: %v", c.sessionId, err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}
