package websocket

import (
	"time"

	"Seshat/internal/models"
	"Seshat/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 << 10
	sendQueue      = 256
)

// Handler receives every decoded frame read from a client.
type Handler func(c *Client, ev protocol.Event)

// Client is one connection attached to a channel.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	User    models.User
	Channel string

	send    chan []byte
	handler Handler
}

func NewClient(hub *Hub, conn *websocket.Conn, user models.User, channel string, handler Handler) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		User:    user,
		Channel: channel,
		send:    make(chan []byte, sendQueue),
		handler: handler,
	}
}

// Serve registers the client and runs its pumps until the connection ends.
func (c *Client) Serve() {
	if !c.Hub.Register(c) {
		c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.Conn.Close()
		return
	}
	go c.WritePump()
	c.ReadPump()
}

// ReadPump decodes frames from the connection and hands them to the
// handler. Malformed frames are logged and skipped.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hubLogger.Warn("WebSocket read error", "user_id", c.User.ID, "channel", c.Channel, "error", err)
			}
			return
		}
		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			hubLogger.Warn("Dropping malformed frame", "user_id", c.User.ID, "channel", c.Channel, "error", err)
			continue
		}
		if c.handler != nil {
			c.handler(c, ev)
		}
	}
}

// WritePump writes queued frames and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				hubLogger.Warn("Write failed", "user_id", c.User.ID, "channel", c.Channel, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
