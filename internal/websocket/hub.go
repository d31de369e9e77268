// Package websocket is the relay side of the real-time channels: a hub
// keeps the connected clients of every channel and fans frames out to them.
package websocket

import (
	"log/slog"
	"sync"

	"Seshat/internal/protocol"
)

var hubLogger = slog.With("component", "hub")

type envelope struct {
	channel string
	data    []byte
	except  *Client
}

// Hub owns the client registry. All registry changes go through Run.
type Hub struct {
	clients map[string]map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	count      chan countQuery
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

type countQuery struct {
	channel string
	reply   chan int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countQuery),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			if h.clients[client.Channel] == nil {
				h.clients[client.Channel] = make(map[*Client]bool)
			}
			h.clients[client.Channel][client] = true
			hubLogger.Info("Client joined channel", "user_id", client.User.ID, "channel", client.Channel)

		case client := <-h.unregister:
			h.remove(client)

		case env := <-h.broadcast:
			for client := range h.clients[env.channel] {
				if client == env.except {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					hubLogger.Warn("Client queue full, dropping client", "user_id", client.User.ID, "channel", env.channel)
					h.remove(client)
				}
			}

		case q := <-h.count:
			q.reply <- len(h.clients[q.channel])

		case <-h.stop:
			for channel, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, channel)
			}
			hubLogger.Info("Hub stopped")
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.Channel]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.Channel)
	}
	hubLogger.Info("Client left channel", "user_id", client.User.ID, "channel", client.Channel)
}

// Stop closes every client queue and ends Run. It is safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast encodes a frame and queues it for every client of channel
// except the given one (nil to include everyone).
func (h *Hub) Broadcast(channel string, action protocol.Action, payload any, except *Client) error {
	data, err := protocol.Encode(action, payload)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- envelope{channel: channel, data: data, except: except}:
	case <-h.done:
	}
	return nil
}

// Count returns the number of clients connected to channel.
func (h *Hub) Count(channel string) int {
	q := countQuery{channel: channel, reply: make(chan int, 1)}
	select {
	case h.count <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}
