//go:generate go run go.uber.org/mock/mockgen -source=controller.go -destination=../mocks/mock_message_api.go -package=mocks -exclude_interfaces=Socket
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"Seshat/internal/api"
	"Seshat/internal/models"
	"Seshat/internal/protocol"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistoryLimit = 50
	DefaultAckTimeout   = 10 * time.Second
)

var (
	ErrNoRoomSelected  = errors.New("no room selected")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrAckTimeout      = errors.New("message not acknowledged")
)

// MessageAPI is the request/response side of chat.
type MessageAPI interface {
	ListMessages(ctx context.Context, roomID string, page api.Page) ([]models.Message, error)
	PostMessage(ctx context.Context, roomID string, req api.PostMessageRequest) (models.Message, error)
}

// Socket is the real-time connection of one room.
type Socket interface {
	Connect(ctx context.Context) error
	Send(action protocol.Action, payload any) error
	On(action protocol.Action, h protocol.Handler)
	Off(action protocol.Action)
	Disconnect()
	IsOpen() bool
}

// SocketFactory creates an unconnected socket bound to a room.
type SocketFactory func(room models.Room) Socket

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLive
	StateSwitching
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateSwitching:
		return "switching"
	default:
		return "idle"
	}
}

// Snapshot is a copy of the controller state handed to observers.
type Snapshot struct {
	State    State
	Room     *models.Room
	Messages []models.Message
	Err      error
}

type Options struct {
	Self         models.User
	HistoryLimit int
	// AckTimeout bounds how long a message sent over the socket may stay
	// pending before it is marked failed.
	AckTimeout time.Duration
	Logger     *slog.Logger
	OnChange   func(Snapshot)
	OnPresence func(models.Presence)
	Now        func() time.Time
}

// Controller owns the active room, its message log and its connection.
//
// Every selection bumps a generation counter. History fetches, socket
// handlers and send completions carry the generation they were started
// under and are discarded once it is no longer current.
type Controller struct {
	api    MessageAPI
	dial   SocketFactory
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	gen       uint64
	room      *models.Room
	socket    Socket
	messages  []models.Message
	loading   bool
	switching bool
	err       error
}

func NewController(messages MessageAPI, dial SocketFactory, opts Options) *Controller {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "chat")
	}
	return &Controller{api: messages, dial: dial, opts: opts, logger: logger}
}

// SelectRoom tears down the current room and, when room is non-nil, loads
// its recent history while opening a fresh connection. A history failure
// is kept as the controller error and returned; the room stays selected.
// Connection failures are only logged.
func (c *Controller) SelectRoom(ctx context.Context, room *models.Room) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.socket
	c.socket = nil
	c.room = nil
	c.messages = nil
	c.loading = false
	c.err = nil
	c.switching = old != nil
	c.mu.Unlock()

	if old != nil {
		c.notify()
		old.Disconnect()
	}

	if room == nil {
		c.mu.Lock()
		if c.gen == gen {
			c.switching = false
		}
		c.mu.Unlock()
		c.notify()
		return nil
	}

	selected := *room
	sock := c.dial(selected)
	sock.On(protocol.ActionNewMessage, func(ev protocol.Event) {
		if e, ok := ev.(protocol.NewMessage); ok {
			c.reconcile(gen, e.Message)
		}
	})
	sock.On(protocol.ActionUserJoined, func(ev protocol.Event) {
		if e, ok := ev.(protocol.UserJoined); ok {
			c.presence(gen, e.Presence)
		}
	})
	sock.On(protocol.ActionAny, func(ev protocol.Event) {
		c.logger.Debug("Ignoring action", "action", ev.Action(), "room_id", selected.ID)
	})

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.switching = false
	c.room = &selected
	c.socket = sock
	c.loading = true
	c.mu.Unlock()
	c.notify()
	c.logger.Info("Room selected", "room_id", selected.ID, "name", selected.Name)

	var g errgroup.Group
	g.Go(func() error {
		return c.loadHistory(ctx, gen, selected.ID)
	})
	g.Go(func() error {
		if err := sock.Connect(ctx); err != nil {
			c.logger.Warn("Room connection failed", "room_id", selected.ID, "error", err)
		}
		// A selection made while dialing already released this socket, but
		// the dial may have completed afterwards.
		c.mu.Lock()
		stale := c.gen != gen || c.socket != sock
		c.mu.Unlock()
		if stale {
			c.logger.Debug("Closing stale connection", "room_id", selected.ID)
			sock.Disconnect()
			return nil
		}
		c.notify()
		return nil
	})
	return g.Wait()
}

func (c *Controller) loadHistory(ctx context.Context, gen uint64, roomID string) error {
	history, err := c.api.ListMessages(ctx, roomID, api.Page{Limit: c.opts.HistoryLimit})

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale history", "room_id", roomID)
		return nil
	}
	c.loading = false
	if err != nil {
		c.err = fmt.Errorf("load history: %w", err)
		err = c.err
		c.mu.Unlock()
		c.logger.Warn("History fetch failed", "room_id", roomID, "error", err)
		c.notify()
		return err
	}

	// Entries that arrived while loading stay after the history, unless the
	// history already contains them.
	live := c.messages
	c.messages = make([]models.Message, 0, len(history)+len(live))
	for _, m := range history {
		m.Status = models.StatusConfirmed
		c.messages = append(c.messages, m)
	}
	for _, m := range live {
		known := lo.ContainsBy(history, func(h models.Message) bool {
			return h.ID == m.ID || (m.ClientMessageID != "" && h.ClientMessageID == m.ClientMessageID)
		})
		if !known {
			c.messages = append(c.messages, m)
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// SendMessage appends a provisional message to the log before any network
// activity, then transmits it over the socket, or over HTTP when the socket
// is not open. A failed transmission leaves the message in the log marked
// failed; Retry and Discard resolve it.
func (c *Controller) SendMessage(ctx context.Context, content string) (models.Message, error) {
	content = strings.TrimSpace(content)

	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return models.Message{}, ErrNoRoomSelected
	}
	if content == "" {
		c.mu.Unlock()
		return models.Message{}, ErrEmptyContent
	}
	correlation := uuid.NewString()
	self := c.opts.Self
	msg := models.Message{
		ID:              models.ProvisionalPrefix + correlation,
		RoomID:          c.room.ID,
		Sender:          &self,
		Content:         content,
		ClientMessageID: correlation,
		CreatedAt:       c.opts.Now(),
		Status:          models.StatusPending,
	}
	c.messages = append(c.messages, msg)
	gen, sock := c.gen, c.socket
	c.mu.Unlock()
	c.notify()

	return msg, c.transmit(ctx, gen, sock, msg)
}

// Retry re-sends a failed provisional message.
func (c *Controller) Retry(ctx context.Context, provisionalID string) error {
	c.mu.Lock()
	idx := c.failedIndexLocked(provisionalID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrMessageNotFound
	}
	c.messages[idx].Status = models.StatusPending
	msg := c.messages[idx]
	c.err = nil
	gen, sock := c.gen, c.socket
	c.mu.Unlock()
	c.notify()

	return c.transmit(ctx, gen, sock, msg)
}

// Discard removes a failed provisional message from the log.
func (c *Controller) Discard(provisionalID string) error {
	c.mu.Lock()
	idx := c.failedIndexLocked(provisionalID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrMessageNotFound
	}
	c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) transmit(ctx context.Context, gen uint64, sock Socket, msg models.Message) error {
	if sock != nil && sock.IsOpen() {
		err := sock.Send(protocol.ActionSendMessage, protocol.SendMessage{
			RoomID:          msg.RoomID,
			Content:         msg.Content,
			ClientMessageID: msg.ClientMessageID,
		})
		if err == nil {
			c.awaitAck(gen, msg.ClientMessageID)
			return nil
		}
		c.logger.Warn("Socket send failed, falling back to HTTP", "room_id", msg.RoomID, "error", err)
	}

	durable, err := c.api.PostMessage(ctx, msg.RoomID, api.PostMessageRequest{
		Content:         msg.Content,
		ClientMessageID: msg.ClientMessageID,
	})
	if err != nil {
		err = fmt.Errorf("send message: %w", err)
		c.fail(gen, msg.ClientMessageID, err)
		return err
	}
	if durable.ClientMessageID == "" {
		durable.ClientMessageID = msg.ClientMessageID
	}
	c.reconcile(gen, durable)
	return nil
}

func (c *Controller) fail(gen uint64, correlation string, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	for i := range c.messages {
		if c.messages[i].ClientMessageID == correlation && c.messages[i].IsProvisional() {
			c.messages[i].Status = models.StatusFailed
		}
	}
	c.err = cause
	c.mu.Unlock()
	c.logger.Warn("Message not delivered", "error", cause)
	c.notify()
}

// awaitAck fails the message if no echo has confirmed it once the
// acknowledgement timeout elapses.
func (c *Controller) awaitAck(gen uint64, correlation string) {
	time.AfterFunc(c.opts.AckTimeout, func() {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		expired := false
		for i := range c.messages {
			m := &c.messages[i]
			if m.ClientMessageID == correlation && m.IsProvisional() && m.Status == models.StatusPending {
				m.Status = models.StatusFailed
				expired = true
			}
		}
		if expired {
			c.err = ErrAckTimeout
		}
		c.mu.Unlock()
		if expired {
			c.logger.Warn("Message not acknowledged", "client_message_id", correlation, "timeout", c.opts.AckTimeout)
			c.notify()
		}
	})
}

// reconcile merges an authoritative message into the log: it replaces the
// provisional entry with the same correlation id, or an entry with the same
// durable id, and is appended otherwise.
func (c *Controller) reconcile(gen uint64, m models.Message) {
	c.mu.Lock()
	if c.gen != gen || c.room == nil {
		c.mu.Unlock()
		return
	}
	if m.RoomID != "" && m.RoomID != c.room.ID {
		c.mu.Unlock()
		c.logger.Debug("Ignoring message for another room", "room_id", m.RoomID)
		return
	}
	m.Status = models.StatusConfirmed
	if idx := c.indexOfLocked(m); idx >= 0 {
		c.messages[idx] = m
	} else {
		c.messages = append(c.messages, m)
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) presence(gen uint64, p models.Presence) {
	c.mu.Lock()
	current := c.gen == gen
	c.mu.Unlock()
	if !current {
		return
	}
	c.logger.Info("User joined", "room_id", p.RoomID, "user", p.User.Username)
	if c.opts.OnPresence != nil {
		c.opts.OnPresence(p)
	}
}

// indexOfLocked finds the entry m stands for: the same durable id, or the
// provisional entry carrying m's correlation id.
func (c *Controller) indexOfLocked(m models.Message) int {
	for i, existing := range c.messages {
		if m.ID != "" && existing.ID == m.ID {
			return i
		}
		if m.ClientMessageID != "" && existing.ClientMessageID == m.ClientMessageID && existing.IsProvisional() {
			return i
		}
	}
	return -1
}

func (c *Controller) failedIndexLocked(id string) int {
	for i, m := range c.messages {
		if m.ID == id && m.IsProvisional() && m.Status == models.StatusFailed {
			return i
		}
	}
	return -1
}

// Close deselects the room and releases its connection.
func (c *Controller) Close() {
	_ = c.SelectRoom(context.Background(), nil)
}

func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages...)
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    c.stateLocked(),
		Messages: append([]models.Message(nil), c.messages...),
		Err:      c.err,
	}
	if c.room != nil {
		room := *c.room
		snap.Room = &room
	}
	return snap
}

func (c *Controller) stateLocked() State {
	switch {
	case c.switching:
		return StateSwitching
	case c.room == nil:
		return StateIdle
	case c.loading || c.socket == nil || !c.socket.IsOpen():
		return StateLoading
	default:
		return StateLive
	}
}

func (c *Controller) notify() {
	if c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(c.Snapshot())
}
