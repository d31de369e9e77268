// Package transport owns the single real-time connection of a channel:
// dialing, the join handshake, framing, keepalive and reconnection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"Seshat/internal/auth"
	"Seshat/internal/protocol"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxFrameSize = 1 << 20
)

var (
	ErrNotConnected = errors.New("socket not connected")
	ErrDisconnected = errors.New("socket disconnected while connecting")
)

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// ReconnectPolicy bounds automatic redials after an unexpected drop.
// MaxRetries of zero disables reconnection.
type ReconnectPolicy struct {
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Options struct {
	// PageURL is the address of the hosting page; its scheme and host are
	// mirrored by the socket endpoint.
	PageURL       *url.URL
	Host          string
	Tokens        auth.TokenSource
	Dialer        *websocket.Dialer
	Reconnect     ReconnectPolicy
	Router        *protocol.Router
	Logger        *slog.Logger
	OnStateChange func(State)
}

// Socket manages exactly one connection to a single channel.
type Socket struct {
	channel Channel
	opts    Options
	router  *protocol.Router
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	// gen changes on every Disconnect so late dials and pending
	// reconnects can tell they are stale.
	gen             uint64
	cancelReconnect context.CancelFunc

	writeMu sync.Mutex
}

func New(ch Channel, opts Options) *Socket {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "socket")
	}
	logger = logger.With("channel", ch.String())
	router := opts.Router
	if router == nil {
		router = protocol.NewRouter(logger)
	}
	return &Socket{channel: ch, opts: opts, router: router, logger: logger}
}

func (s *Socket) Channel() Channel { return s.channel }

func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) IsOpen() bool { return s.State() == StateOpen }

func (s *Socket) On(action protocol.Action, h protocol.Handler) { s.router.On(action, h) }

func (s *Socket) Off(action protocol.Action) { s.router.Off(action) }

// Connect opens the connection and sends the join handshake. It is a no-op
// while a connection is open or being opened.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	gen := s.gen
	s.mu.Unlock()
	s.notify(StateConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		reset := s.gen == gen && s.state == StateConnecting
		if reset {
			s.state = StateClosed
		}
		s.mu.Unlock()
		if reset {
			s.notify(StateClosed)
		}
		s.logger.Warn("Connection failed", "error", err)
		return fmt.Errorf("connect %s: %w", s.channel, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrDisconnected
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()
	s.notify(StateOpen)
	s.logger.Info("Connection established")

	done := make(chan struct{})
	go s.readLoop(conn, done)
	go s.pingLoop(conn, done)

	if err := s.Send(protocol.ActionJoin, protocol.Join{RoomID: s.channel.ID}); err != nil {
		s.logger.Warn("Join handshake not sent", "error", err)
	}
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	token := ""
	if s.opts.Tokens != nil {
		t, err := s.opts.Tokens.Token()
		switch {
		case err == nil:
			token = t
		case errors.Is(err, auth.ErrTokenNotFound):
			s.logger.Debug("No capability token stored, connecting without one")
		default:
			return nil, fmt.Errorf("read token: %w", err)
		}
	}
	endpoint, err := Endpoint(s.opts.PageURL, s.opts.Host, s.channel, token)
	if err != nil {
		return nil, err
	}
	conn, _, err := s.opts.Dialer.DialContext(ctx, endpoint, nil)
	return conn, err
}

// Send writes one frame. When the socket is not open the frame is dropped
// with a warning; nothing is queued or retried.
func (s *Socket) Send(action protocol.Action, payload any) error {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()
	if !open || conn == nil {
		s.logger.Warn("Socket not open, dropping frame", "action", action)
		return ErrNotConnected
	}

	data, err := protocol.Encode(action, payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", action, err)
	}
	return nil
}

// Disconnect closes the connection and cancels any pending reconnect. It is
// safe to call on a closed socket.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.gen++
	if s.cancelReconnect != nil {
		s.cancelReconnect()
		s.cancelReconnect = nil
	}
	conn := s.conn
	changed := s.state != StateClosed
	s.conn = nil
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
		s.logger.Info("Connection closed")
	}
	if changed {
		s.notify(StateClosed)
	}
}

func (s *Socket) current(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

func (s *Socket) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.dropped(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !s.current(conn) {
			return
		}
		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			s.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}
		s.router.Dispatch(ev)
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Socket) dropped(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateClosed
	gen := s.gen
	s.mu.Unlock()

	_ = conn.Close()
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Info("Connection closed by peer")
	} else {
		s.logger.Warn("Connection lost", "error", cause)
	}
	s.notify(StateClosed)

	if s.opts.Reconnect.MaxRetries > 0 {
		go s.reconnect(gen)
	}
}

func (s *Socket) reconnect(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.cancelReconnect = cancel
	s.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	if s.opts.Reconnect.InitialInterval > 0 {
		b.InitialInterval = s.opts.Reconnect.InitialInterval
	}
	if s.opts.Reconnect.MaxInterval > 0 {
		b.MaxInterval = s.opts.Reconnect.MaxInterval
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		s.mu.Lock()
		stale := s.gen != gen
		s.mu.Unlock()
		if stale {
			return struct{}{}, backoff.Permanent(ErrDisconnected)
		}
		return struct{}{}, s.Connect(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.opts.Reconnect.MaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Info("Reconnect attempt failed", "error", err, "retry_in", next)
		}),
	)

	s.mu.Lock()
	if s.gen == gen {
		s.cancelReconnect = nil
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, ErrDisconnected) && !errors.Is(err, context.Canceled) {
		s.logger.Error("Giving up reconnecting", "error", err, "max_retries", s.opts.Reconnect.MaxRetries)
	}
}

func (s *Socket) notify(state State) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}
