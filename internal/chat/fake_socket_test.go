package chat

import (
	"context"
	"errors"
	"sync"

	"Seshat/internal/models"
	"Seshat/internal/protocol"
)

var errNotOpen = errors.New("fake socket not open")

type sentFrame struct {
	Action  protocol.Action
	Payload any
}

type fakeSocket struct {
	room       models.Room
	net        *fakeNetwork
	connectErr error
	onSend     func(sentFrame)

	mu          sync.Mutex
	open        bool
	connects    int
	disconnects int
	sent        []sentFrame
	handlers    map[protocol.Action]protocol.Handler
}

// fakeNetwork hands out sockets and checks that no two are open at once.
type fakeNetwork struct {
	mu         sync.Mutex
	sockets    []*fakeSocket
	connectErr error
	overlap    bool

	// beforeConnect runs at the start of every Connect call.
	beforeConnect func(room models.Room)
}

func (n *fakeNetwork) dial(room models.Room) Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := &fakeSocket{room: room, net: n, connectErr: n.connectErr, handlers: map[protocol.Action]protocol.Handler{}}
	n.sockets = append(n.sockets, s)
	return s
}

func (n *fakeNetwork) last() *fakeSocket {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sockets[len(n.sockets)-1]
}

func (n *fakeNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sockets)
}

func (n *fakeNetwork) openCount() int {
	n.mu.Lock()
	sockets := append([]*fakeSocket(nil), n.sockets...)
	n.mu.Unlock()
	count := 0
	for _, s := range sockets {
		if s.IsOpen() {
			count++
		}
	}
	return count
}

func (s *fakeSocket) Connect(context.Context) error {
	if s.net.beforeConnect != nil {
		s.net.beforeConnect(s.room)
	}
	if s.net.openCount() > 0 {
		s.net.mu.Lock()
		s.net.overlap = true
		s.net.mu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	s.connects++
	if s.connectErr != nil {
		return s.connectErr
	}
	s.open = true
	s.sent = append(s.sent, sentFrame{protocol.ActionJoin, protocol.Join{RoomID: s.room.ID}})
	return nil
}

func (s *fakeSocket) Send(action protocol.Action, payload any) error {
	f := sentFrame{action, payload}
	if s.onSend != nil {
		s.onSend(f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errNotOpen
	}
	s.sent = append(s.sent, f)
	return nil
}

func (s *fakeSocket) On(action protocol.Action, h protocol.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = h
}

func (s *fakeSocket) Off(action protocol.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, action)
}

func (s *fakeSocket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	s.open = false
}

func (s *fakeSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSocket) frames() []sentFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentFrame(nil), s.sent...)
}

// deliver simulates an inbound frame.
func (s *fakeSocket) deliver(ev protocol.Event) {
	s.mu.Lock()
	h, ok := s.handlers[ev.Action()]
	if !ok {
		h, ok = s.handlers[protocol.ActionAny]
	}
	s.mu.Unlock()
	if ok {
		h(ev)
	}
}
