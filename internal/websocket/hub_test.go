package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Seshat/internal/models"
	"Seshat/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type relay struct {
	hub    *Hub
	server *httptest.Server
	events chan protocol.Event
}

func newRelay(t *testing.T) *relay {
	t.Helper()
	r := &relay{hub: NewHub(), events: make(chan protocol.Event, 16)}
	go r.hub.Run()

	upgrader := websocket.Upgrader{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		user := models.User{ID: req.URL.Query().Get("user")}
		NewClient(r.hub, conn, user, req.URL.Path, func(c *Client, ev protocol.Event) {
			r.events <- ev
			if ev.Action() == protocol.ActionAppendShape {
				c.Hub.Broadcast(c.Channel, ev.Action(), ev.(protocol.AppendShape).Shape, c)
			}
		}).Serve()
	}))
	t.Cleanup(func() {
		r.server.Close()
		r.hub.Stop()
	})
	return r
}

// dial connects user to path and waits until the hub has registered it.
func (r *relay) dial(t *testing.T, path, user string) *websocket.Conn {
	t.Helper()
	before := r.hub.Count(path)
	u := "ws" + strings.TrimPrefix(r.server.URL, "http") + path + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return r.hub.Count(path) > before }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.DecodeEvent(data)
	require.NoError(t, err)
	return ev
}

func TestHub_BroadcastSkipsSenderAndOtherChannels(t *testing.T) {
	req := require.New(t)
	r := newRelay(t)

	a := r.dial(t, "/boards/b1", "a")
	b := r.dial(t, "/boards/b1", "b")
	other := r.dial(t, "/boards/b2", "c")

	frame, err := protocol.Encode(protocol.ActionAppendShape, models.Shape{ID: "s1", Type: models.ShapeSticky})
	req.NoError(err)
	req.NoError(a.WriteMessage(websocket.TextMessage, frame))

	got := readFrame(t, b)
	req.Equal(protocol.AppendShape{Shape: models.Shape{ID: "s1", Type: models.ShapeSticky}}, got)

	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = a.ReadMessage()
	req.Error(err)
	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = other.ReadMessage()
	req.Error(err)
}

func TestHub_MalformedFrameKeepsConnection(t *testing.T) {
	req := require.New(t)
	r := newRelay(t)
	conn := r.dial(t, "/rooms/r1", "a")

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame, err := protocol.Encode(protocol.ActionJoin, protocol.Join{RoomID: "r1"})
	req.NoError(err)
	req.NoError(conn.WriteMessage(websocket.TextMessage, frame))

	select {
	case ev := <-r.events:
		req.Equal(protocol.Join{RoomID: "r1"}, ev)
	case <-time.After(time.Second):
		t.Fatal("join frame was not handled")
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	req := require.New(t)
	r := newRelay(t)
	conn := r.dial(t, "/rooms/r1", "a")

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	req.Eventually(func() bool { return r.hub.Count("/rooms/r1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	req := require.New(t)
	r := newRelay(t)
	conn := r.dial(t, "/rooms/r1", "a")

	r.hub.Stop()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	req.Error(err)
	req.Equal(0, r.hub.Count("/rooms/r1"))
	r.hub.Stop()
}
