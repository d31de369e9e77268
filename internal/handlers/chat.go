package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Seshat/internal/auth"
	"Seshat/internal/models"
	"Seshat/internal/protocol"
	"Seshat/internal/storage"
	"Seshat/internal/transport"
	wsHub "Seshat/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var chatLogger = slog.With("component", "chat")

const persistTimeout = 5 * time.Second

var errUnauthorized = errors.New("missing or invalid token")

// ChatHandler serves the relay: websocket channels for rooms and boards
// plus the REST endpoints clients use for history and documents.
type ChatHandler struct {
	Hub      *wsHub.Hub
	Store    storage.Store
	Messages storage.MessageStore
	Tokens   *auth.Issuer

	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewChatHandler wires the handler. messages may be nil to persist chat
// traffic in store; tokens may be nil to accept anonymous connections.
func NewChatHandler(hub *wsHub.Hub, store storage.Store, messages storage.MessageStore, tokens *auth.Issuer) *ChatHandler {
	if messages == nil {
		messages = store
	}
	return &ChatHandler{
		Hub:      hub,
		Store:    store,
		Messages: messages,
		Tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Routes returns the relay's mux.
func (ch *ChatHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{kind}/{id}", ch.ServeWS)
	mux.HandleFunc("GET /api/rooms", ch.listRooms)
	mux.HandleFunc("POST /api/rooms", ch.createRoom)
	mux.HandleFunc("GET /api/rooms/{id}/messages", ch.listMessages)
	mux.HandleFunc("POST /api/rooms/{id}/messages", ch.postMessage)
	mux.HandleFunc("POST /api/boards", ch.createBoard)
	mux.HandleFunc("GET /api/boards/{id}", ch.getBoard)
	mux.HandleFunc("PATCH /api/boards/{id}", ch.saveBoard)
	mux.HandleFunc("GET /health", ch.Health)
	return mux
}

// authenticate resolves the caller from the token query parameter or a
// bearer header. Without an issuer every caller is an anonymous user named
// by the username query parameter.
func (ch *ChatHandler) authenticate(r *http.Request) (models.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if ch.Tokens == nil {
		name := r.URL.Query().Get("username")
		if name == "" {
			name = "anonymous"
		}
		return models.User{ID: "anon-" + uuid.NewString(), Username: name}, nil
	}
	if token == "" {
		return models.User{}, errUnauthorized
	}
	user, err := ch.Tokens.Verify(token)
	if err != nil {
		return models.User{}, errUnauthorized
	}
	return user, nil
}

// ServeWS upgrades a request on /ws/{kind}/{id} and attaches the client to
// that channel.
func (ch *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	channel := transport.Channel{Kind: transport.Kind(r.PathValue("kind")), ID: r.PathValue("id")}
	if channel.Kind != transport.KindRoom && channel.Kind != transport.KindBoard {
		writeError(w, http.StatusNotFound, "unknown channel kind")
		return
	}

	user, err := ch.authenticate(r)
	if err != nil {
		chatLogger.Warn("WebSocket connection rejected", "channel", channel, "remote", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	chatLogger.Info("WebSocket connection attempt",
		"user_id", user.ID,
		"channel", channel,
		"origin", r.Header.Get("Origin"),
		"remote", r.RemoteAddr)

	conn, err := ch.upgrader.Upgrade(w, r, nil)
	if err != nil {
		chatLogger.Error("Error WebSocket upgrade", "error", err)
		return
	}

	client := wsHub.NewClient(ch.Hub, conn, user, channel.String(), ch.relay)
	go client.Serve()
}

// relay applies the fan-out rules to one inbound frame.
func (ch *ChatHandler) relay(c *wsHub.Client, ev protocol.Event) {
	kind, id, _ := strings.Cut(c.Channel, "/")
	log := chatLogger.With("user_id", c.User.ID, "channel", c.Channel, "action", ev.Action())

	var err error
	switch e := ev.(type) {
	case protocol.Join:
		presence := models.Presence{RoomID: id, User: c.User, At: time.Now().UTC()}
		err = ch.Hub.Broadcast(c.Channel, protocol.ActionUserJoined, presence, c)

	case protocol.SendMessage:
		if transport.Kind(kind) != transport.KindRoom {
			log.Warn("Message sent outside a room")
			return
		}
		if strings.TrimSpace(e.Content) == "" {
			log.Warn("Dropping empty message")
			return
		}
		sender := c.User
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		msg, saveErr := ch.Messages.SaveMessage(ctx, models.Message{
			RoomID:          id,
			Sender:          &sender,
			Content:         e.Content,
			ClientMessageID: e.ClientMessageID,
		})
		if saveErr != nil {
			log.Error("Failed to persist message", "error", saveErr)
			return
		}
		err = ch.Hub.Broadcast(c.Channel, protocol.ActionNewMessage, msg, nil)

	case protocol.AppendShape:
		if transport.Kind(kind) != transport.KindBoard {
			log.Warn("Shape sent outside a board")
			return
		}
		err = ch.Hub.Broadcast(c.Channel, protocol.ActionAppendShape, e.Shape, c)

	case protocol.UpdateShape:
		if transport.Kind(kind) != transport.KindBoard {
			log.Warn("Shape sent outside a board")
			return
		}
		err = ch.Hub.Broadcast(c.Channel, protocol.ActionUpdateShape, e, c)

	default:
		log.Debug("Ignoring action")
		return
	}
	if err != nil {
		log.Error("Broadcast failed", "error", err)
	}
}
