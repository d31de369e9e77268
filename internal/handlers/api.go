package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"Seshat/internal/models"
	"Seshat/internal/protocol"
	"Seshat/internal/storage"
	"Seshat/internal/transport"
)

type createRoomRequest struct {
	Name   string          `json:"name" validate:"required,max=100"`
	Kind   models.RoomKind `json:"kind" validate:"omitempty,oneof=public private direct team"`
	TeamID *string         `json:"team_id" validate:"omitempty,min=1"`
}

type postMessageRequest struct {
	Content         string         `json:"content" validate:"required,max=1000"`
	ClientMessageID string         `json:"client_message_id" validate:"omitempty,max=128"`
	Metadata        map[string]any `json:"metadata"`
}

type createBoardRequest struct {
	Name string `json:"name" validate:"max=200"`
}

type saveBoardRequest struct {
	Name   string         `json:"name" validate:"max=200"`
	Shapes []models.Shape `json:"shapes" validate:"dive"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (ch *ChatHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := ch.requireUser(w, r); !ok {
		return
	}
	rooms, err := ch.Store.ListRooms(r.Context())
	if err != nil {
		ch.storageError(w, "list rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (ch *ChatHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.requireUser(w, r)
	if !ok {
		return
	}
	var req createRoomRequest
	if !ch.decode(w, r, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = models.RoomPublic
	}
	room, err := ch.Store.CreateRoom(r.Context(), models.Room{
		Name:      req.Name,
		Kind:      req.Kind,
		TeamID:    req.TeamID,
		CreatedBy: user.ID,
	})
	if err != nil {
		ch.storageError(w, "create room", err)
		return
	}
	chatLogger.Info("Room created", "room_id", room.ID, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, room)
}

func (ch *ChatHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := ch.requireUser(w, r); !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	messages, err := ch.Messages.ListMessages(r.Context(), r.PathValue("id"), limit, r.URL.Query().Get("before"))
	if err != nil {
		ch.storageError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// postMessage persists a message sent over HTTP and relays it to the room
// like a socket-sent one.
func (ch *ChatHandler) postMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.requireUser(w, r)
	if !ok {
		return
	}
	var req postMessageRequest
	if !ch.decode(w, r, &req) {
		return
	}
	roomID := r.PathValue("id")
	msg, err := ch.Messages.SaveMessage(r.Context(), models.Message{
		RoomID:          roomID,
		Sender:          &user,
		Content:         req.Content,
		Metadata:        req.Metadata,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		ch.storageError(w, "post message", err)
		return
	}
	channel := transport.Channel{Kind: transport.KindRoom, ID: roomID}
	if err := ch.Hub.Broadcast(channel.String(), protocol.ActionNewMessage, msg, nil); err != nil {
		chatLogger.Error("Broadcast failed", "channel", channel, "error", err)
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (ch *ChatHandler) createBoard(w http.ResponseWriter, r *http.Request) {
	if _, ok := ch.requireUser(w, r); !ok {
		return
	}
	var req createBoardRequest
	if !ch.decode(w, r, &req) {
		return
	}
	doc, err := ch.Store.CreateBoard(r.Context(), req.Name)
	if err != nil {
		ch.storageError(w, "create board", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (ch *ChatHandler) getBoard(w http.ResponseWriter, r *http.Request) {
	if _, ok := ch.requireUser(w, r); !ok {
		return
	}
	doc, err := ch.Store.GetBoard(r.Context(), r.PathValue("id"))
	if err != nil {
		ch.storageError(w, "get board", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// saveBoard overwrites a board and pushes the new document to everyone
// connected to it.
func (ch *ChatHandler) saveBoard(w http.ResponseWriter, r *http.Request) {
	if _, ok := ch.requireUser(w, r); !ok {
		return
	}
	var req saveBoardRequest
	if !ch.decode(w, r, &req) {
		return
	}
	doc, err := ch.Store.SaveBoard(r.Context(), models.Document{ID: r.PathValue("id"), Name: req.Name, Shapes: req.Shapes})
	if err != nil {
		ch.storageError(w, "save board", err)
		return
	}
	channel := transport.Channel{Kind: transport.KindBoard, ID: doc.ID}
	if err := ch.Hub.Broadcast(channel.String(), protocol.ActionUpdateCanvas, doc, nil); err != nil {
		chatLogger.Error("Broadcast failed", "channel", channel, "error", err)
	}
	writeJSON(w, http.StatusOK, doc)
}

func (ch *ChatHandler) requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := ch.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return models.User{}, false
	}
	return user, true
}

func (ch *ChatHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := ch.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (ch *ChatHandler) storageError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		chatLogger.Error("Storage failure", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		chatLogger.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
