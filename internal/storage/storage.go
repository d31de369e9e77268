// Package storage persists rooms, messages and boards for the relay server.
package storage

//go:generate go run go.uber.org/mock/mockgen -source=storage.go -destination=../mocks/mock_message_store.go -package=mocks -exclude_interfaces=RoomStore,BoardStore,Store

import (
	"context"
	"errors"
	"time"

	"Seshat/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// MessageStore is the part of the store the relay needs to persist chat
// traffic. It is also served remotely by the chat service.
type MessageStore interface {
	// SaveMessage assigns an id and creation time when missing. Saving a
	// message whose client_message_id is already known in the room returns
	// the stored message unchanged.
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
	// ListMessages returns at most limit messages, oldest first, created
	// before the message with id before (or the newest when before is empty).
	ListMessages(ctx context.Context, roomID string, limit int, before string) ([]models.Message, error)
}

type RoomStore interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	CreateRoom(ctx context.Context, room models.Room) (models.Room, error)
}

type BoardStore interface {
	GetBoard(ctx context.Context, id string) (models.Document, error)
	// SaveBoard creates the board when it does not exist yet.
	SaveBoard(ctx context.Context, doc models.Document) (models.Document, error)
	CreateBoard(ctx context.Context, name string) (models.Document, error)
}

type Store interface {
	MessageStore
	RoomStore
	BoardStore
	Close() error
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
