package storage

import (
	"context"
	"fmt"
	"sync"

	"Seshat/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Memory is a Store kept in process memory. It backs the relay when no
// database is configured.
type Memory struct {
	mu       sync.RWMutex
	rooms    []models.Room
	messages map[string][]models.Message
	boards   map[string]models.Document
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string][]models.Message),
		boards:   make(map[string]models.Document),
	}
}

func (m *Memory) ListRooms(context.Context) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Room{}, m.rooms...), nil
}

func (m *Memory) CreateRoom(_ context.Context, room models.Room) (models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if lo.ContainsBy(m.rooms, func(r models.Room) bool { return r.ID == room.ID }) {
		return models.Room{}, fmt.Errorf("room %s: %w", room.ID, ErrConflict)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now()
	}
	m.rooms = append(m.rooms, room)
	return room, nil
}

func (m *Memory) SaveMessage(_ context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.messages[msg.RoomID]
	if msg.ClientMessageID != "" {
		if existing, ok := lo.Find(history, func(h models.Message) bool {
			return h.ClientMessageID == msg.ClientMessageID
		}); ok {
			return existing, nil
		}
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	msg.Status = ""
	m.messages[msg.RoomID] = append(history, msg)
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, roomID string, limit int, before string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.messages[roomID]
	end := len(history)
	if before != "" {
		_, idx, ok := lo.FindIndexOf(history, func(h models.Message) bool { return h.ID == before })
		if !ok {
			return nil, fmt.Errorf("cursor %s: %w", before, ErrNotFound)
		}
		end = idx
	}
	start := max(0, end-clampLimit(limit))
	return append([]models.Message{}, history[start:end]...), nil
}

func (m *Memory) GetBoard(_ context.Context, id string) (models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.boards[id]
	if !ok {
		return models.Document{}, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	return copyDocument(doc), nil
}

func (m *Memory) SaveBoard(_ context.Context, doc models.Document) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc = copyDocument(doc)
	m.boards[doc.ID] = doc
	return copyDocument(doc), nil
}

func (m *Memory) CreateBoard(ctx context.Context, name string) (models.Document, error) {
	return m.SaveBoard(ctx, models.Document{ID: uuid.NewString(), Name: name})
}

func (m *Memory) Close() error {
	return nil
}

func copyDocument(doc models.Document) models.Document {
	doc.Shapes = append([]models.Shape{}, doc.Shapes...)
	return doc
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Storage)(nil)
)
