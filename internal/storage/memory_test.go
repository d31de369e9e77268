package storage

import (
	"context"
	"fmt"
	"testing"

	"Seshat/internal/models"

	"github.com/stretchr/testify/require"
)

func seedMessages(t *testing.T, s MessageStore, roomID string, n int) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg, err := s.SaveMessage(context.Background(), models.Message{
			RoomID:  roomID,
			Sender:  &models.User{ID: "u1", Username: "ana"},
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func TestMemory_SaveAssignsIdentity(t *testing.T) {
	req := require.New(t)
	store := NewMemory()

	msg, err := store.SaveMessage(context.Background(), models.Message{RoomID: "r1", Content: "hi"})
	req.NoError(err)
	req.NotEmpty(msg.ID)
	req.False(msg.CreatedAt.IsZero())
}

func TestMemory_SaveIsIdempotentOnClientID(t *testing.T) {
	req := require.New(t)
	store := NewMemory()
	ctx := context.Background()

	first, err := store.SaveMessage(ctx, models.Message{RoomID: "r1", Content: "hi", ClientMessageID: "c1"})
	req.NoError(err)
	second, err := store.SaveMessage(ctx, models.Message{RoomID: "r1", Content: "hi", ClientMessageID: "c1"})
	req.NoError(err)
	req.Equal(first.ID, second.ID)

	other, err := store.SaveMessage(ctx, models.Message{RoomID: "r2", Content: "hi", ClientMessageID: "c1"})
	req.NoError(err)
	req.NotEqual(first.ID, other.ID)

	history, err := store.ListMessages(ctx, "r1", 10, "")
	req.NoError(err)
	req.Len(history, 1)
}

func TestMemory_ListMessagesPages(t *testing.T) {
	req := require.New(t)
	store := NewMemory()
	ctx := context.Background()
	all := seedMessages(t, store, "r1", 5)

	latest, err := store.ListMessages(ctx, "r1", 2, "")
	req.NoError(err)
	req.Equal([]models.Message{all[3], all[4]}, latest)

	older, err := store.ListMessages(ctx, "r1", 2, latest[0].ID)
	req.NoError(err)
	req.Equal([]models.Message{all[1], all[2]}, older)

	oldest, err := store.ListMessages(ctx, "r1", 2, all[1].ID)
	req.NoError(err)
	req.Equal([]models.Message{all[0]}, oldest)

	_, err = store.ListMessages(ctx, "r1", 2, "nope")
	req.ErrorIs(err, ErrNotFound)

	empty, err := store.ListMessages(ctx, "unknown", 0, "")
	req.NoError(err)
	req.Empty(empty)
}

func TestMemory_Rooms(t *testing.T) {
	req := require.New(t)
	store := NewMemory()
	ctx := context.Background()

	room, err := store.CreateRoom(ctx, models.Room{Name: "general", Kind: models.RoomPublic})
	req.NoError(err)
	req.NotEmpty(room.ID)

	_, err = store.CreateRoom(ctx, models.Room{ID: room.ID, Name: "again"})
	req.ErrorIs(err, ErrConflict)

	rooms, err := store.ListRooms(ctx)
	req.NoError(err)
	req.Equal([]models.Room{room}, rooms)
}

func TestMemory_Boards(t *testing.T) {
	req := require.New(t)
	store := NewMemory()
	ctx := context.Background()

	_, err := store.GetBoard(ctx, "missing")
	req.ErrorIs(err, ErrNotFound)

	doc, err := store.CreateBoard(ctx, "sprint")
	req.NoError(err)
	req.Equal("sprint", doc.Name)
	req.Empty(doc.Shapes)

	doc.Shapes = append(doc.Shapes, models.Shape{ID: "s1", Type: models.ShapeSticky})
	_, err = store.SaveBoard(ctx, doc)
	req.NoError(err)

	doc.Shapes[0].X = 99
	got, err := store.GetBoard(ctx, doc.ID)
	req.NoError(err)
	req.Equal(0.0, got.Shapes[0].X)

	upserted, err := store.SaveBoard(ctx, models.Document{ID: "fresh"})
	req.NoError(err)
	req.Equal("fresh", upserted.ID)
}
