package storage

import (
	"context"
	"os"
	"testing"

	"Seshat/internal/models"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func openPostgres(t *testing.T) *Storage {
	t.Helper()
	_ = godotenv.Load("../../.env")
	connStr := os.Getenv("SESHAT_DB_CONN")
	if connStr == "" {
		t.Skip("SESHAT_DB_CONN is not set")
	}
	store, err := NewStorage(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestPostgres_Messages(t *testing.T) {
	req := require.New(t)
	store := openPostgres(t)
	ctx := context.Background()
	roomID := "test-" + uuid.NewString()

	all := seedMessages(t, store, roomID, 3)
	for _, msg := range all {
		req.NotEmpty(msg.ID)
	}

	latest, err := store.ListMessages(ctx, roomID, 2, "")
	req.NoError(err)
	req.Len(latest, 2)
	req.Equal(all[1].ID, latest[0].ID)
	req.Equal(all[2].ID, latest[1].ID)
	req.Equal("ana", latest[1].Sender.Username)

	older, err := store.ListMessages(ctx, roomID, 2, latest[0].ID)
	req.NoError(err)
	req.Len(older, 1)
	req.Equal(all[0].ID, older[0].ID)

	_, err = store.ListMessages(ctx, roomID, 2, "missing")
	req.ErrorIs(err, ErrNotFound)
}

func TestPostgres_SaveIsIdempotentOnClientID(t *testing.T) {
	req := require.New(t)
	store := openPostgres(t)
	ctx := context.Background()
	roomID := "test-" + uuid.NewString()

	msg := models.Message{RoomID: roomID, Content: "once", ClientMessageID: "c-1", Metadata: map[string]any{"k": "v"}}
	first, err := store.SaveMessage(ctx, msg)
	req.NoError(err)
	second, err := store.SaveMessage(ctx, msg)
	req.NoError(err)
	req.Equal(first.ID, second.ID)
	req.Equal("v", second.Metadata["k"])
}

func TestPostgres_RoomsAndBoards(t *testing.T) {
	req := require.New(t)
	store := openPostgres(t)
	ctx := context.Background()

	room, err := store.CreateRoom(ctx, models.Room{Name: "pg", Kind: models.RoomPublic})
	req.NoError(err)
	_, err = store.CreateRoom(ctx, room)
	req.ErrorIs(err, ErrConflict)

	_, err = store.GetBoard(ctx, uuid.NewString())
	req.ErrorIs(err, ErrNotFound)

	doc, err := store.CreateBoard(ctx, "pg-board")
	req.NoError(err)
	doc.Shapes = []models.Shape{{ID: "s1", Type: models.ShapeRectangle, X: 4}}
	_, err = store.SaveBoard(ctx, doc)
	req.NoError(err)

	got, err := store.GetBoard(ctx, doc.ID)
	req.NoError(err)
	req.Equal(doc, got)
}
