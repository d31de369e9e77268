package grpcclient

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"Seshat/internal/chatservice"
	"Seshat/internal/models"
	"Seshat/internal/storage"

	"github.com/stretchr/testify/require"
)

func startService(t *testing.T) (*ChatClient, *health.Server) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(chatservice.LoggingInterceptor))
	chatservice.RegisterChatServiceServer(srv, chatservice.NewChatService(storage.NewMemory()))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(chatservice.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := NewChatClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, healthSrv
}

func TestChatClient_SaveAndList(t *testing.T) {
	req := require.New(t)
	client, _ := startService(t)
	ctx := context.Background()
	sender := &models.User{ID: "u1", Username: "ana"}

	first, err := client.SaveMessage(ctx, models.Message{RoomID: "r1", Sender: sender, Content: "one", ClientMessageID: "c1"})
	req.NoError(err)
	req.NotEmpty(first.ID)
	req.Equal("c1", first.ClientMessageID)

	again, err := client.SaveMessage(ctx, models.Message{RoomID: "r1", Sender: sender, Content: "one", ClientMessageID: "c1"})
	req.NoError(err)
	req.Equal(first.ID, again.ID)

	second, err := client.SaveMessage(ctx, models.Message{RoomID: "r1", Sender: sender, Content: "two"})
	req.NoError(err)

	history, err := client.ListMessages(ctx, "r1", 10, "")
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(first.ID, history[0].ID)
	req.Equal(second.ID, history[1].ID)
	req.Equal("ana", history[1].Sender.Username)

	older, err := client.ListMessages(ctx, "r1", 10, second.ID)
	req.NoError(err)
	req.Len(older, 1)

	empty, err := client.ListMessages(ctx, "r1", 10, first.ID)
	req.NoError(err)
	req.Empty(empty)
}

func TestChatClient_CursorNotFound(t *testing.T) {
	client, _ := startService(t)
	_, err := client.ListMessages(context.Background(), "r1", 10, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChatClient_DefaultRoom(t *testing.T) {
	req := require.New(t)
	client, _ := startService(t)

	msg, err := client.SaveMessage(context.Background(), models.Message{Sender: &models.User{ID: "u1"}, Content: "hi"})
	req.NoError(err)
	req.Equal(chatservice.DefaultRoomID, msg.RoomID)
}

func TestChatClient_Health(t *testing.T) {
	req := require.New(t)
	client, healthSrv := startService(t)

	req.NoError(client.Health(context.Background()))
	healthSrv.SetServingStatus(chatservice.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	req.Error(client.Health(context.Background()))
}
