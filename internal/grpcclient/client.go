package grpcclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"Seshat/internal/chatservice"
	"Seshat/internal/models"
	"Seshat/internal/storage"
)

var clientLogger = slog.With("component", "grpc-client")

const (
	callTimeout   = 3 * time.Second
	healthTimeout = 2 * time.Second
)

// ChatClient persists messages through the chat service. It satisfies
// storage.MessageStore so a relay can use it in place of a local store.
type ChatClient struct {
	conn   *grpc.ClientConn
	client chatservice.ChatServiceClient
	health healthpb.HealthClient
}

var _ storage.MessageStore = (*ChatClient)(nil)

// NewChatClient creates a client for the service at address. The
// connection is established lazily on the first call.
func NewChatClient(address string, opts ...grpc.DialOption) (*ChatClient, error) {
	clientLogger.Info("Connecting to Chat Service", "address", address)

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		clientLogger.Error("Failed to connect to Chat Service", "error", err, "address", address)
		return nil, fmt.Errorf("failed to connect to chat service: %w", err)
	}

	return &ChatClient{
		conn:   conn,
		client: chatservice.NewChatServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

func (c *ChatClient) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.SendMessage(ctx, &chatservice.SendMessageRequest{
		RoomID:          msg.RoomID,
		Sender:          msg.Sender,
		Content:         msg.Content,
		Metadata:        msg.Metadata,
		ClientMessageID: msg.ClientMessageID,
	})
	duration := time.Since(start)
	if err != nil {
		clientLogger.Error("gRPC SendMessage failed", "error", err, "duration", duration, "room_id", msg.RoomID)
		return models.Message{}, fmt.Errorf("grpc send message: %w", translate(err))
	}

	clientLogger.Debug("gRPC SendMessage successful", "duration", duration, "message_id", resp.Message.ID)
	return resp.Message, nil
}

func (c *ChatClient) ListMessages(ctx context.Context, roomID string, limit int, before string) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.ListMessages(ctx, &chatservice.ListMessagesRequest{RoomID: roomID, Limit: limit, Before: before})
	if err != nil {
		clientLogger.Error("gRPC ListMessages failed", "error", err, "room_id", roomID)
		return nil, fmt.Errorf("grpc list messages: %w", translate(err))
	}
	if resp.Messages == nil {
		return []models.Message{}, nil
	}
	return resp.Messages, nil
}

// translate maps status codes back onto storage sentinels.
func translate(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, status.Convert(err).Message())
	}
	return err
}

// Health asks the service's health endpoint whether the chat service is
// serving.
func (c *ChatClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: chatservice.ServiceName})
	if err != nil {
		clientLogger.Error("Chat Service health check failed", "error", err)
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("chat service is %s", resp.GetStatus())
	}
	return nil
}

func (c *ChatClient) Close() error {
	if c.conn != nil {
		clientLogger.Info("Closing connection to Chat Service")
		return c.conn.Close()
	}
	return nil
}
