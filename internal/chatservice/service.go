package chatservice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"Seshat/internal/models"
	"Seshat/internal/storage"
)

var serviceLogger = slog.With("component", "chatservice")

// ChatService persists chat messages on behalf of relays.
type ChatService struct {
	store storage.MessageStore
}

func NewChatService(store storage.MessageStore) *ChatService {
	serviceLogger.Info("Creating new ChatService instance")
	return &ChatService{store: store}
}

func (s *ChatService) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	serviceLogger.Info("Received SendMessage request",
		"room_id", req.RoomID,
		"client_message_id", req.ClientMessageID,
		"content_length", len(req.Content))

	if req.Sender == nil || req.Sender.ID == "" {
		serviceLogger.Warn("SendMessage: missing sender")
		return nil, status.Error(codes.InvalidArgument, "sender is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		serviceLogger.Warn("SendMessage: empty content")
		return nil, status.Error(codes.InvalidArgument, "content is required")
	}
	if utf8.RuneCountInString(req.Content) > MaxContentLength {
		serviceLogger.Warn("SendMessage: message too long", "length", len(req.Content))
		return nil, status.Errorf(codes.InvalidArgument, "message too long (max %d characters)", MaxContentLength)
	}
	if req.RoomID == "" {
		req.RoomID = DefaultRoomID
		serviceLogger.Info("SendMessage: using default room", "room_id", req.RoomID)
	}

	msg, err := s.store.SaveMessage(ctx, models.Message{
		RoomID:          req.RoomID,
		Sender:          req.Sender,
		Content:         req.Content,
		Metadata:        req.Metadata,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		serviceLogger.Error("Failed to save message",
			"error", err,
			"sender_id", req.Sender.ID,
			"room_id", req.RoomID)
		return nil, status.Error(codes.Internal, "database error")
	}

	serviceLogger.Info("Message saved successfully", "message_id", msg.ID, "room_id", msg.RoomID)
	return &SendMessageResponse{Message: msg}, nil
}

func (s *ChatService) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	if req.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	messages, err := s.store.ListMessages(ctx, req.RoomID, req.Limit, req.Before)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, status.Errorf(codes.NotFound, "cursor %s not found", req.Before)
	case err != nil:
		serviceLogger.Error("Failed to list messages", "error", err, "room_id", req.RoomID)
		return nil, status.Error(codes.Internal, "database error")
	}
	return &ListMessagesResponse{Messages: messages}, nil
}
