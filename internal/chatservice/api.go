package chatservice

import (
	"context"

	"Seshat/internal/models"

	"google.golang.org/grpc"
)

const (
	ServiceName        = "seshat.chat.v1.ChatService"
	sendMessageMethod  = "/" + ServiceName + "/SendMessage"
	listMessagesMethod = "/" + ServiceName + "/ListMessages"
	DefaultRoomID      = "general"
	MaxContentLength   = 1000
)

type SendMessageRequest struct {
	RoomID          string         `json:"room_id"`
	Sender          *models.User   `json:"sender"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ClientMessageID string         `json:"client_message_id,omitempty"`
}

type SendMessageResponse struct {
	Message models.Message `json:"message"`
}

type ListMessagesRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
	Before string `json:"before,omitempty"`
}

type ListMessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

type ChatServiceServer interface {
	SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error)
	ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error)
}

type ChatServiceClient interface {
	SendMessage(ctx context.Context, req *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error)
	ListMessages(ctx context.Context, req *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc: cc}
}

func (c *chatServiceClient) SendMessage(ctx context.Context, req *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	out := new(SendMessageResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, sendMessageMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) ListMessages(ctx context.Context, req *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	out := new(ListMessagesResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, listMessagesMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func sendMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SendMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).SendMessage(ctx, req.(*SendMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listMessagesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ListMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listMessagesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ListMessages(ctx, req.(*ListMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ChatService_ServiceDesc describes the service for grpc.Server. There is
// no protobuf schema behind it; messages travel with the JSON codec.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: sendMessageHandler},
		{MethodName: "ListMessages", Handler: listMessagesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seshat/chat/v1/chat.json",
}
