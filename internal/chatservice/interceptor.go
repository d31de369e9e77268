package chatservice

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// LoggingInterceptor logs every unary call with its duration.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	serviceLogger.Debug("gRPC request started", "method", info.FullMethod)

	resp, err := handler(ctx, req)

	duration := time.Since(start)
	if err != nil {
		serviceLogger.Error("gRPC request failed",
			"method", info.FullMethod,
			"duration", duration,
			"error", err)
	} else {
		serviceLogger.Info("gRPC request completed",
			"method", info.FullMethod,
			"duration", duration)
	}
	return resp, err
}
