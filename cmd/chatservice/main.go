package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"Seshat/internal/chatservice"
	"Seshat/internal/config"
	"Seshat/internal/storage"
)

var serverLogger = slog.With("component", "grpc-server")

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	var cfg config.ChatService
	if err := config.Load(&cfg, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.SetupLogger(cfg.LogLevel)
	serverLogger = slog.With("component", "grpc-server")

	serverLogger.Info("Starting Chat Service gRPC Server")

	var store storage.MessageStore
	if cfg.DBConn == "" {
		serverLogger.Warn("SESHAT_DB_CONN not set, keeping messages in memory")
		store = storage.NewMemory()
	} else {
		pg, err := storage.NewStorage(cfg.DBConn)
		if err != nil {
			serverLogger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(context.Background()); err != nil {
			serverLogger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		store = pg
		serverLogger.Info("Database connection established")
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(chatservice.LoggingInterceptor),
	)
	chatservice.RegisterChatServiceServer(grpcServer, chatservice.NewChatService(store))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(chatservice.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		serverLogger.Error("Failed to listen", "address", cfg.Addr, "error", err)
		os.Exit(1)
	}
	serverLogger.Info("gRPC server is listening", "address", lis.Addr())

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			serverLogger.Error("gRPC server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	serverLogger.Info("Shutdown signal received")
	healthSrv.Shutdown()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		serverLogger.Info("gRPC server stopped gracefully")
	case <-shutdownTimer.C:
		serverLogger.Warn("Force stopping gRPC server")
		grpcServer.Stop()
	}

	serverLogger.Info("Chat Service shutdown complete")
}
