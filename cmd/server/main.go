package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"Seshat/internal/auth"
	"Seshat/internal/config"
	"Seshat/internal/grpcclient"
	"Seshat/internal/handlers"
	"Seshat/internal/models"
	"Seshat/internal/storage"
	"Seshat/internal/websocket"
)

var serverLogger = slog.With("component", "server")

func main() {
	issue := flag.String("issue-token", "", "print a capability token for `user_id:username` and exit")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	var cfg config.Server
	if err := config.Load(&cfg, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.SetupLogger(cfg.LogLevel)
	serverLogger = slog.With("component", "server")

	if *issue != "" {
		if err := issueToken(cfg, *issue); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		serverLogger.Error("Server terminated", "error", err)
		os.Exit(1)
	}
}

func issueToken(cfg config.Server, arg string) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	id, name, ok := strings.Cut(arg, ":")
	if !ok || id == "" {
		return fmt.Errorf("expected user_id:username, got %q", arg)
	}
	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).Issue(models.User{ID: id, Username: name})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg config.Server) error {
	serverLogger.Info("Starting Seshat relay", "dir", getCurrentDir())

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var messages storage.MessageStore
	if cfg.ChatServiceAddr != "" {
		chatClient, err := grpcclient.NewChatClient(cfg.ChatServiceAddr)
		if err != nil {
			return err
		}
		defer chatClient.Close()
		messages = chatClient
		serverLogger.Info("Persisting messages through chat service", "address", cfg.ChatServiceAddr)
	}

	var tokens *auth.Issuer
	if cfg.JWTSecret != "" {
		tokens = auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	} else {
		serverLogger.Warn("JWT_SECRET not set, accepting anonymous connections")
	}

	hub := websocket.NewHub()
	go hub.Run()
	serverLogger.Info("WebSocket Hub started")

	chatHandler := handlers.NewChatHandler(hub, store, messages, tokens)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      chatHandler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	var redirect *http.Server
	if cfg.TLS() {
		if !checkCertificates(cfg.TLSCertFile, cfg.TLSKeyFile) {
			return errors.New("TLS certificates missing or invalid")
		}
		tlsConfig, err := setupTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig
		go func() {
			serverLogger.Info("Server listening", "address", "https://"+cfg.Addr)
			if err := srv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("https server: %w", err)
			}
		}()
		if cfg.RedirectAddr != "" {
			redirect = newRedirectServer(cfg.RedirectAddr, cfg.Addr)
			go func() {
				serverLogger.Info("HTTP redirect server listening", "address", cfg.RedirectAddr)
				if err := redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverLogger.Warn("HTTP redirect server stopped", "error", err)
				}
			}()
		}
	} else {
		go func() {
			serverLogger.Info("Server listening", "address", "http://"+cfg.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		serverLogger.Info("Shutdown signal received")
	case err := <-errCh:
		if redirect != nil {
			_ = redirect.Close()
		}
		hub.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if redirect != nil {
		if err := redirect.Shutdown(shutdownCtx); err != nil {
			serverLogger.Warn("HTTP redirect server shutdown failed", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	hub.Stop()
	serverLogger.Info("Server stopped")
	return nil
}

func openStore(cfg config.Server) (storage.Store, error) {
	if cfg.DBConn == "" {
		serverLogger.Warn("SESHAT_DB_CONN not set, keeping data in memory")
		return storage.NewMemory(), nil
	}
	store, err := storage.NewStorage(cfg.DBConn)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, err
	}
	serverLogger.Info("Database connection established")
	return store, nil
}

// newRedirectServer builds the listener that sends plain HTTP clients to
// the HTTPS one.
func newRedirectServer(addr, tlsAddr string) *http.Server {
	_, port, _ := strings.Cut(tlsAddr, ":")
	return &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, _ := strings.Cut(r.Host, ":")
			target := "https://" + host + ":" + port + r.URL.Path
			if len(r.URL.RawQuery) > 0 {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func getCurrentDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return dir
}

func checkCertificates(certFile, keyFile string) bool {
	if _, err := os.Stat(certFile); os.IsNotExist(err) {
		serverLogger.Error("Certificate not found", "file", certFile)
		return false
	}
	if _, err := os.Stat(keyFile); os.IsNotExist(err) {
		serverLogger.Error("Key not found", "file", keyFile)
		return false
	}
	if _, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
		serverLogger.Error("Failed to load certificate", "error", err)
		return false
	}
	return true
}

func setupTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}, nil
}
