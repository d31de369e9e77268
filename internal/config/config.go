// Package config loads the environment of the three binaries.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Server struct {
	Addr            string        `env:"SERVER_ADDR,default=0.0.0.0:8443" validate:"required,hostname_port"`
	TLSCertFile     string        `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile      string        `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`
	RedirectAddr    string        `env:"REDIRECT_ADDR" validate:"omitempty,hostname_port"`
	DBConn          string        `env:"SESHAT_DB_CONN"`
	ChatServiceAddr string        `env:"CHAT_SERVICE_ADDR"`
	JWTSecret       string        `env:"JWT_SECRET" validate:"omitempty,min=16"`
	TokenTTL        time.Duration `env:"TOKEN_TTL,default=24h" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

// TLS reports whether the server should serve HTTPS.
func (s Server) TLS() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

type ChatService struct {
	Addr     string `env:"GRPC_ADDR,default=:9090" validate:"required"`
	DBConn   string `env:"SESHAT_DB_CONN"`
	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

type Client struct {
	PageURL            string        `env:"SESHAT_PAGE_URL,default=http://localhost:8443" validate:"required,url"`
	SocketHost         string        `env:"SESHAT_SOCKET_HOST" validate:"omitempty,hostname_port"`
	TokenDB            string        `env:"SESHAT_TOKEN_DB"`
	UserID             string        `env:"SESHAT_USER_ID"`
	Username           string        `env:"SESHAT_USERNAME"`
	HistoryLimit       int           `env:"HISTORY_LIMIT,default=50" validate:"gt=0,lte=200"`
	AckTimeout         time.Duration `env:"ACK_TIMEOUT,default=10s" validate:"gt=0"`
	ReconnectRetries   int           `env:"RECONNECT_MAX_RETRIES,default=5" validate:"gte=0"`
	ReconnectInitial   time.Duration `env:"RECONNECT_INITIAL,default=500ms" validate:"gt=0"`
	ReconnectMaxPeriod time.Duration `env:"RECONNECT_MAX_INTERVAL,default=30s" validate:"gtefield=ReconnectInitial"`
	LogLevel           string        `env:"LOG_LEVEL,default=warn" validate:"oneof=debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads an optional .env file from one of paths (the working
// directory when none is given), then fills cfg from the environment and
// validates it.
func Load(cfg any, paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		slog.Debug("No .env file, using system environment variables")
	}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs a text handler at the given level as the default
// logger.
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}
