// Command client is a terminal front end for rooms, chat and boards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Seshat/internal/api"
	"Seshat/internal/auth"
	"Seshat/internal/config"
	"Seshat/internal/models"
	"Seshat/internal/transport"

	"github.com/gookit/color"
)

const usage = `usage: client [-env file] <command> [args]

commands:
  token set <token>      store the capability token
  token show             print the stored token
  token clear            remove every stored token
  rooms                  list rooms
  rooms create <name>    create a public room
  chat <room-id>         join a room and chat (/retry ID, /discard ID, /quit)
  board <board-id>       open a board (type "help" inside)
  board new <name>       create a board and open it`

// app carries what every command needs.
type app struct {
	cfg    config.Client
	page   *url.URL
	tokens *auth.BadgerStore
	api    *api.Client
	logger *slog.Logger
}

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg config.Client
	if err := config.Load(&cfg, *envFile); err != nil {
		color.Error.Println(err)
		os.Exit(2)
	}
	logger := config.SetupLogger(cfg.LogLevel)

	a, err := newApp(cfg, logger)
	if err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
	defer a.tokens.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.dispatch(ctx, flag.Args()); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

func newApp(cfg config.Client, logger *slog.Logger) (*app, error) {
	page, err := url.Parse(cfg.PageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	tokens, err := auth.OpenBadgerStore(cfg.TokenDB)
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(page.String(), auth.NewChainSource(tokens), &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		tokens.Close()
		return nil, err
	}
	return &app{cfg: cfg, page: page, tokens: tokens, api: client, logger: logger}, nil
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "token":
		return a.tokenCommand(args[1:])
	case "rooms":
		return a.roomsCommand(ctx, args[1:])
	case "chat":
		if len(args) != 2 {
			return errors.New("usage: chat <room-id>")
		}
		return a.chat(ctx, args[1])
	case "board":
		if len(args) == 3 && args[1] == "new" {
			return a.board(ctx, "", args[2])
		}
		if len(args) != 2 {
			return errors.New("usage: board <board-id> | board new <name>")
		}
		return a.board(ctx, args[1], "")
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func (a *app) tokenCommand(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: token set <token> | token show | token clear")
	}
	switch args[0] {
	case "set":
		if len(args) != 2 {
			return errors.New("usage: token set <token>")
		}
		return a.tokens.Set(auth.LegacyTokenKeys[0], args[1])
	case "show":
		token, err := auth.NewChainSource(a.tokens).Token()
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	case "clear":
		for _, key := range auth.LegacyTokenKeys {
			if err := a.tokens.Delete(key); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown token command %q", args[0])
	}
}

func (a *app) self() models.User {
	name := a.cfg.Username
	if name == "" {
		name = a.cfg.UserID
	}
	return models.User{ID: a.cfg.UserID, Username: name}
}

func (a *app) socket(ch transport.Channel) *transport.Socket {
	return transport.New(ch, transport.Options{
		PageURL: a.page,
		Host:    a.cfg.SocketHost,
		Tokens:  auth.NewChainSource(a.tokens),
		Reconnect: transport.ReconnectPolicy{
			MaxRetries:      uint(a.cfg.ReconnectRetries),
			InitialInterval: a.cfg.ReconnectInitial,
			MaxInterval:     a.cfg.ReconnectMaxPeriod,
		},
		Logger: a.logger.With("component", "socket"),
		OnStateChange: func(s transport.State) {
			color.Comment.Printf("[connection %s]\n", s)
		},
	})
}
