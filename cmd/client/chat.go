package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"Seshat/internal/chat"
	"Seshat/internal/models"
	"Seshat/internal/rooms"
	"Seshat/internal/transport"

	"github.com/gookit/color"
)

func (a *app) chat(ctx context.Context, roomID string) error {
	dir := rooms.NewDirectory(a.api)
	if _, err := dir.Refresh(ctx); err != nil {
		return err
	}
	room, ok := dir.Lookup(roomID)
	if !ok {
		return fmt.Errorf("room %s not found", roomID)
	}

	printer := &logPrinter{seen: make(map[string]models.DeliveryStatus)}
	ctrl := chat.NewController(a.api, func(r models.Room) chat.Socket {
		return a.socket(transport.Channel{Kind: transport.KindRoom, ID: r.ID})
	}, chat.Options{
		Self:         a.self(),
		HistoryLimit: a.cfg.HistoryLimit,
		AckTimeout:   a.cfg.AckTimeout,
		Logger:       a.logger.With("component", "chat"),
		OnChange:     func(s chat.Snapshot) { printer.print(s.Messages) },
		OnPresence: func(p models.Presence) {
			color.Comment.Printf("* %s joined\n", p.User.Username)
		},
	})
	defer ctrl.Close()

	if err := ctrl.SelectRoom(ctx, &room); err != nil {
		color.Warn.Println(err)
	}
	color.Info.Printf("Joined %s. Type a message, /retry ID, /discard ID or /quit.\n", room.Name)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleChatLine(ctx, ctrl, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				color.Warn.Println(err)
			}
		}
	}
}

var errQuit = errors.New("quit")

func handleChatLine(ctx context.Context, ctrl *chat.Controller, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
		return nil
	case "/quit":
		return errQuit
	case "/retry":
		return ctrl.Retry(ctx, arg)
	case "/discard":
		return ctrl.Discard(arg)
	default:
		_, err := ctrl.SendMessage(ctx, line)
		if errors.Is(err, chat.ErrEmptyContent) {
			return nil
		}
		return err
	}
}

// logPrinter prints each message once per status it reaches.
type logPrinter struct {
	mu   sync.Mutex
	seen map[string]models.DeliveryStatus
}

func (p *logPrinter) print(messages []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		if p.seen[m.ID] == m.Status {
			continue
		}
		p.seen[m.ID] = m.Status
		fmt.Println(formatMessage(m))
	}
}

func formatMessage(m models.Message) string {
	who := "system"
	if m.Sender != nil {
		who = m.Sender.Username
	}
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), who, m.Content)
	switch m.Status {
	case models.StatusPending:
		return color.Gray.Sprint(line + " (sending)")
	case models.StatusFailed:
		return color.Red.Sprintf("%s (failed, /retry %s)", line, m.ID)
	default:
		return line
	}
}
