package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"Seshat/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	team_id    TEXT,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	room_id           TEXT NOT NULL,
	sender_id         TEXT,
	sender_name       TEXT,
	content           TEXT NOT NULL,
	metadata          JSONB,
	client_message_id TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS messages_room_client_id ON messages (room_id, client_message_id);
CREATE INDEX IF NOT EXISTS messages_room_created ON messages (room_id, created_at);
CREATE TABLE IF NOT EXISTS boards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	shapes     JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Storage is the Postgres implementation of Store.
type Storage struct {
	db *sql.DB
}

func NewStorage(connStr string) (*Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Storage{db: db}, nil
}

// Migrate creates the tables when they are missing.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, kind, team_id, created_by, created_at FROM rooms ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		var (
			r      models.Room
			teamID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &teamID, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if teamID.Valid {
			r.TeamID = lo.ToPtr(teamID.String)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *Storage) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rooms (id, name, kind, team_id, created_by, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		room.ID, room.Name, room.Kind, room.TeamID, room.CreatedBy, room.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.Room{}, fmt.Errorf("room %s: %w", room.ID, ErrConflict)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (s *Storage) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	var metadata sql.NullString
	if msg.Metadata != nil {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return models.Message{}, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}
	var senderID, senderName sql.NullString
	if msg.Sender != nil {
		senderID = sql.NullString{String: msg.Sender.ID, Valid: true}
		senderName = sql.NullString{String: msg.Sender.Username, Valid: true}
	}
	clientID := sql.NullString{String: msg.ClientMessageID, Valid: msg.ClientMessageID != ""}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, sender_name, content, metadata, client_message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.RoomID, senderID, senderName, msg.Content, metadata, clientID, msg.CreatedAt,
	)
	if isUniqueViolation(err) && clientID.Valid {
		return s.messageByClientID(ctx, msg.RoomID, msg.ClientMessageID)
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

const messageColumns = "id, room_id, sender_id, sender_name, content, metadata, client_message_id, created_at"

func (s *Storage) messageByClientID(ctx context.Context, roomID, clientID string) (models.Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE room_id = $1 AND client_message_id = $2", roomID, clientID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotFound
	}
	return msg, err
}

func (s *Storage) ListMessages(ctx context.Context, roomID string, limit int, before string) ([]models.Message, error) {
	limit = clampLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if before == "" {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+messageColumns+" FROM messages WHERE room_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
			roomID, limit)
	} else {
		var exists bool
		err = s.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM messages WHERE room_id = $1 AND id = $2)", roomID, before).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("lookup cursor: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("cursor %s: %w", before, ErrNotFound)
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+messageColumns+` FROM messages
			 WHERE room_id = $1 AND created_at < (SELECT created_at FROM messages WHERE id = $2)
			 ORDER BY created_at DESC, id DESC LIMIT $3`,
			roomID, before, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return lo.Reverse(messages), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (models.Message, error) {
	var (
		msg                            models.Message
		senderID, senderName, clientID sql.NullString
		metadata                       []byte
	)
	err := row.Scan(&msg.ID, &msg.RoomID, &senderID, &senderName, &msg.Content, &metadata, &clientID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	if senderID.Valid {
		msg.Sender = &models.User{ID: senderID.String, Username: senderName.String}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return models.Message{}, fmt.Errorf("decode metadata of %s: %w", msg.ID, err)
		}
	}
	msg.ClientMessageID = clientID.String
	return msg, nil
}

func (s *Storage) GetBoard(ctx context.Context, id string) (models.Document, error) {
	var (
		doc    = models.Document{ID: id}
		shapes []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT name, shapes FROM boards WHERE id = $1", id).Scan(&doc.Name, &shapes)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get board: %w", err)
	}
	if err := json.Unmarshal(shapes, &doc.Shapes); err != nil {
		return models.Document{}, fmt.Errorf("decode shapes of %s: %w", id, err)
	}
	return doc, nil
}

func (s *Storage) SaveBoard(ctx context.Context, doc models.Document) (models.Document, error) {
	if doc.Shapes == nil {
		doc.Shapes = []models.Shape{}
	}
	shapes, err := json.Marshal(doc.Shapes)
	if err != nil {
		return models.Document{}, fmt.Errorf("encode shapes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO boards (id, name, shapes, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, shapes = EXCLUDED.shapes, updated_at = now()`,
		doc.ID, doc.Name, string(shapes),
	)
	if err != nil {
		return models.Document{}, fmt.Errorf("save board: %w", err)
	}
	return doc, nil
}

func (s *Storage) CreateBoard(ctx context.Context, name string) (models.Document, error) {
	return s.SaveBoard(ctx, models.Document{ID: uuid.NewString(), Name: name})
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
