package models

import (
	"strings"
	"time"
)

// ProvisionalPrefix marks identifiers generated locally for messages that
// the remote system has not confirmed yet.
const ProvisionalPrefix = "tmp-"

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusConfirmed DeliveryStatus = "confirmed"
	StatusFailed    DeliveryStatus = "failed"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is a chat entry. Sender is nil for system messages.
type Message struct {
	ID              string         `json:"id"`
	RoomID          string         `json:"room_id"`
	Sender          *User          `json:"sender"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ClientMessageID string         `json:"client_message_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`

	// Status is tracked by the client only.
	Status DeliveryStatus `json:"-"`
}

// IsProvisional reports whether the message still carries a locally
// generated identifier.
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// Presence is the payload of a user_joined broadcast.
type Presence struct {
	RoomID string    `json:"room_id"`
	User   User      `json:"user"`
	At     time.Time `json:"at"`
}
