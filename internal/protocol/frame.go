// Package protocol defines the JSON frames exchanged over a channel
// connection and the dispatch of decoded frames to handlers.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Action string

const (
	ActionJoin         Action = "join"
	ActionSendMessage  Action = "send_message"
	ActionNewMessage   Action = "new_message"
	ActionUserJoined   Action = "user_joined"
	ActionUpdateCanvas Action = "update_canvas"
	ActionAppendShape  Action = "append_shape"
	ActionUpdateShape  Action = "update_shape"

	// ActionAny registers a fallback handler for actions without one.
	ActionAny Action = "*"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the wire envelope.
type Frame struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds the wire form of an outbound intent.
func Encode(action Action, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action, err)
	}
	return json.Marshal(Frame{Action: action, Payload: raw})
}

// Decode parses a raw frame. When the payload field is absent the whole
// frame is used as the payload, which older servers rely on.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(f.Payload) == 0 || bytes.Equal(f.Payload, []byte("null")) {
		f.Payload = append(json.RawMessage(nil), data...)
	}
	return f, nil
}
