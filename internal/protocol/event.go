package protocol

import (
	"encoding/json"
	"fmt"

	"Seshat/internal/models"
)

// Event is a decoded frame. The set of implementations is closed; frames
// with an action not listed here decode to Unknown.
type Event interface {
	Action() Action
	isEvent()
}

type Join struct {
	RoomID string `json:"room_id"`
}

type SendMessage struct {
	RoomID          string `json:"room_id"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

type NewMessage struct {
	Message models.Message
}

type UserJoined struct {
	Presence models.Presence
}

type UpdateCanvas struct {
	Document models.Document
}

type AppendShape struct {
	Shape models.Shape
}

type UpdateShape struct {
	ID    string            `json:"id"`
	Patch models.ShapePatch `json:"patch"`
}

type Unknown struct {
	Name    Action
	Payload json.RawMessage
}

func (Join) Action() Action         { return ActionJoin }
func (SendMessage) Action() Action  { return ActionSendMessage }
func (NewMessage) Action() Action   { return ActionNewMessage }
func (UserJoined) Action() Action   { return ActionUserJoined }
func (UpdateCanvas) Action() Action { return ActionUpdateCanvas }
func (AppendShape) Action() Action  { return ActionAppendShape }
func (UpdateShape) Action() Action  { return ActionUpdateShape }
func (u Unknown) Action() Action    { return u.Name }

func (Join) isEvent()         {}
func (SendMessage) isEvent()  {}
func (NewMessage) isEvent()   {}
func (UserJoined) isEvent()   {}
func (UpdateCanvas) isEvent() {}
func (AppendShape) isEvent()  {}
func (UpdateShape) isEvent()  {}
func (Unknown) isEvent()      {}

// DecodeEvent parses a raw frame into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return f.Event()
}

// Event converts the frame payload into its typed event.
func (f Frame) Event() (Event, error) {
	var (
		ev  Event
		err error
	)
	switch f.Action {
	case ActionJoin:
		var v Join
		err = json.Unmarshal(f.Payload, &v)
		ev = v
	case ActionSendMessage:
		var v SendMessage
		err = json.Unmarshal(f.Payload, &v)
		ev = v
	case ActionNewMessage:
		var v NewMessage
		err = json.Unmarshal(f.Payload, &v.Message)
		ev = v
	case ActionUserJoined:
		var v UserJoined
		err = json.Unmarshal(f.Payload, &v.Presence)
		ev = v
	case ActionUpdateCanvas:
		var v UpdateCanvas
		err = json.Unmarshal(f.Payload, &v.Document)
		ev = v
	case ActionAppendShape:
		var v AppendShape
		err = json.Unmarshal(f.Payload, &v.Shape)
		ev = v
	case ActionUpdateShape:
		var v UpdateShape
		err = json.Unmarshal(f.Payload, &v)
		ev = v
	default:
		ev = Unknown{Name: f.Action, Payload: f.Payload}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, f.Action, err)
	}
	return ev, nil
}
