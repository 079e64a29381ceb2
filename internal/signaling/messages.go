package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/voxmeet/signaling-relay/internal/room"
)

type messageType string

// Inbound message types (client -> relay).
const (
	messageTypeJoin   messageType = "join"
	messageTypeSignal messageType = "signal"
	messageTypeChat   messageType = "chat"
)

// Outbound event types (relay -> client).
const (
	messageTypeWelcome         messageType = "welcome"
	messageTypeExistingMembers messageType = "existing_members"
	messageTypeChatHistory     messageType = "chat_history"
	messageTypeMemberJoined    messageType = "member_joined"
	messageTypeMemberLeft      messageType = "member_left"
	messageTypeChatMessage     messageType = "chat_message"
	messageTypeError           messageType = "error"
)

// clientMessage is the inbound wire format. The signal payload is opaque:
// the relay routes it by target and never looks inside.
type clientMessage struct {
	Type messageType `json:"type"`

	Room string `json:"room,omitempty"`
	Name string `json:"name,omitempty"`

	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Text string `json:"text,omitempty"`
}

func parseClientMessage(data []byte) (clientMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg clientMessage
	if err := dec.Decode(&msg); err != nil {
		return clientMessage{}, err
	}
	if err := msg.validate(); err != nil {
		return clientMessage{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return clientMessage{}, fmt.Errorf("unexpected trailing data")
	}
	return msg, nil
}

func (m clientMessage) validate() error {
	switch m.Type {
	case messageTypeJoin:
		if m.Room == "" {
			return fmt.Errorf("join message missing room")
		}
		if m.Name == "" {
			return fmt.Errorf("join message missing name")
		}
		if m.Target != "" || m.Payload != nil || m.Text != "" {
			return fmt.Errorf("join message has unexpected fields")
		}
	case messageTypeSignal:
		if m.Target == "" {
			return fmt.Errorf("signal message missing target")
		}
		if len(m.Payload) == 0 {
			return fmt.Errorf("signal message missing payload")
		}
		if m.Room != "" || m.Name != "" || m.Text != "" {
			return fmt.Errorf("signal message has unexpected fields")
		}
	case messageTypeChat:
		if m.Text == "" {
			return fmt.Errorf("chat message missing text")
		}
		if m.Room != "" || m.Name != "" || m.Target != "" || m.Payload != nil {
			return fmt.Errorf("chat message has unexpected fields")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

// Outbound events are one struct per type; the error event's "message"
// field would otherwise collide with the chat_message envelope.

type welcomeEvent struct {
	Type messageType `json:"type"`
	ID   string      `json:"id"`
}

type existingMembersEvent struct {
	Type    messageType   `json:"type"`
	Members []room.Member `json:"members"`
}

type chatHistoryEvent struct {
	Type     messageType        `json:"type"`
	Messages []room.ChatMessage `json:"messages"`
}

type memberJoinedEvent struct {
	Type   messageType `json:"type"`
	Member room.Member `json:"member"`
}

type memberLeftEvent struct {
	Type messageType `json:"type"`
	ID   string      `json:"id"`
}

type signalEvent struct {
	Type    messageType     `json:"type"`
	Sender  string          `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}

type chatMessageEvent struct {
	Type    messageType      `json:"type"`
	Message room.ChatMessage `json:"message"`
}

type errorEvent struct {
	Type    messageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}
