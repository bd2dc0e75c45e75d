package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownMessageType is returned for types this build does not know.
var ErrUnknownMessageType = errors.New("unknown message type")

// Message is the envelope for every payload on the channel.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Sender    string          `json:"sender,omitempty"`
	FlowID    string          `json:"flowId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps payload in an envelope with a fresh id and the current
// timestamp.
func NewMessage(payload Payload) (*Message, error) {
	dataBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      payload.MessageType(),
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Data:      dataBytes,
	}, nil
}

// Clone returns a copy that shares nothing with m.
func (m *Message) Clone() *Message {
	c := *m
	c.Data = append(json.RawMessage(nil), m.Data...)
	return &c
}

// Marshal encodes the envelope as JSON.
func Marshal(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes an envelope. The payload is left raw; use Decode.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &m, nil
}

// Decode returns the typed payload of m.
func Decode(m *Message) (Payload, error) {
	switch m.Type {
	case TypeShowUI:
		return decodeAs[ShowUI](m)
	case TypeShowSpectatorUI:
		return decodeAs[ShowSpectatorUI](m)
	case TypeRemoveSpectatorUI:
		return decodeAs[RemoveSpectatorUI](m)
	case TypeShowAnnouncement:
		return decodeAs[ShowAnnouncement](m)
	case TypePlayMedia:
		return decodeAs[PlayMedia](m)
	case TypePlaySound:
		return decodeAs[PlaySound](m)
	case TypeShowBorder:
		return decodeAs[ShowBorder](m)
	case TypeRemoveBorder:
		return decodeAs[RemoveBorder](m)
	case TypeUpdateCountdown:
		return decodeAs[UpdateCountdown](m)
	case TypeHideUnselected:
		return decodeAs[HideUnselected](m)
	case TypeRoster:
		return decodeAs[Roster](m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, m.Type)
	}
}

func decodeAs[T Payload](m *Message) (Payload, error) {
	var p T
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(m.Data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return p, nil
}
