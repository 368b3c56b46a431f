// Package wire defines the envelope exchanged between the hub and its
// clients. Every message is a discriminated JSON object with a type field
// and a type-specific payload; unknown types are ignored by both sides so
// new event kinds can be added without breaking older peers.
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/bellhop-dev/bellhop/internal/storage"
	go_json "github.com/goccy/go-json"
)

type MessageType string

// Inbound (client → hub).
const (
	TypeIdentify MessageType = "IDENTIFY"
	TypePing     MessageType = "PING"
)

// Outbound (hub → client). CONNECTED is the one-shot catch-up signal sent
// after a successful IDENTIFY; the four *_NOTIFICATION* types are the only
// kinds that mutate client state.
const (
	TypeConnected            MessageType = "CONNECTED"
	TypeNewNotification      MessageType = "NEW_NOTIFICATION"
	TypeNotificationRead     MessageType = "NOTIFICATION_READ"
	TypeAllNotificationsRead MessageType = "ALL_NOTIFICATIONS_READ"
	TypeNotificationDeleted  MessageType = "NOTIFICATION_DELETED"
	TypeHeartbeatAck         MessageType = "HEARTBEAT_ACK"
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrInvalidPayload = errors.New("invalid payload")
)

type Envelope struct {
	Type    MessageType        `json:"type"`
	Payload go_json.RawMessage `json:"payload,omitempty"`
}

type IdentifyPayload struct {
	Token string `json:"token"`
	// LastUpdate is the client's lastSyncAt hint. Informational only: the
	// hub never replays history from it.
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
}

type NotificationRefPayload struct {
	ID string `json:"id"`
}

func IsInbound(t MessageType) bool {
	return t == TypeIdentify || t == TypePing
}

// IsMutation reports whether t changes client notification state when
// received. HEARTBEAT_ACK and CONNECTED never do.
func IsMutation(t MessageType) bool {
	switch t {
	case TypeNewNotification, TypeNotificationRead, TypeAllNotificationsRead, TypeNotificationDeleted:
		return true
	default:
		return false
	}
}

func Encode(t MessageType, payload any) ([]byte, error) {
	env := Envelope{Type: t}

	if payload != nil {
		data, err := go_json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		env.Payload = data
	}

	data, err := go_json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses the envelope only. Payloads are validated lazily by the
// typed accessors so an unknown type with a weird payload stays ignorable.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := go_json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

func (e Envelope) Identify() (IdentifyPayload, error) {
	var p IdentifyPayload
	if err := go_json.Unmarshal(e.Payload, &p); err != nil {
		return IdentifyPayload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if p.Token == "" {
		return IdentifyPayload{}, fmt.Errorf("%w: missing token", ErrInvalidPayload)
	}
	return p, nil
}

func (e Envelope) Notification() (storage.Notification, error) {
	var n storage.Notification
	if err := go_json.Unmarshal(e.Payload, &n); err != nil {
		return storage.Notification{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if n.ID == "" {
		return storage.Notification{}, fmt.Errorf("%w: missing notification id", ErrInvalidPayload)
	}
	return n, nil
}

func (e Envelope) NotificationRef() (NotificationRefPayload, error) {
	var p NotificationRefPayload
	if err := go_json.Unmarshal(e.Payload, &p); err != nil {
		return NotificationRefPayload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if p.ID == "" {
		return NotificationRefPayload{}, fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	return p, nil
}
