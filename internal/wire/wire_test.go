package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/bellhop-dev/bellhop/internal/storage"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeIdentify(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := Encode(TypeIdentify, IdentifyPayload{Token: "tok", LastUpdate: &last})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if env.Type != TypeIdentify {
		t.Fatalf("Type = %s, want IDENTIFY", env.Type)
	}

	p, err := env.Identify()
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if p.Token != "tok" {
		t.Errorf("Token = %q, want tok", p.Token)
	}
	if p.LastUpdate == nil || !p.LastUpdate.Equal(last) {
		t.Errorf("LastUpdate = %v, want %v", p.LastUpdate, last)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "{nope"},
		{name: "missing type", input: `{"payload":{}}`},
		{name: "empty type", input: `{"type":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode(%q) error = %v, want ErrMalformed", tt.input, err)
			}
		})
	}
}

func TestDecodeUnknownTypeIsNotFatal(t *testing.T) {
	t.Parallel()

	env, err := Decode([]byte(`{"type":"FUTURE_EVENT","payload":{"x":1}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v, unknown types must decode", err)
	}
	if env.Type != "FUTURE_EVENT" {
		t.Errorf("Type = %s, want FUTURE_EVENT", env.Type)
	}
	if IsMutation(env.Type) || IsInbound(env.Type) {
		t.Error("unknown type classified as known")
	}
}

func TestIdentifyPayloadValidation(t *testing.T) {
	t.Parallel()

	env, err := Decode([]byte(`{"type":"IDENTIFY","payload":{"lastUpdate":"2026-03-01T12:00:00Z"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := env.Identify(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Identify() without token error = %v, want ErrInvalidPayload", err)
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	t.Parallel()

	want := storage.Notification{
		ID:        "n1",
		UserID:    "u1",
		Title:     "hello",
		Message:   "world",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := Encode(TypeNewNotification, want)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got, err := env.Notification()
	if err != nil {
		t.Fatalf("Notification() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notification mismatch (-want +got):\n%s", diff)
	}
}

func TestNotificationRefValidation(t *testing.T) {
	t.Parallel()

	env, err := Decode([]byte(`{"type":"NOTIFICATION_READ","payload":{}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := env.NotificationRef(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("NotificationRef() error = %v, want ErrInvalidPayload", err)
	}
}

func TestIsMutation(t *testing.T) {
	t.Parallel()

	mutations := []MessageType{TypeNewNotification, TypeNotificationRead, TypeAllNotificationsRead, TypeNotificationDeleted}
	for _, mt := range mutations {
		if !IsMutation(mt) {
			t.Errorf("IsMutation(%s) = false, want true", mt)
		}
	}
	for _, mt := range []MessageType{TypeConnected, TypeHeartbeatAck, TypeIdentify, TypePing} {
		if IsMutation(mt) {
			t.Errorf("IsMutation(%s) = true, want false", mt)
		}
	}
}
