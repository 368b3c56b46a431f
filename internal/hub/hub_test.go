package hub

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bellhop-dev/bellhop/internal/auth"
	"github.com/bellhop-dev/bellhop/internal/hub/hubtest"
	"github.com/bellhop-dev/bellhop/internal/wire"
)

// staticValidator maps tokens to user IDs without any crypto.
type staticValidator map[string]string

func (v staticValidator) Validate(_ context.Context, token string) (string, error) {
	if userID, ok := v[token]; ok {
		return userID, nil
	}
	return "", auth.ErrInvalidToken
}

func newTestHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	validator := staticValidator{
		"token-u1": "u1",
		"token-u2": "u2",
	}
	return New(cfg, validator, slog.New(slog.DiscardHandler))
}

func readEnvelope(t *testing.T, client *hubtest.ClientEnd) wire.Envelope {
	t.Helper()

	type result struct {
		env wire.Envelope
		err error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := client.ReadMessage()
		if err != nil {
			ch <- result{err: err}
			return
		}
		env, err := wire.Decode(data)
		ch <- result{env: env, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read envelope: %v", r.err)
		}
		return r.env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return wire.Envelope{}
	}
}

func readCloseError(t *testing.T, client *hubtest.ClientEnd) *wire.CloseError {
	t.Helper()

	ch := make(chan error, 1)
	go func() {
		for {
			if _, err := client.ReadMessage(); err != nil {
				ch <- err
				return
			}
		}
	}()

	select {
	case err := <-ch:
		var closeErr *wire.CloseError
		if !errors.As(err, &closeErr) {
			t.Fatalf("read error = %v, want *wire.CloseError", err)
		}
		return closeErr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
		return nil
	}
}

func identify(t *testing.T, client *hubtest.ClientEnd, token string) {
	t.Helper()
	data, err := wire.Encode(wire.TypeIdentify, wire.IdentifyPayload{Token: token})
	if err != nil {
		t.Fatalf("encode identify: %v", err)
	}
	if err := client.WriteMessage(data); err != nil {
		t.Fatalf("write identify: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestIdentifySuccessSendsConnected(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})
	server, client := hubtest.Pipe()
	h.Accept(server)

	identify(t, client, "token-u1")

	env := readEnvelope(t, client)
	if env.Type != wire.TypeConnected {
		t.Errorf("first message = %s, want CONNECTED", env.Type)
	}
}

func TestIdentifyBadTokenClosesWithAuthCode(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})
	server, client := hubtest.Pipe()
	h.Accept(server)

	identify(t, client, "bogus")

	closeErr := readCloseError(t, client)
	if closeErr.Code != wire.CloseAuthFailed {
		t.Errorf("close code = %d, want %d", closeErr.Code, wire.CloseAuthFailed)
	}
	waitFor(t, time.Second, func() bool { return h.ConnectionCount() == 0 })
}

func TestReidentifyMovesConnectionBetweenUsers(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})
	server, client := hubtest.Pipe()
	h.Accept(server)

	identify(t, client, "token-u1")
	if env := readEnvelope(t, client); env.Type != wire.TypeConnected {
		t.Fatalf("first message = %s, want CONNECTED", env.Type)
	}

	identify(t, client, "token-u2")
	if env := readEnvelope(t, client); env.Type != wire.TypeConnected {
		t.Fatalf("message after re-identify = %s, want CONNECTED", env.Type)
	}

	// The connection now belongs to u2 alone: u1's events must not reach
	// it, u2's must.
	if err := h.Publish(context.Background(), "u1", wire.TypeNotificationRead, wire.NotificationRefPayload{ID: "n1"}); err != nil {
		t.Fatalf("publish to u1: %v", err)
	}
	if err := h.Publish(context.Background(), "u2", wire.TypeNotificationDeleted, wire.NotificationRefPayload{ID: "n2"}); err != nil {
		t.Fatalf("publish to u2: %v", err)
	}

	env := readEnvelope(t, client)
	if env.Type != wire.TypeNotificationDeleted {
		t.Errorf("delivered event = %s, want %s", env.Type, wire.TypeNotificationDeleted)
	}
}

func TestMessageBeforeIdentifyIsProtocolError(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})
	server, client := hubtest.Pipe()
	h.Accept(server)

	data, err := wire.Encode(wire.TypePing, nil)
	if err != nil {
		t.Fatalf("encode ping: %v", err)
	}
	if err := client.WriteMessage(data); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	closeErr := readCloseError(t, client)
	if closeErr.Code != wire.CloseProtocolError {
		t.Errorf("close code = %d, want %d", closeErr.Code, wire.CloseProtocolError)
	}
}

func TestMalformedMessageClosesConnection(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})
	server, client := hubtest.Pipe()
	h.Accept(server)

	if err := client.WriteMessage([]byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}

	closeErr := readCloseError(t, client)
	if closeErr.Code != wire.CloseProtocolError {
		t.Errorf("close code = %d, want %d", closeErr.Code, wire.CloseProtocolError)
	}
}

func TestPingGetsHeartbeatAck(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})
	server, client := hubtest.Pipe()
	h.Accept(server)

	identify(t, client, "token-u1")
	if env := readEnvelope(t, client); env.Type != wire.TypeConnected {
		t.Fatalf("expected CONNECTED, got %s", env.Type)
	}

	data, _ := wire.Encode(wire.TypePing, nil)
	if err := client.WriteMessage(data); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	if env := readEnvelope(t, client); env.Type != wire.TypeHeartbeatAck {
		t.Errorf("got %s, want HEARTBEAT_ACK", env.Type)
	}
}

func TestPublishReachesAllUserConnections(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})

	serverA, clientA := hubtest.Pipe()
	serverB, clientB := hubtest.Pipe()
	h.Accept(serverA)
	h.Accept(serverB)

	identify(t, clientA, "token-u1")
	identify(t, clientB, "token-u1")
	readEnvelope(t, clientA) // CONNECTED
	readEnvelope(t, clientB)

	err := h.Publish(context.Background(), "u1", wire.TypeNotificationRead, wire.NotificationRefPayload{ID: "n1"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, client := range []*hubtest.ClientEnd{clientA, clientB} {
		env := readEnvelope(t, client)
		if env.Type != wire.TypeNotificationRead {
			t.Fatalf("got %s, want NOTIFICATION_READ", env.Type)
		}
		ref, err := env.NotificationRef()
		if err != nil {
			t.Fatalf("NotificationRef() error = %v", err)
		}
		if ref.ID != "n1" {
			t.Errorf("ref.ID = %s, want n1", ref.ID)
		}
	}
}

func TestPublishDoesNotCrossUsers(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})

	server1, client1 := hubtest.Pipe()
	server2, client2 := hubtest.Pipe()
	h.Accept(server1)
	h.Accept(server2)

	identify(t, client1, "token-u1")
	identify(t, client2, "token-u2")
	readEnvelope(t, client1)
	readEnvelope(t, client2)

	if err := h.Publish(context.Background(), "u2", wire.TypeAllNotificationsRead, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	// u2 receives it
	if env := readEnvelope(t, client2); env.Type != wire.TypeAllNotificationsRead {
		t.Fatalf("u2 got %s, want ALL_NOTIFICATIONS_READ", env.Type)
	}

	// u1 must see nothing: publish something for u1 and confirm it arrives
	// first on their connection
	if err := h.Publish(context.Background(), "u1", wire.TypeNotificationDeleted, wire.NotificationRefPayload{ID: "x"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if env := readEnvelope(t, client1); env.Type != wire.TypeNotificationDeleted {
		t.Errorf("u1's first event = %s, leaked cross-user delivery", env.Type)
	}
}

func TestPublishToUserWithNoConnections(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})

	done := make(chan error, 1)
	go func() {
		done <- h.Publish(context.Background(), "nobody", wire.TypeAllNotificationsRead, nil)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Publish() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with zero connections")
	}
}

func TestRemoveOneConnectionKeepsSiblingDelivery(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{})

	serverA, clientA := hubtest.Pipe()
	serverB, clientB := hubtest.Pipe()
	idA := h.Accept(serverA)
	h.Accept(serverB)

	identify(t, clientA, "token-u1")
	identify(t, clientB, "token-u1")
	readEnvelope(t, clientA)
	readEnvelope(t, clientB)

	h.Remove(idA)

	if err := h.Publish(context.Background(), "u1", wire.TypeNotificationRead, wire.NotificationRefPayload{ID: "n9"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if env := readEnvelope(t, clientB); env.Type != wire.TypeNotificationRead {
		t.Errorf("sibling got %s, want NOTIFICATION_READ", env.Type)
	}
}

func TestSlowConsumerIsDroppedNotWaitedOn(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{QueueSize: 1})

	server, client := hubtest.Pipe()
	h.Accept(server)

	identify(t, client, "token-u1")
	readEnvelope(t, client)

	// the client stops reading; the pipe buffer plus the write queue absorb
	// a bounded number of events, then the hub must drop the connection
	// rather than block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			_ = h.Publish(context.Background(), "u1", wire.TypeNotificationRead, wire.NotificationRefPayload{ID: "n"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow consumer")
	}

	waitFor(t, time.Second, func() bool { return h.ConnectionCount() == 0 })
}

func TestJanitorPrunesSilentConnections(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{HeartbeatInterval: 20 * time.Millisecond, TimeoutFactor: 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	server, client := hubtest.Pipe()
	h.Accept(server)
	identify(t, client, "token-u1")
	readEnvelope(t, client)

	// never send a PING; the connection must be pruned within one timeout
	// window and later publishes must not attempt delivery to it
	waitFor(t, time.Second, func() bool { return h.ConnectionCount() == 0 })

	if err := h.Publish(context.Background(), "u1", wire.TypeAllNotificationsRead, nil); err != nil {
		t.Errorf("Publish() after prune error = %v", err)
	}
}

func TestHeartbeatKeepsConnectionAlive(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, Config{HeartbeatInterval: 20 * time.Millisecond, TimeoutFactor: 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	server, client := hubtest.Pipe()
	h.Accept(server)
	identify(t, client, "token-u1")
	readEnvelope(t, client)

	// keep pinging for several timeout windows
	ping, _ := wire.Encode(wire.TypePing, nil)
	for i := 0; i < 20; i++ {
		if err := client.WriteMessage(ping); err != nil {
			t.Fatalf("ping %d failed: %v", i, err)
		}
		readEnvelope(t, client) // HEARTBEAT_ACK
		time.Sleep(10 * time.Millisecond)
	}

	if h.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount() = %d, want 1", h.ConnectionCount())
	}
}
