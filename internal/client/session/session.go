// Package session implements the client side of the push protocol: the
// connect/identify/heartbeat state machine, reconnection with capped
// exponential backoff, and the reconciliation policy that keeps local
// notification state converged with the server.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bellhop-dev/bellhop/internal/client/rest"
	"github.com/bellhop-dev/bellhop/internal/storage"
	"github.com/bellhop-dev/bellhop/internal/wire"
	"github.com/bellhop-dev/bellhop/internal/xslog"
)

// ConnState is the session's connection lifecycle state.
type ConnState string

const (
	StateDisconnected     ConnState = "DISCONNECTED"
	StateConnecting       ConnState = "CONNECTING"
	StateOpenUnidentified ConnState = "OPEN_UNIDENTIFIED"
	StateActive           ConnState = "ACTIVE"
	StateReconnecting     ConnState = "RECONNECTING"
	StateClosing          ConnState = "CLOSING"
)

// Transport is a single established connection to the hub.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes transports. The session dials once per connection
// attempt and never reuses a transport across attempts.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// Event is delivered to the handler for every applied push event.
type Event struct {
	Kind         wire.MessageType
	Notification *storage.Notification
	ID           string
}

var errHeartbeatTimeout = errors.New("session: heartbeat timed out")

type Config struct {
	Token string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration

	DropdownLimit int
	// FullListLimit > 0 additionally maintains the scrollable full view
	// with that page size.
	FullListLimit int

	// OnEvent, if set, is called from the session goroutine after each
	// push event has been applied to local state.
	OnEvent func(Event)
	// OnStateChange, if set, is called from the session goroutine on
	// every connection state transition.
	OnStateChange func(ConnState)
}

func (c *Config) setDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 3 * c.HeartbeatInterval
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.DropdownLimit <= 0 {
		c.DropdownLimit = DefaultDropdownLimit
	}
}

// Session owns one user's live connection and local notification state.
// All state mutation happens on the Run goroutine; Snapshot copies out
// under a lock so callers can render from any goroutine.
type Session struct {
	cfg     Config
	dialer  Dialer
	fetcher rest.Fetcher
	logger  *slog.Logger

	mu        sync.Mutex
	state     *State
	connState ConnState
}

func New(dialer Dialer, fetcher rest.Fetcher, logger *slog.Logger, cfg Config) *Session {
	cfg.setDefaults()
	return &Session{
		cfg:       cfg,
		dialer:    dialer,
		fetcher:   fetcher,
		logger:    logger,
		state:     NewState(cfg.DropdownLimit, cfg.FullListLimit > 0),
		connState: StateDisconnected,
	}
}

// Snapshot is a consistent copy of the session's local view.
type Snapshot struct {
	ConnState   ConnState
	Dropdown    []storage.Notification
	Full        []storage.Notification
	UnreadCount int
	LastSyncAt  time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ConnState:   s.connState,
		Dropdown:    s.state.Dropdown(),
		Full:        s.state.Full(),
		UnreadCount: s.state.UnreadCount(),
		LastSyncAt:  s.state.LastSyncAt(),
	}
}

// Run connects and serves the session until ctx is cancelled or the
// server rejects the credentials. Transport failures are retried
// indefinitely with capped exponential backoff; an auth-failed close is
// terminal and returned to the caller. Local state is cleared on exit.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.setConnState(StateClosing)
		s.mu.Lock()
		s.state.Clear()
		s.mu.Unlock()
		s.setConnState(StateDisconnected)
	}()

	backoff := s.cfg.InitialBackoff
	for {
		start := time.Now()
		err := s.runConn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wire.IsAuthClose(err) {
			s.logger.ErrorContext(ctx, "server rejected credentials", xslog.Error(err))
			return err
		}
		// A connection that outlived the backoff cap earns a fresh
		// schedule.
		if time.Since(start) > s.cfg.MaxBackoff {
			backoff = s.cfg.InitialBackoff
		}

		s.setConnState(StateReconnecting)
		s.logger.InfoContext(ctx, "connection lost, reconnecting",
			xslog.Error(err),
			xslog.Backoff(backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

// fetchResult re-enters the session loop so fetches apply serially with
// event handling.
type fetchResult struct {
	page storage.Page
	full bool
	err  error
}

func (s *Session) runConn(ctx context.Context) error {
	s.setConnState(StateConnecting)
	t, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = t.Close() }()

	s.setConnState(StateOpenUnidentified)
	if err := s.sendIdentify(t); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	// connCtx releases the reader and any in-flight fetch goroutines as
	// soon as this connection is torn down.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := t.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- data:
			case <-connCtx.Done():
				return
			}
		}
	}()

	fetches := make(chan fetchResult, 2)
	var (
		fetchOutstanding int // results still owed by the running fetch
		fetchPending     bool
		fetchFailed      bool
		fetchRetry       <-chan time.Time
		identified       bool
		lastActivity     = time.Now()
	)

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case <-ticker.C:
			if time.Since(lastActivity) > s.cfg.HeartbeatTimeout {
				return errHeartbeatTimeout
			}
			if !identified {
				continue
			}
			data, err := wire.Encode(wire.TypePing, nil)
			if err != nil {
				return err
			}
			if err := t.WriteMessage(data); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

		case <-fetchRetry:
			fetchRetry = nil
			if fetchOutstanding > 0 {
				fetchPending = true
			} else {
				fetchOutstanding = s.startFetch(connCtx, fetches)
			}

		case res := <-fetches:
			fetchOutstanding--
			if res.err != nil {
				s.logger.WarnContext(ctx, "reconciliation fetch failed", xslog.Error(res.err))
				fetchFailed = true
			} else {
				s.applyFetch(res)
			}
			if fetchOutstanding > 0 {
				continue
			}
			if fetchFailed {
				// retry after a pause so a flapping API is not hammered
				fetchFailed = false
				fetchPending = false
				fetchRetry = time.After(s.cfg.InitialBackoff)
				continue
			}
			if fetchPending {
				fetchPending = false
				fetchOutstanding = s.startFetch(connCtx, fetches)
			}

		case data := <-inbound:
			env, err := wire.Decode(data)
			if err != nil {
				s.logger.WarnContext(ctx, "dropping malformed server message", xslog.Error(err))
				continue
			}
			lastActivity = time.Now()

			valid, refetch := s.handleEnvelope(ctx, env)
			if !valid {
				continue
			}
			if !identified {
				// Any valid server event doubles as the identify ack.
				identified = true
				s.setConnState(StateActive)
				refetch = true
			}
			if refetch {
				if fetchOutstanding > 0 {
					fetchPending = true
				} else {
					fetchOutstanding = s.startFetch(connCtx, fetches)
				}
			}
		}
	}
}

func (s *Session) sendIdentify(t Transport) error {
	p := wire.IdentifyPayload{Token: s.cfg.Token}
	s.mu.Lock()
	if last := s.state.LastSyncAt(); !last.IsZero() {
		p.LastUpdate = &last
	}
	s.mu.Unlock()

	data, err := wire.Encode(wire.TypeIdentify, p)
	if err != nil {
		return err
	}
	return t.WriteMessage(data)
}

// handleEnvelope applies one server message to local state. It reports
// whether the message was a valid protocol event, and whether it must be
// followed by a reconciliation fetch.
func (s *Session) handleEnvelope(ctx context.Context, env wire.Envelope) (valid, refetch bool) {
	switch env.Type {
	case wire.TypeConnected, wire.TypeHeartbeatAck:
		return true, false

	case wire.TypeNewNotification:
		n, err := env.Notification()
		if err != nil {
			s.logger.WarnContext(ctx, "bad notification payload", xslog.Error(err))
			return false, false
		}
		s.mu.Lock()
		s.state.ApplyNew(n)
		s.mu.Unlock()
		s.emit(Event{Kind: env.Type, Notification: &n, ID: n.ID})
		return true, true

	case wire.TypeNotificationRead:
		ref, err := env.NotificationRef()
		if err != nil {
			s.logger.WarnContext(ctx, "bad notification ref payload", xslog.Error(err))
			return false, false
		}
		s.mu.Lock()
		s.state.ApplyRead(ref.ID)
		s.mu.Unlock()
		s.emit(Event{Kind: env.Type, ID: ref.ID})
		return true, true

	case wire.TypeAllNotificationsRead:
		s.mu.Lock()
		s.state.ApplyAllRead()
		s.mu.Unlock()
		s.emit(Event{Kind: env.Type})
		return true, true

	case wire.TypeNotificationDeleted:
		ref, err := env.NotificationRef()
		if err != nil {
			s.logger.WarnContext(ctx, "bad notification ref payload", xslog.Error(err))
			return false, false
		}
		s.mu.Lock()
		s.state.ApplyDeleted(ref.ID)
		s.mu.Unlock()
		s.emit(Event{Kind: env.Type, ID: ref.ID})
		return true, true

	default:
		s.logger.DebugContext(ctx, "ignoring unknown message type", xslog.MessageType(string(env.Type)))
		return false, false
	}
}

// startFetch issues the reconciliation reads off the loop goroutine. The
// dropdown page always refreshes; the full view refreshes too when the
// session tracks one. It returns the number of results the loop must
// drain before this fetch counts as finished.
func (s *Session) startFetch(ctx context.Context, out chan<- fetchResult) int {
	n := 1
	if s.cfg.FullListLimit > 0 {
		n = 2
	}
	go func() {
		page, err := s.fetcher.List(ctx, storage.ListOptions{Limit: s.cfg.DropdownLimit})
		select {
		case out <- fetchResult{page: page, err: err}:
		case <-ctx.Done():
			return
		}
		if n == 1 {
			return
		}
		full, err := s.fetcher.List(ctx, storage.ListOptions{Limit: s.cfg.FullListLimit})
		select {
		case out <- fetchResult{page: full, full: true, err: err}:
		case <-ctx.Done():
		}
	}()
	return n
}

func (s *Session) applyFetch(res fetchResult) {
	now := time.Now()
	s.mu.Lock()
	if res.full {
		s.state.ReplaceFull(res.page, now)
	} else {
		s.state.ReplaceDropdown(res.page, now)
	}
	s.mu.Unlock()
}

func (s *Session) emit(e Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(e)
	}
}

func (s *Session) setConnState(st ConnState) {
	s.mu.Lock()
	changed := s.connState != st
	s.connState = st
	s.mu.Unlock()
	if changed && s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(st)
	}
}
