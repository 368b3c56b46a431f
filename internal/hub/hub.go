// Package hub owns the server side of the push channel: it accepts
// transport connections, binds them to users via IDENTIFY, and fans
// published events out to every live connection of the target user.
//
// The hub is stateless with respect to notification content. It never
// replays history; a client that missed events converges through its
// reconciliation fetch against the notification store.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bellhop-dev/bellhop/internal/auth"
	"github.com/bellhop-dev/bellhop/internal/metrics"
	"github.com/bellhop-dev/bellhop/internal/wire"
	"github.com/bellhop-dev/bellhop/internal/xslog"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultTimeoutFactor     = 3
	DefaultQueueSize         = 32
)

type Config struct {
	HeartbeatInterval time.Duration
	// TimeoutFactor multiplies HeartbeatInterval into the silence window
	// after which the janitor prunes a connection.
	TimeoutFactor int
	QueueSize     int
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.TimeoutFactor <= 0 {
		c.TimeoutFactor = DefaultTimeoutFactor
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
}

func (c Config) heartbeatTimeout() time.Duration {
	return c.HeartbeatInterval * time.Duration(c.TimeoutFactor)
}

// Bridge propagates published events to sibling hub instances. The redis
// implementation is in bridge.go; a nil bridge keeps everything local.
type Bridge interface {
	Broadcast(ctx context.Context, userID string, kind wire.MessageType, data []byte) error
}

type Hub struct {
	cfg       Config
	logger    *slog.Logger
	validator auth.TokenValidator
	metrics   *metrics.Metrics
	bridge    Bridge

	registry *registry

	// conns tracks every accepted connection, claimed or not, for control
	// message routing and janitor sweeps.
	connsMu sync.RWMutex
	conns   map[string]*connection
}

type Option func(*Hub)

func WithBridge(b Bridge) Option {
	return func(h *Hub) { h.bridge = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func New(cfg Config, validator auth.TokenValidator, logger *slog.Logger, opts ...Option) *Hub {
	cfg.applyDefaults()

	h := &Hub{
		cfg:       cfg,
		logger:    logger,
		validator: validator,
		metrics:   metrics.NewNop(),
		registry:  newRegistry(),
		conns:     make(map[string]*connection),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Accept registers a new unclaimed connection and starts its read and
// write loops. The connection receives no fan-out until IDENTIFY succeeds.
func (h *Hub) Accept(transport Transport) string {
	c := newConnection(transport, h.cfg.QueueSize)

	h.connsMu.Lock()
	h.conns[c.id] = c
	h.connsMu.Unlock()

	h.metrics.OpenConnections.Inc()
	h.logger.Debug("connection accepted", xslog.ConnectionID(c.id))

	go c.writeLoop(func(c *connection) {
		h.metrics.DroppedConnections.WithLabelValues(metrics.ReasonWriteError).Inc()
		h.Remove(c.id)
	})
	go h.readLoop(c)

	return c.id
}

func (h *Hub) readLoop(c *connection) {
	for {
		data, err := c.transport.ReadMessage()
		if err != nil {
			h.Remove(c.id)
			return
		}

		env, err := wire.Decode(data)
		if err != nil {
			h.logger.Warn("malformed message",
				xslog.ConnectionID(c.id),
				xslog.Error(err),
			)
			h.closeAndRemove(c, wire.CloseProtocolError, "malformed message")
			return
		}

		if !c.identified() && env.Type != wire.TypeIdentify {
			h.logger.Warn("message before IDENTIFY",
				xslog.ConnectionID(c.id),
				xslog.MessageType(string(env.Type)),
			)
			h.metrics.DroppedConnections.WithLabelValues(metrics.ReasonProtocolError).Inc()
			h.closeAndRemove(c, wire.CloseProtocolError, "identify first")
			return
		}

		switch env.Type {
		case wire.TypeIdentify:
			identify, err := env.Identify()
			if err != nil {
				h.closeAndRemove(c, wire.CloseProtocolError, "invalid identify payload")
				return
			}
			if !h.handleIdentify(c, identify) {
				return
			}
		case wire.TypePing:
			h.handleHeartbeat(c)
		default:
			// forward compatibility: unknown inbound types are ignored
			h.logger.Debug("ignoring unknown message type",
				xslog.ConnectionID(c.id),
				xslog.MessageType(string(env.Type)),
			)
		}
	}
}

// handleIdentify validates the bearer token and claims the connection for
// the resolved user. The lastUpdate hint is logged but drives no replay;
// catch-up is the client's job via the reconciliation fetch, which the
// CONNECTED signal tells it to start.
func (h *Hub) handleIdentify(c *connection, identify wire.IdentifyPayload) bool {
	ctx := context.Background()

	userID, err := h.validator.Validate(ctx, identify.Token)
	if err != nil {
		h.logger.Warn("identify rejected",
			xslog.ConnectionID(c.id),
			xslog.Error(err),
		)
		h.metrics.DroppedConnections.WithLabelValues(metrics.ReasonAuthFailed).Inc()
		h.closeAndRemove(c, wire.CloseAuthFailed, "authentication failed")
		return false
	}

	alreadyIdentified := c.identified()
	if alreadyIdentified {
		// Re-identifying as someone else moves the connection; the old
		// bucket entry must go or it keeps receiving the old user's
		// events.
		if old := c.UserID(); old != userID {
			h.registry.remove(old, c.id)
		}
	}
	c.claim(userID)
	h.registry.add(userID, c)

	if !alreadyIdentified {
		h.metrics.IdentifiedConnections.Inc()
	}

	h.logger.Info("connection identified",
		xslog.ConnectionID(c.id),
		xslog.UserID(userID),
	)

	data, err := wire.Encode(wire.TypeConnected, nil)
	if err != nil {
		h.logger.Error("failed to encode connected signal", xslog.Error(err))
		return true
	}
	if !c.enqueue(data) {
		h.dropSlowConsumer(c)
		return false
	}
	return true
}

func (h *Hub) handleHeartbeat(c *connection) {
	c.touchHeartbeat()

	data, err := wire.Encode(wire.TypeHeartbeatAck, nil)
	if err != nil {
		h.logger.Error("failed to encode heartbeat ack", xslog.Error(err))
		return
	}
	if !c.enqueue(data) {
		h.dropSlowConsumer(c)
	}
}

// Publish fans the event out to every live connection of userID. A user
// with no connections is a silent no-op: durability rests on the store
// plus the client's reconciliation fetch, not on the push path. Publish
// never blocks on a slow consumer; an overflowing connection is dropped.
func (h *Hub) Publish(ctx context.Context, userID string, kind wire.MessageType, payload any) error {
	data, err := wire.Encode(kind, payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	h.fanOut(userID, kind, data)

	if h.bridge != nil {
		if err := h.bridge.Broadcast(ctx, userID, kind, data); err != nil {
			// local delivery already happened; remote instances converge
			// through their clients' reconciliation fetches
			h.logger.Warn("bridge broadcast failed",
				xslog.UserID(userID),
				xslog.Error(err),
			)
		}
	}

	return nil
}

// fanOut delivers an already-encoded event to local connections only.
// The redis bridge calls this for events published by sibling instances.
func (h *Hub) fanOut(userID string, kind wire.MessageType, data []byte) {
	h.metrics.PublishedEvents.WithLabelValues(string(kind)).Inc()

	for _, c := range h.registry.connections(userID) {
		if !c.enqueue(data) {
			h.dropSlowConsumer(c)
		}
	}
}

func (h *Hub) dropSlowConsumer(c *connection) {
	h.logger.Warn("dropping slow consumer",
		xslog.ConnectionID(c.id),
		xslog.UserID(c.UserID()),
	)
	h.metrics.DroppedConnections.WithLabelValues(metrics.ReasonSlowConsumer).Inc()
	h.closeAndRemove(c, wire.CloseNormal, "write queue overflow")
}

// Remove unregisters a connection on transport close, logout, or heartbeat
// timeout. Removing one connection never affects delivery to the user's
// other connections.
func (h *Hub) Remove(connID string) {
	h.connsMu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	h.connsMu.Unlock()

	if !ok {
		return
	}

	if userID := c.UserID(); userID != "" {
		h.registry.remove(userID, connID)
		h.metrics.IdentifiedConnections.Dec()
	}
	h.metrics.OpenConnections.Dec()

	c.close(wire.CloseNormal, "")
	h.logger.Debug("connection removed", xslog.ConnectionID(connID))
}

func (h *Hub) closeAndRemove(c *connection, code int, reason string) {
	c.close(code, reason)
	h.Remove(c.id)
}

// Run drives the heartbeat janitor until ctx is cancelled. A connection
// that has not sent a PING within the timeout window is pruned so later
// publishes skip it.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
			h.pruneStale()
		}
	}
}

func (h *Hub) pruneStale() {
	timeout := h.cfg.heartbeatTimeout()
	now := time.Now()

	h.connsMu.RLock()
	stale := make([]*connection, 0)
	for _, c := range h.conns {
		if now.Sub(c.lastHeartbeatAt()) > timeout {
			stale = append(stale, c)
		}
	}
	h.connsMu.RUnlock()

	for _, c := range stale {
		h.logger.Info("pruning dead connection",
			xslog.ConnectionID(c.id),
			xslog.UserID(c.UserID()),
		)
		h.metrics.PrunedConnections.Inc()
		h.closeAndRemove(c, wire.CloseNormal, "heartbeat timeout")
	}
}

func (h *Hub) closeAll() {
	h.connsMu.RLock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.connsMu.RUnlock()

	for _, c := range conns {
		h.closeAndRemove(c, wire.CloseNormal, "server shutdown")
	}
}

// ConnectionCount reports open connections; used by tests and the health
// endpoint.
func (h *Hub) ConnectionCount() int {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return len(h.conns)
}
