package hub

import (
	"context"

	"github.com/bellhop-dev/bellhop/internal/wire"
)

// Publisher is the boundary business logic publishes through after the
// store has durably recorded the underlying change. The hub never
// initiates a store mutation itself.
type Publisher interface {
	Publish(ctx context.Context, userID string, kind wire.MessageType, payload any) error
}

var _ Publisher = (*Hub)(nil)

// Nop discards events. Useful in tests and for callers that run without a
// push channel.
type Nop struct{}

var _ Publisher = (*Nop)(nil)

func (*Nop) Publish(context.Context, string, wire.MessageType, any) error { return nil }
