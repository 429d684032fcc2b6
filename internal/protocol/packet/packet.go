// Package packet defines the wire packet abstraction and the two-level
// channel registry that routes inbound frames to handlers. Registration
// happens once at startup; dispatch is map lookups only.
package packet

import (
	"context"

	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// Envelope keys embedded in every frame body.
const (
	KeyChannel = "c"
	KeyAction  = "a"
	KeyParams  = "p"
)

// Packet is one wire packet type. Registered instances act purely as
// prototypes: dispatch clones a fresh instance via NewInstance before
// calling Parse, so no mutable packet state is ever shared across
// connections.
type Packet interface {
	// ID is the packet's numeric identifier, unique within its channel.
	ID() int16
	// Parse populates the packet's fields from the decoded params node.
	Parse(p *payload.Payload) error
	// Build serializes the packet's fields into a params node.
	Build() (*payload.Payload, error)
	// NewInstance returns a fresh zero-state instance of the same type.
	NewInstance() Packet
}

// Session is the per-connection context a handler runs against. The
// concrete implementation carries the player state; handlers that need it
// assert to the richer type.
type Session interface {
	// Send encodes pkt on channelID and queues it on this session's
	// connection. Safe to call from any goroutine.
	Send(channelID byte, pkt Packet) error
}

// Handler processes one parsed inbound packet.
type Handler interface {
	Handle(ctx context.Context, sess Session, pkt Packet) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, sess Session, pkt Packet) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, sess Session, pkt Packet) error {
	return f(ctx, sess, pkt)
}

// Encode wraps a built packet in the channel/action envelope and returns
// the frame body bytes.
func Encode(channelID byte, pkt Packet) ([]byte, error) {
	params, err := pkt.Build()
	if err != nil {
		return nil, err
	}
	env := payload.New()
	env.SetByte(KeyChannel, channelID)
	env.SetShort(KeyAction, pkt.ID())
	env.SetObject(KeyParams, params)
	return env.Encode()
}
