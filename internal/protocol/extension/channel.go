package extension

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/protocol/packet"
)

type msgKey struct {
	ext string
	cmd string
}

// MessageChannel is the extension channel specialization: the outer packet
// registry only resolves "this is an extension message"; the composite
// (extension name, command) table built here resolves the concrete message
// type and handler. Lookup is one map access per inbound message.
type MessageChannel struct {
	channel    *packet.Channel
	prototypes map[msgKey]Message
	handlers   map[msgKey]Handler
	logger     *zap.Logger
}

// NewMessageChannel creates the extension channel and registers the single
// wire packet with itself as the outer handler.
//
// Postcondition: Channel() is ready to be added to the packet registry.
func NewMessageChannel(logger *zap.Logger) (*MessageChannel, error) {
	mc := &MessageChannel{
		channel:    packet.NewChannel(ChannelID),
		prototypes: make(map[msgKey]Message),
		handlers:   make(map[msgKey]Handler),
		logger:     logger,
	}
	if err := mc.channel.Register(&Packet{}, mc); err != nil {
		return nil, err
	}
	return mc, nil
}

// Channel returns the underlying packet channel for registry wiring.
func (mc *MessageChannel) Channel() *packet.Channel { return mc.channel }

// Register binds a message prototype and its handler under
// (ext, proto.Command()).
//
// Postcondition: Returns an error if the composite key is already taken.
func (mc *MessageChannel) Register(ext string, proto Message, h Handler) error {
	key := msgKey{ext: ext, cmd: proto.Command()}
	if _, dup := mc.prototypes[key]; dup {
		return fmt.Errorf("extension: message (%q, %q) already registered", ext, proto.Command())
	}
	mc.prototypes[key] = proto
	mc.handlers[key] = h
	return nil
}

// Handle implements packet.Handler for the outer extension packet: it
// resolves the composite key, clones and parses the concrete message, and
// invokes the registered handler. An unregistered composite key drops the
// message and leaves the connection open.
func (mc *MessageChannel) Handle(ctx context.Context, sess packet.Session, pkt packet.Packet) error {
	ext, ok := pkt.(*Packet)
	if !ok {
		return fmt.Errorf("extension: unexpected packet type %T", pkt)
	}

	key := msgKey{ext: ext.Ext, cmd: ext.Cmd}
	proto, ok := mc.prototypes[key]
	if !ok {
		mc.logger.Debug("dropping unregistered extension message",
			zap.String("extension", ext.Ext),
			zap.String("command", ext.Cmd),
		)
		return nil
	}

	msg := proto.NewInstance()
	if err := msg.Parse(ext.Params); err != nil {
		mc.logger.Warn("dropping malformed extension message",
			zap.String("extension", ext.Ext),
			zap.String("command", ext.Cmd),
			zap.Error(err),
		)
		return nil
	}

	return mc.handlers[key].Handle(ctx, sess, msg, ext.RoomID)
}
