package packet

import (
	"fmt"
	"reflect"
)

// Channel groups packet types sharing one dispatch table. Channel 0 is the
// system channel, channel 1 carries extension messages.
type Channel struct {
	id         byte
	prototypes map[int16]Packet
	handlers   map[reflect.Type]Handler
}

// NewChannel creates an empty channel with the given ID.
func NewChannel(id byte) *Channel {
	return &Channel{
		id:         id,
		prototypes: make(map[int16]Packet),
		handlers:   make(map[reflect.Type]Handler),
	}
}

// ID returns the channel identifier.
func (c *Channel) ID() byte { return c.id }

// RegisterPacket stores proto as the factory for its packet ID.
//
// Postcondition: Returns an error if the ID is already registered.
func (c *Channel) RegisterPacket(proto Packet) error {
	if existing, dup := c.prototypes[proto.ID()]; dup {
		return fmt.Errorf("channel %d: packet ID %d already registered to %T", c.id, proto.ID(), existing)
	}
	c.prototypes[proto.ID()] = proto
	return nil
}

// RegisterHandler binds h to proto's concrete type. One handler per packet
// class; a duplicate registration is a startup error, not a silent replace.
func (c *Channel) RegisterHandler(proto Packet, h Handler) error {
	typ := reflect.TypeOf(proto)
	if _, dup := c.handlers[typ]; dup {
		return fmt.Errorf("channel %d: handler for %s already registered", c.id, typ)
	}
	c.handlers[typ] = h
	return nil
}

// Register is RegisterPacket plus RegisterHandler in one call.
func (c *Channel) Register(proto Packet, h Handler) error {
	if err := c.RegisterPacket(proto); err != nil {
		return err
	}
	return c.RegisterHandler(proto, h)
}

// Instantiate clones a fresh packet for the given ID.
func (c *Channel) Instantiate(id int16) (Packet, bool) {
	proto, ok := c.prototypes[id]
	if !ok {
		return nil, false
	}
	return proto.NewInstance(), true
}

// HandlerFor resolves the handler registered for pkt's concrete type.
func (c *Channel) HandlerFor(pkt Packet) (Handler, bool) {
	h, ok := c.handlers[reflect.TypeOf(pkt)]
	return h, ok
}

// Registry maps channel IDs to channels. Channel IDs are unique
// server-wide.
type Registry struct {
	channels map[byte]*Channel
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[byte]*Channel)}
}

// AddChannel registers ch.
//
// Postcondition: Returns an error if the channel ID is already taken.
func (r *Registry) AddChannel(ch *Channel) error {
	if _, dup := r.channels[ch.ID()]; dup {
		return fmt.Errorf("registry: channel ID %d already registered", ch.ID())
	}
	r.channels[ch.ID()] = ch
	return nil
}

// Channel looks up a channel by ID.
func (r *Registry) Channel(id byte) (*Channel, bool) {
	ch, ok := r.channels[id]
	return ch, ok
}
