// Package extension implements the second dispatch level of the protocol:
// many named application messages multiplexed inside the single extension
// wire packet on channel 1. Messages are keyed by the composite
// (extension name, command); the empty extension name denotes core engine
// messages such as time sync.
package extension

import (
	"context"

	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// ChannelID is the wire channel carrying extension messages.
const ChannelID byte = 1

// PacketID is the single packet ID used on the extension channel.
const PacketID int16 = 12

// EngineExtension is the reserved name for non-namespaced core messages.
const EngineExtension = ""

// Body keys of the extension packet.
const (
	KeyExtension = "e"
	KeyCommand   = "c"
	KeyRoom      = "r"
	KeyParams    = "p"
)

// NoRoom is the RoomID value when the message carries no room scope.
const NoRoom int32 = -1

// Message is one application-level message. Like packet.Packet, registered
// instances are prototypes cloned per dispatch.
type Message interface {
	// Command is the textual message ID, constant per type (e.g. "JA").
	Command() string
	Parse(p *payload.Payload) error
	Build() (*payload.Payload, error)
	NewInstance() Message
}

// Handler processes one parsed extension message.
type Handler interface {
	Handle(ctx context.Context, sess packet.Session, msg Message, roomID int32) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, sess packet.Session, msg Message, roomID int32) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, sess packet.Session, msg Message, roomID int32) error {
	return f(ctx, sess, msg, roomID)
}

// Packet is the one wire packet type carried on the extension channel. Its
// body names the target message and nests that message's own payload one
// level down.
type Packet struct {
	Ext     string
	Cmd     string
	RoomID  int32
	Params  *payload.Payload
}

var _ packet.Packet = (*Packet)(nil)

// ID returns the extension packet's wire ID.
func (p *Packet) ID() int16 { return PacketID }

// Parse reads the extension envelope. The extension name and room ID are
// optional; the command and nested params are required.
func (p *Packet) Parse(pl *payload.Payload) error {
	p.Ext = EngineExtension
	if pl.Has(KeyExtension) {
		ext, err := pl.GetString(KeyExtension)
		if err != nil {
			return err
		}
		p.Ext = ext
	}

	cmd, err := pl.GetString(KeyCommand)
	if err != nil {
		return err
	}
	p.Cmd = cmd

	p.RoomID = NoRoom
	if pl.Has(KeyRoom) {
		room, err := pl.GetInt(KeyRoom)
		if err != nil {
			return err
		}
		p.RoomID = room
	}

	params, err := pl.GetObject(KeyParams)
	if err != nil {
		return err
	}
	p.Params = params
	return nil
}

// Build writes the extension envelope.
func (p *Packet) Build() (*payload.Payload, error) {
	pl := payload.New()
	if p.Ext != EngineExtension {
		pl.SetString(KeyExtension, p.Ext)
	}
	pl.SetString(KeyCommand, p.Cmd)
	if p.RoomID != NoRoom {
		pl.SetInt(KeyRoom, p.RoomID)
	}
	params := p.Params
	if params == nil {
		params = payload.New()
	}
	pl.SetObject(KeyParams, params)
	return pl, nil
}

// NewInstance returns a fresh extension packet.
func (p *Packet) NewInstance() packet.Packet { return &Packet{} }

// Send builds msg, wraps it in an extension packet and queues it on sess.
// roomID may be NoRoom.
func Send(sess packet.Session, ext string, msg Message, roomID int32) error {
	params, err := msg.Build()
	if err != nil {
		return err
	}
	return sess.Send(ChannelID, &Packet{
		Ext:    ext,
		Cmd:    msg.Command(),
		RoomID: roomID,
		Params: params,
	})
}
