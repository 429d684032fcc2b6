package sysmsgs

import (
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/payload"
	"github.com/draconet/zoneserver/internal/protocol/vars"
)

// GenericMessage is the multi-purpose message packet (public chat, admin
// notices, buddy messages) distinguished by MsgType.
type GenericMessage struct {
	MsgType  int16
	SenderID string
	RoomID   int32
	Text     string
}

func (p *GenericMessage) ID() int16 { return IDGenericMessage }

func (p *GenericMessage) Parse(pl *payload.Payload) error {
	var err error
	if p.MsgType, err = pl.GetShort("mt"); err != nil {
		return err
	}
	if p.SenderID, err = pl.GetString("sid"); err != nil {
		return err
	}
	if p.RoomID, err = pl.GetInt("r"); err != nil {
		return err
	}
	if p.Text, err = pl.GetString("txt"); err != nil {
		return err
	}
	return nil
}

func (p *GenericMessage) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetShort("mt", p.MsgType)
	pl.SetString("sid", p.SenderID)
	pl.SetInt("r", p.RoomID)
	pl.SetString("txt", p.Text)
	return pl, nil
}

func (p *GenericMessage) NewInstance() packet.Packet { return &GenericMessage{} }

// SetRoomVariable sets or removes one room variable. Serverbound when a
// client changes a variable, clientbound when the change is broadcast to
// the room's other occupants.
type SetRoomVariable struct {
	RoomID int32
	// Removed marks a removal notification: Var carries only the name.
	Removed bool
	Var     vars.Variable
}

func (p *SetRoomVariable) ID() int16 { return IDSetRoomVariable }

func (p *SetRoomVariable) Parse(pl *payload.Payload) error {
	var err error
	if p.RoomID, err = pl.GetInt("r"); err != nil {
		return err
	}
	if pl.Has("del") {
		if p.Removed, err = pl.GetBool("del"); err != nil {
			return err
		}
	}
	node, err := pl.GetObject("var")
	if err != nil {
		return err
	}
	if p.Removed {
		name, err := node.GetString(vars.KeyName)
		if err != nil {
			return err
		}
		p.Var = vars.Variable{Name: name}
		return nil
	}
	if p.Var, err = vars.FromPayload(node); err != nil {
		return err
	}
	return nil
}

func (p *SetRoomVariable) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetInt("r", p.RoomID)
	if p.Removed {
		pl.SetBool("del", true)
		node := payload.New()
		node.SetString(vars.KeyName, p.Var.Name)
		pl.SetObject("var", node)
		return pl, nil
	}
	node, err := p.Var.ToPayload()
	if err != nil {
		return nil, err
	}
	pl.SetObject("var", node)
	return pl, nil
}

func (p *SetRoomVariable) NewInstance() packet.Packet { return &SetRoomVariable{} }

// PlayerJoinRoom announces a player entering a room. Clientbound only.
type PlayerJoinRoom struct {
	RoomID      int32
	PlayerID    string
	DisplayName string
	Spectator   bool
}

func (p *PlayerJoinRoom) ID() int16 { return IDPlayerJoinRoom }

func (p *PlayerJoinRoom) Parse(pl *payload.Payload) error {
	var err error
	if p.RoomID, err = pl.GetInt("r"); err != nil {
		return err
	}
	if p.PlayerID, err = pl.GetString("id"); err != nil {
		return err
	}
	if p.DisplayName, err = pl.GetString("dn"); err != nil {
		return err
	}
	if p.Spectator, err = pl.GetBool("sp"); err != nil {
		return err
	}
	return nil
}

func (p *PlayerJoinRoom) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetInt("r", p.RoomID)
	pl.SetString("id", p.PlayerID)
	pl.SetString("dn", p.DisplayName)
	pl.SetBool("sp", p.Spectator)
	return pl, nil
}

func (p *PlayerJoinRoom) NewInstance() packet.Packet { return &PlayerJoinRoom{} }

// PlayerLeaveRoom announces a player leaving a room. Clientbound only.
type PlayerLeaveRoom struct {
	RoomID   int32
	PlayerID string
}

func (p *PlayerLeaveRoom) ID() int16 { return IDPlayerLeaveRoom }

func (p *PlayerLeaveRoom) Parse(pl *payload.Payload) error {
	var err error
	if p.RoomID, err = pl.GetInt("r"); err != nil {
		return err
	}
	if p.PlayerID, err = pl.GetString("id"); err != nil {
		return err
	}
	return nil
}

func (p *PlayerLeaveRoom) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetInt("r", p.RoomID)
	pl.SetString("id", p.PlayerID)
	return pl, nil
}

func (p *PlayerLeaveRoom) NewInstance() packet.Packet { return &PlayerLeaveRoom{} }

// RoomDelete announces a room being torn down. Clientbound only.
type RoomDelete struct {
	RoomID int32
}

func (p *RoomDelete) ID() int16 { return IDRoomDelete }

func (p *RoomDelete) Parse(pl *payload.Payload) error {
	var err error
	if p.RoomID, err = pl.GetInt("r"); err != nil {
		return err
	}
	return nil
}

func (p *RoomDelete) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetInt("r", p.RoomID)
	return pl, nil
}

func (p *RoomDelete) NewInstance() packet.Packet { return &RoomDelete{} }
