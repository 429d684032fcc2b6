// Package sysmsgs defines the concrete wire packets of the system channel
// (channel 0). Serverbound and clientbound packets share the same ID space;
// only serverbound types are registered for dispatch.
package sysmsgs

import "github.com/draconet/zoneserver/internal/protocol/packet"

// System channel ID.
const ChannelID byte = 0

// Wire packet IDs on the system channel.
const (
	IDHandshake       int16 = 0
	IDLogin           int16 = 1
	IDGenericMessage  int16 = 7
	IDSetRoomVariable int16 = 11
	IDLogout          int16 = 26
	IDPlayerJoinRoom  int16 = 1000
	IDPlayerLeaveRoom int16 = 1002
	IDRoomDelete      int16 = 1003
)

// GenericMessage type discriminators.
const (
	MsgTypePublicChat  int16 = 0
	MsgTypeAdminNotice int16 = 1
	MsgTypeServerError int16 = 2
)

var (
	_ packet.Packet = (*HandshakeRequest)(nil)
	_ packet.Packet = (*HandshakeResponse)(nil)
	_ packet.Packet = (*LoginRequest)(nil)
	_ packet.Packet = (*LoginResponse)(nil)
	_ packet.Packet = (*GenericMessage)(nil)
	_ packet.Packet = (*SetRoomVariable)(nil)
	_ packet.Packet = (*Logout)(nil)
	_ packet.Packet = (*PlayerJoinRoom)(nil)
	_ packet.Packet = (*PlayerLeaveRoom)(nil)
	_ packet.Packet = (*RoomDelete)(nil)
)
