// Package extmsgs defines the concrete extension messages multiplexed over
// the extension channel: room joining, engine time sync, variable updates
// and the chat family.
package extmsgs

import "github.com/draconet/zoneserver/internal/protocol/extension"

// Textual message IDs.
const (
	CmdJoinRoom      = "JA"
	CmdJoinOwnerRoom = "JO"
	CmdTimeSync      = "PNG"
	CmdDateSync      = "DT"
	CmdSetUserVars   = "SUV"
	CmdSetPosVars    = "SPV"
	CmdChatSend      = "SCM"
	CmdChatReceive   = "CMR"
	CmdChatAck       = "SCA"
	CmdChatBlocked   = "SCF"
	CmdChatModerate  = "SMM"
)

var (
	_ extension.Message = (*JoinRoom)(nil)
	_ extension.Message = (*JoinOwnerRoom)(nil)
	_ extension.Message = (*TimeSync)(nil)
	_ extension.Message = (*DateSync)(nil)
	_ extension.Message = (*SetUserVars)(nil)
	_ extension.Message = (*SetPosVars)(nil)
	_ extension.Message = (*ChatSend)(nil)
	_ extension.Message = (*ChatReceive)(nil)
	_ extension.Message = (*ChatAck)(nil)
	_ extension.Message = (*ChatBlocked)(nil)
	_ extension.Message = (*ChatModerate)(nil)
)
