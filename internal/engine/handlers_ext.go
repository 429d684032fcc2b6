package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/game/player"
	"github.com/draconet/zoneserver/internal/game/world"
	"github.com/draconet/zoneserver/internal/protocol/extension"
	"github.com/draconet/zoneserver/internal/protocol/extmsgs"
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
)

// handleJoinRoom enters the named room. The joiner gets their own
// PlayerJoinRoom as confirmation; other occupants get the broadcast.
func (e *Engine) handleJoinRoom(_ context.Context, sess packet.Session, msg extension.Message, _ int32) error {
	cs := sess.(*connSession)
	req := msg.(*extmsgs.JoinRoom)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	r, ok := e.zone.FindRoom(req.RoomName)
	if !ok {
		serverError(sess, -1, "no such room")
		return nil
	}

	if _, err := p.JoinRoom(r, req.Spectator); err != nil {
		joinError(sess, err)
		return nil
	}

	return p.Send(sysmsgs.ChannelID, &sysmsgs.PlayerJoinRoom{
		RoomID:      r.ID(),
		PlayerID:    p.ParticipantID(),
		DisplayName: p.DisplayName(),
		Spectator:   req.Spectator,
	})
}

// handleJoinOwnerRoom enters the room the named player currently occupies.
func (e *Engine) handleJoinOwnerRoom(_ context.Context, sess packet.Session, msg extension.Message, _ int32) error {
	cs := sess.(*connSession)
	req := msg.(*extmsgs.JoinOwnerRoom)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	owner, ok := e.PlayerByName(req.OwnerName)
	if !ok {
		serverError(sess, -1, "owner not connected")
		return nil
	}
	rooms := owner.JoinedRooms()
	if len(rooms) == 0 {
		serverError(sess, -1, "owner not in a room")
		return nil
	}
	r := rooms[0]

	if _, err := p.JoinRoom(r, false); err != nil {
		joinError(sess, err)
		return nil
	}

	return p.Send(sysmsgs.ChannelID, &sysmsgs.PlayerJoinRoom{
		RoomID:      r.ID(),
		PlayerID:    p.ParticipantID(),
		DisplayName: p.DisplayName(),
	})
}

// handleTimeSync answers with the server clock in epoch milliseconds.
func (e *Engine) handleTimeSync(_ context.Context, sess packet.Session, _ extension.Message, _ int32) error {
	return extension.Send(sess, extension.EngineExtension, &extmsgs.TimeSync{
		ServerTimeMillis: time.Now().UnixMilli(),
	}, extension.NoRoom)
}

// handleDateSync answers with the formatted server date.
func (e *Engine) handleDateSync(_ context.Context, sess packet.Session, _ extension.Message, _ int32) error {
	return extension.Send(sess, extension.EngineExtension, &extmsgs.DateSync{
		Date: time.Now().Format(time.RFC1123),
	}, extension.NoRoom)
}

// handleSetUserVars applies variable updates to the sender's presence in
// the scoped room and fans them out to the other occupants.
func (e *Engine) handleSetUserVars(_ context.Context, sess packet.Session, msg extension.Message, roomID int32) error {
	cs := sess.(*connSession)
	req := msg.(*extmsgs.SetUserVars)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	r, u, ok := e.presence(p, roomID)
	if !ok {
		serverError(sess, roomID, "not in room")
		return nil
	}

	names := make([]string, 0, len(req.Vars))
	for _, v := range req.Vars {
		u.SetVariable(v)
		names = append(names, v.Name)
	}

	out := &extmsgs.SetUserVars{PlayerID: p.ParticipantID(), Vars: req.Vars}
	e.fanOut(r, out, roomID, p.ParticipantID())
	e.sink.UserVariablesChanged(e.zone.Name(), roomID, p.ParticipantID(), names)
	return nil
}

// handleSetPosVars stashes the sender's position in their object bag and
// fans the update out.
func (e *Engine) handleSetPosVars(_ context.Context, sess packet.Session, msg extension.Message, roomID int32) error {
	cs := sess.(*connSession)
	req := msg.(*extmsgs.SetPosVars)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	r, u, ok := e.presence(p, roomID)
	if !ok {
		serverError(sess, roomID, "not in room")
		return nil
	}

	u.StoreObject(Position{X: req.X, Y: req.Y, Z: req.Z, Rotation: req.Rotation})

	out := &extmsgs.SetPosVars{
		PlayerID: p.ParticipantID(),
		X:        req.X, Y: req.Y, Z: req.Z,
		Rotation: req.Rotation,
	}
	e.fanOut(r, out, roomID, p.ParticipantID())
	return nil
}

// handleChatSend screens the line, relays it to the room and acks or
// blocks the author.
func (e *Engine) handleChatSend(_ context.Context, sess packet.Session, msg extension.Message, roomID int32) error {
	cs := sess.(*connSession)
	req := msg.(*extmsgs.ChatSend)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	r, _, ok := e.presence(p, roomID)
	if !ok {
		serverError(sess, roomID, "not in room")
		return nil
	}

	relayed, err := e.filter.Filter(p.Identity(), req.Text)
	if err != nil {
		cs.logger.Info("chat line blocked",
			zap.String("player", p.ParticipantID()),
			zap.Error(err),
		)
		return extension.Send(sess, extension.EngineExtension, &extmsgs.ChatBlocked{
			Reason: err.Error(),
		}, roomID)
	}

	out := &extmsgs.ChatReceive{
		SenderID:   p.ParticipantID(),
		SenderName: p.DisplayName(),
		Text:       relayed,
	}
	e.fanOut(r, out, roomID, p.ParticipantID())
	e.sink.ChatMessageSent(e.zone.Name(), roomID, p.ParticipantID(), relayed)

	return extension.Send(sess, extension.EngineExtension, &extmsgs.ChatAck{
		Accepted: true,
		Text:     relayed,
	}, roomID)
}

// handleChatModerate forwards a moderation action to the event sink and
// notifies the target if they are connected.
func (e *Engine) handleChatModerate(_ context.Context, sess packet.Session, msg extension.Message, roomID int32) error {
	cs := sess.(*connSession)
	req := msg.(*extmsgs.ChatModerate)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	cs.logger.Info("chat moderation",
		zap.String("moderator", p.ParticipantID()),
		zap.String("target", req.TargetID),
		zap.String("action", req.Action),
	)
	e.sink.ChatModerated(e.zone.Name(), req.TargetID, req.Action, req.Reason)

	if target, ok := e.Player(req.TargetID); ok {
		reason := req.Reason
		if reason == "" {
			reason = req.Action
		}
		_ = extension.Send(target, extension.EngineExtension, &extmsgs.ChatBlocked{
			Reason: reason,
		}, roomID)
	}
	return nil
}

// presence resolves the player's user record in a room they occupy, in
// either role.
func (e *Engine) presence(p *player.PlayerInfo, roomID int32) (*world.Room, *world.User, bool) {
	r, ok := p.RoomByID(roomID)
	if !ok {
		return nil, nil, false
	}
	if u, ok := r.UserFor(p.ParticipantID()); ok {
		return r, u, true
	}
	if u, ok := r.SpectatorFor(p.ParticipantID()); ok {
		return r, u, true
	}
	return nil, nil, false
}

// fanOut broadcasts an extension message to a room's occupants.
func (e *Engine) fanOut(r *world.Room, msg extension.Message, roomID int32, excludeID string) {
	params, err := msg.Build()
	if err != nil {
		e.logger.Error("building fan-out message",
			zap.String("command", msg.Command()),
			zap.Error(err),
		)
		return
	}
	r.Broadcast(extension.ChannelID, &extension.Packet{
		Ext:    extension.EngineExtension,
		Cmd:    msg.Command(),
		RoomID: roomID,
		Params: params,
	}, excludeID)
}
