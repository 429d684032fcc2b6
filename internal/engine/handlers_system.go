package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/game/player"
	"github.com/draconet/zoneserver/internal/game/world"
	"github.com/draconet/zoneserver/internal/protocol/frame"
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
)

// serverError pushes a server-originated error notice to one session.
func serverError(sess packet.Session, roomID int32, text string) {
	_ = sess.Send(sysmsgs.ChannelID, &sysmsgs.GenericMessage{
		MsgType: sysmsgs.MsgTypeServerError,
		RoomID:  roomID,
		Text:    text,
	})
}

// handleHandshake issues a fresh session token and tells the client the
// server's compression cutoff.
func (e *Engine) handleHandshake(_ context.Context, sess packet.Session, pkt packet.Packet) error {
	cs := sess.(*connSession)
	req := pkt.(*sysmsgs.HandshakeRequest)

	// A repeated handshake keeps the token issued by the first one.
	token := cs.sessionToken()
	if token == "" {
		token = uuid.NewString()
		cs.setSessionToken(token)
	}

	cs.logger.Debug("handshake",
		zap.String("api_version", req.APIVersion),
		zap.String("client_type", req.ClientType),
	)

	return sess.Send(sysmsgs.ChannelID, &sysmsgs.HandshakeResponse{
		SessionToken:         token,
		CompressionThreshold: int32(frame.CompressThreshold),
	})
}

// handleLogin validates the token, binds a player to the connection and
// enters the hosted zone. Any failure sends a LoginResponse with success
// false and closes the connection; a provider that does not answer within
// the login timeout counts as a failure.
func (e *Engine) handleLogin(ctx context.Context, sess packet.Session, pkt packet.Packet) error {
	cs := sess.(*connSession)
	req := pkt.(*sysmsgs.LoginRequest)

	if cs.authenticated() {
		cs.logger.Warn("login on already authenticated session, dropping")
		return nil
	}

	fail := func(reason string) error {
		_ = sess.Send(sysmsgs.ChannelID, &sysmsgs.LoginResponse{Success: false, Reason: reason})
		cs.closer.Close()
		return nil
	}

	if req.ZoneName != e.zone.Name() {
		cs.logger.Info("login for unknown zone", zap.String("zone", req.ZoneName))
		return fail("unknown zone")
	}

	vctx, cancel := context.WithTimeout(ctx, e.cfg.Server.LoginTimeout)
	defer cancel()
	ident, err := e.provider.Validate(vctx, req.Token)
	if err != nil {
		cs.logger.Info("login rejected", zap.Error(err))
		return fail("invalid session token")
	}

	p := player.New(ident, cs.conn, cs.closer, e.sink, e.logger)
	if err := e.addPlayer(p); err != nil {
		cs.logger.Info("login rejected", zap.Error(err))
		// The session is not bound, so this write is synchronous and
		// lands before Disconnect closes the transport.
		_ = sess.Send(sysmsgs.ChannelID, &sysmsgs.LoginResponse{Success: false, Reason: "already logged in"})
		p.Disconnect()
		return nil
	}

	p.Activate()
	cs.bindPlayer(p)
	p.SetZone(e.zone)

	cs.logger.Info("player logged in",
		zap.String("player", p.ParticipantID()),
		zap.String("display_name", p.DisplayName()),
		zap.String("session", p.SessionID()),
	)

	return p.Send(sysmsgs.ChannelID, &sysmsgs.LoginResponse{
		Success:     true,
		PlayerID:    p.ParticipantID(),
		DisplayName: p.DisplayName(),
	})
}

// handleLogout tears the session down; the closed transport ends the read
// loop, which finishes the cleanup.
func (e *Engine) handleLogout(_ context.Context, sess packet.Session, _ packet.Packet) error {
	cs := sess.(*connSession)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}
	cs.logger.Info("player logging out", zap.String("player", p.ParticipantID()))
	p.Disconnect()
	return nil
}

// handleGenericMessage relays a public chat line to the named room.
func (e *Engine) handleGenericMessage(_ context.Context, sess packet.Session, pkt packet.Packet) error {
	cs := sess.(*connSession)
	msg := pkt.(*sysmsgs.GenericMessage)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	if msg.MsgType != sysmsgs.MsgTypePublicChat {
		cs.logger.Debug("dropping serverbound generic message",
			zap.Int16("msg_type", msg.MsgType),
		)
		return nil
	}

	r, ok := p.RoomByID(msg.RoomID)
	if !ok {
		serverError(sess, msg.RoomID, "not in room")
		return nil
	}

	out := &sysmsgs.GenericMessage{
		MsgType:  sysmsgs.MsgTypePublicChat,
		SenderID: p.ParticipantID(),
		RoomID:   r.ID(),
		Text:     msg.Text,
	}
	r.Broadcast(sysmsgs.ChannelID, out, p.ParticipantID())
	e.sink.ChatMessageSent(e.zone.Name(), r.ID(), p.ParticipantID(), msg.Text)
	return nil
}

// handleSetRoomVariable applies a room variable change or removal on
// behalf of the sender. The room broadcasts the result itself.
func (e *Engine) handleSetRoomVariable(_ context.Context, sess packet.Session, pkt packet.Packet) error {
	cs := sess.(*connSession)
	req := pkt.(*sysmsgs.SetRoomVariable)
	p := cs.boundPlayer()
	if p == nil {
		return nil
	}

	r, ok := p.RoomByID(req.RoomID)
	if !ok {
		serverError(sess, req.RoomID, "not in room")
		return nil
	}

	if req.Removed {
		r.RemoveVariable(p, req.Var.Name)
		return nil
	}
	r.SetVariable(p, req.Var)
	return nil
}

// joinError reports a failed room join to the requesting client.
func joinError(sess packet.Session, err error) {
	switch {
	case errors.Is(err, world.ErrRoomFull):
		serverError(sess, -1, "room is full")
	case errors.Is(err, world.ErrAlreadyJoined):
		serverError(sess, -1, "already in room")
	default:
		serverError(sess, -1, fmt.Sprintf("join failed: %v", err))
	}
}
