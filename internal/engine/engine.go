// Package engine binds the protocol layer to the game world: it owns the
// per-connection read loop, the login flow against the identity provider,
// and the handlers behind every registered packet and extension message.
package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/config"
	"github.com/draconet/zoneserver/internal/game/events"
	"github.com/draconet/zoneserver/internal/game/player"
	"github.com/draconet/zoneserver/internal/game/world"
	"github.com/draconet/zoneserver/internal/identity"
	"github.com/draconet/zoneserver/internal/protocol/extension"
	"github.com/draconet/zoneserver/internal/protocol/extmsgs"
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
)

// ChatFilter screens outbound chat lines. The returned string is the text
// as it will be relayed; a non-nil error blocks the line and its message is
// shown to the author as the block reason.
type ChatFilter interface {
	Filter(sender identity.Identity, text string) (string, error)
}

// nopFilter relays every line unchanged.
type nopFilter struct{}

func (nopFilter) Filter(_ identity.Identity, text string) (string, error) { return text, nil }

// Position is a player's positional state within a room, kept in the
// user's object bag because it churns far faster than ordinary variables.
type Position struct {
	X, Y, Z  float64
	Rotation float64
}

// Engine routes authenticated traffic into one hosted zone.
type Engine struct {
	cfg      config.Config
	manager  *world.Manager
	zone     *world.Zone
	provider identity.Provider
	sink     events.Sink
	logger   *zap.Logger

	dispatcher *packet.Dispatcher
	msgs       *extension.MessageChannel
	filter     ChatFilter

	mu      sync.RWMutex
	players map[string]*player.PlayerInfo // by participant ID
	byName  map[string]*player.PlayerInfo // by display name
}

// New wires the full dispatch table for one hosted zone.
//
// Precondition: manager, zone, provider, sink and logger must be non-nil.
// Postcondition: Returns an engine ready to serve sessions, or a
// registration error (duplicate packet ID or extension command).
func New(cfg config.Config, manager *world.Manager, zone *world.Zone, provider identity.Provider, sink events.Sink, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		manager:  manager,
		zone:     zone,
		provider: provider,
		sink:     sink,
		logger:   logger,
		filter:   nopFilter{},
		players:  make(map[string]*player.PlayerInfo),
		byName:   make(map[string]*player.PlayerInfo),
	}

	system := packet.NewChannel(sysmsgs.ChannelID)
	regs := []struct {
		proto packet.Packet
		h     packet.Handler
	}{
		{&sysmsgs.HandshakeRequest{}, packet.HandlerFunc(e.handleHandshake)},
		{&sysmsgs.LoginRequest{}, packet.HandlerFunc(e.handleLogin)},
		{&sysmsgs.Logout{}, packet.HandlerFunc(e.handleLogout)},
		{&sysmsgs.GenericMessage{}, packet.HandlerFunc(e.handleGenericMessage)},
		{&sysmsgs.SetRoomVariable{}, packet.HandlerFunc(e.handleSetRoomVariable)},
	}
	for _, r := range regs {
		if err := system.Register(r.proto, r.h); err != nil {
			return nil, fmt.Errorf("registering system packets: %w", err)
		}
	}

	msgs, err := extension.NewMessageChannel(logger)
	if err != nil {
		return nil, fmt.Errorf("creating extension channel: %w", err)
	}
	e.msgs = msgs

	engineMsgs := []struct {
		proto extension.Message
		h     extension.Handler
	}{
		{&extmsgs.JoinRoom{}, extension.HandlerFunc(e.handleJoinRoom)},
		{&extmsgs.JoinOwnerRoom{}, extension.HandlerFunc(e.handleJoinOwnerRoom)},
		{&extmsgs.TimeSync{}, extension.HandlerFunc(e.handleTimeSync)},
		{&extmsgs.DateSync{}, extension.HandlerFunc(e.handleDateSync)},
		{&extmsgs.SetUserVars{}, extension.HandlerFunc(e.handleSetUserVars)},
		{&extmsgs.SetPosVars{}, extension.HandlerFunc(e.handleSetPosVars)},
		{&extmsgs.ChatSend{}, extension.HandlerFunc(e.handleChatSend)},
		{&extmsgs.ChatModerate{}, extension.HandlerFunc(e.handleChatModerate)},
	}
	for _, r := range engineMsgs {
		if err := msgs.Register(extension.EngineExtension, r.proto, r.h); err != nil {
			return nil, fmt.Errorf("registering engine messages: %w", err)
		}
	}

	registry := packet.NewRegistry()
	if err := registry.AddChannel(system); err != nil {
		return nil, err
	}
	if err := registry.AddChannel(msgs.Channel()); err != nil {
		return nil, err
	}

	e.dispatcher = packet.NewDispatcher(registry, e.gate, logger)
	return e, nil
}

// Messages exposes the extension channel so game extensions can register
// their namespaced messages before the engine starts serving.
func (e *Engine) Messages() *extension.MessageChannel { return e.msgs }

// SetChatFilter replaces the chat screening hook. Call before serving.
func (e *Engine) SetChatFilter(f ChatFilter) {
	if f != nil {
		e.filter = f
	}
}

// Zone returns the hosted zone.
func (e *Engine) Zone() *world.Zone { return e.zone }

// gate rejects everything except handshake and login on connections that
// have not authenticated yet.
func (e *Engine) gate(sess packet.Session, channelID byte, packetID int16) error {
	cs, ok := sess.(*connSession)
	if !ok || cs.authenticated() {
		return nil
	}
	if channelID == sysmsgs.ChannelID && (packetID == sysmsgs.IDHandshake || packetID == sysmsgs.IDLogin) {
		return nil
	}
	return &packet.SessionStateError{ChannelID: channelID, PacketID: packetID}
}

// Player resolves a connected player by participant ID.
func (e *Engine) Player(participantID string) (*player.PlayerInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.players[participantID]
	return p, ok
}

// PlayerByName resolves a connected player by display name.
func (e *Engine) PlayerByName(displayName string) (*player.PlayerInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.byName[displayName]
	return p, ok
}

// PlayerCount returns the number of authenticated sessions.
func (e *Engine) PlayerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.players)
}

// addPlayer registers p, failing if the identity is already connected.
func (e *Engine) addPlayer(p *player.PlayerInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.players[p.ParticipantID()]; dup {
		return fmt.Errorf("player %s already connected", p.ParticipantID())
	}
	e.players[p.ParticipantID()] = p
	e.byName[p.DisplayName()] = p
	return nil
}

// removePlayer drops p from the registry if it is still the registered
// session for its identity.
func (e *Engine) removePlayer(p *player.PlayerInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.players[p.ParticipantID()]; ok && cur == p {
		delete(e.players, p.ParticipantID())
		delete(e.byName, p.DisplayName())
	}
}
