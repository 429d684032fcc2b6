// Package player binds a live connection to an authenticated identity and
// tracks its zone and room membership. A PlayerInfo exists only after the
// login handshake validated; it is destroyed on disconnect.
package player

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/game/events"
	"github.com/draconet/zoneserver/internal/game/world"
	"github.com/draconet/zoneserver/internal/identity"
	"github.com/draconet/zoneserver/internal/protocol/frame"
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
)

// ErrSessionClosed is returned by Send after the session disconnected.
var ErrSessionClosed = errors.New("player: session closed")

// PlayerInfo is the session object bound to one live connection. Exactly
// one per connection; implements packet.Session and world.Participant.
//
// Outbound packets go through an unbounded queue drained by a dedicated
// writer goroutine, so handler goroutines broadcasting to many sessions
// never block on a slow client socket.
type PlayerInfo struct {
	sessionID string
	ident     identity.Identity
	conn      *frame.Conn
	closer    io.Closer
	sink      events.Sink
	logger    *zap.Logger

	// zoneMu serializes zone transitions: setZone is always
	// leave-then-join and never interleaves with another transition for
	// the same player.
	zoneMu sync.Mutex
	zone   *world.Zone

	roomMu    sync.RWMutex
	joined    map[int32]*world.Room
	spectated map[int32]*world.Room

	qmu    sync.Mutex
	qcond  *sync.Cond
	outbox *queue.Queue
	closed bool

	active       atomic.Bool
	disconnected atomic.Bool
}

var (
	_ packet.Session    = (*PlayerInfo)(nil)
	_ world.Participant = (*PlayerInfo)(nil)
)

// New creates a PlayerInfo for a validated identity and starts its writer
// goroutine.
//
// Precondition: ident came from a successful Provider.Validate; conn,
// closer, sink and logger must be non-nil.
func New(ident identity.Identity, conn *frame.Conn, closer io.Closer, sink events.Sink, logger *zap.Logger) *PlayerInfo {
	p := &PlayerInfo{
		sessionID: uuid.NewString(),
		ident:     ident,
		conn:      conn,
		closer:    closer,
		sink:      sink,
		logger:    logger,
		joined:    make(map[int32]*world.Room),
		spectated: make(map[int32]*world.Room),
		outbox:    queue.New(),
	}
	p.qcond = sync.NewCond(&p.qmu)
	go p.writeLoop()
	return p
}

// Activate marks the player as registered with the engine. Only active
// players produce a disconnect notification; a session torn down before
// registration, such as a rejected duplicate login, stays invisible to
// sinks.
func (p *PlayerInfo) Activate() { p.active.Store(true) }

// SessionID returns the unique per-connection session identifier.
func (p *PlayerInfo) SessionID() string { return p.sessionID }

// Identity returns the authenticated account and save identity.
func (p *PlayerInfo) Identity() identity.Identity { return p.ident }

// ParticipantID returns the save identity, which is the in-world player ID.
func (p *PlayerInfo) ParticipantID() string { return p.ident.SaveID }

// DisplayName returns the player's visible name.
func (p *PlayerInfo) DisplayName() string { return p.ident.DisplayName }

// Send encodes pkt and queues it for the writer goroutine. Safe from any
// goroutine; fails with ErrSessionClosed after disconnect.
func (p *PlayerInfo) Send(channelID byte, pkt packet.Packet) error {
	body, err := packet.Encode(channelID, pkt)
	if err != nil {
		return err
	}

	p.qmu.Lock()
	defer p.qmu.Unlock()
	if p.closed {
		return ErrSessionClosed
	}
	p.outbox.Add(body)
	p.qcond.Signal()
	return nil
}

func (p *PlayerInfo) writeLoop() {
	for {
		p.qmu.Lock()
		for p.outbox.Length() == 0 && !p.closed {
			p.qcond.Wait()
		}
		if p.outbox.Length() == 0 {
			p.qmu.Unlock()
			return
		}
		body := p.outbox.Remove().([]byte)
		p.qmu.Unlock()

		if err := p.conn.WriteFrame(body, false); err != nil {
			p.logger.Debug("session write failed",
				zap.String("session", p.sessionID),
				zap.Error(err),
			)
			p.Disconnect()
			return
		}
	}
}

// Zone returns the player's current zone, nil before the first SetZone.
func (p *PlayerInfo) Zone() *world.Zone {
	p.zoneMu.Lock()
	defer p.zoneMu.Unlock()
	return p.zone
}

// SetZone moves the player to z: the leave of the current zone completes
// strictly before the join of the new one, and no other zone change for
// this player can interleave.
func (p *PlayerInfo) SetZone(z *world.Zone) {
	p.zoneMu.Lock()
	defer p.zoneMu.Unlock()
	p.leaveZoneLocked()
	p.zone = z
	if z != nil {
		p.sink.PlayerJoinedZone(z.Name(), p.ParticipantID())
	}
}

// leaveZoneLocked leaves every joined and spectated room, then fires the
// zone-leave notification. Callers hold zoneMu. A second call after the
// first leave is a no-op.
func (p *PlayerInfo) leaveZoneLocked() {
	if p.zone == nil {
		return
	}

	p.roomMu.Lock()
	rooms := make([]*world.Room, 0, len(p.joined)+len(p.spectated))
	for _, r := range p.joined {
		rooms = append(rooms, r)
	}
	for id, r := range p.spectated {
		if _, also := p.joined[id]; !also {
			rooms = append(rooms, r)
		}
	}
	p.joined = make(map[int32]*world.Room)
	p.spectated = make(map[int32]*world.Room)
	p.roomMu.Unlock()

	for _, r := range rooms {
		if r.Leave(p.ParticipantID()) {
			r.Broadcast(sysmsgs.ChannelID, &sysmsgs.PlayerLeaveRoom{
				RoomID:   r.ID(),
				PlayerID: p.ParticipantID(),
			}, p.ParticipantID())
		}
	}

	p.sink.PlayerLeftZone(p.zone.Name(), p.ParticipantID())
	p.zone = nil
}

// JoinRoom enters r as an active player or a spectator, announcing the
// join to the room's other occupants.
func (p *PlayerInfo) JoinRoom(r *world.Room, spectator bool) (*world.User, error) {
	var u *world.User
	var err error
	if spectator {
		u, err = r.JoinSpectator(p)
	} else {
		u, err = r.Join(p)
	}
	if err != nil {
		return nil, err
	}

	p.roomMu.Lock()
	if spectator {
		p.spectated[r.ID()] = r
	} else {
		p.joined[r.ID()] = r
	}
	p.roomMu.Unlock()

	r.Broadcast(sysmsgs.ChannelID, &sysmsgs.PlayerJoinRoom{
		RoomID:      r.ID(),
		PlayerID:    p.ParticipantID(),
		DisplayName: p.DisplayName(),
		Spectator:   spectator,
	}, p.ParticipantID())
	return u, nil
}

// LeaveRoom exits the room in both roles and announces the departure.
func (p *PlayerInfo) LeaveRoom(r *world.Room) {
	p.roomMu.Lock()
	delete(p.joined, r.ID())
	delete(p.spectated, r.ID())
	p.roomMu.Unlock()

	if r.Leave(p.ParticipantID()) {
		r.Broadcast(sysmsgs.ChannelID, &sysmsgs.PlayerLeaveRoom{
			RoomID:   r.ID(),
			PlayerID: p.ParticipantID(),
		}, p.ParticipantID())
	}
}

// JoinedRooms returns a snapshot of rooms joined as an active player.
func (p *PlayerInfo) JoinedRooms() []*world.Room {
	p.roomMu.RLock()
	defer p.roomMu.RUnlock()
	out := make([]*world.Room, 0, len(p.joined))
	for _, r := range p.joined {
		out = append(out, r)
	}
	return out
}

// RoomByID returns a joined or spectated room.
func (p *PlayerInfo) RoomByID(id int32) (*world.Room, bool) {
	p.roomMu.RLock()
	defer p.roomMu.RUnlock()
	if r, ok := p.joined[id]; ok {
		return r, true
	}
	r, ok := p.spectated[id]
	return r, ok
}

// Disconnect leaves the current zone, closes the transport if still open,
// and fires exactly one disconnect notification. Idempotent under
// concurrent triggers: a logout packet racing a socket reset results in a
// single teardown.
func (p *PlayerInfo) Disconnect() {
	if !p.disconnected.CompareAndSwap(false, true) {
		return
	}

	p.zoneMu.Lock()
	p.leaveZoneLocked()
	p.zoneMu.Unlock()

	p.qmu.Lock()
	p.closed = true
	p.qcond.Broadcast()
	p.qmu.Unlock()

	if err := p.closer.Close(); err != nil {
		p.logger.Debug("closing transport",
			zap.String("session", p.sessionID),
			zap.Error(err),
		)
	}

	if p.active.Load() {
		p.logger.Info("player disconnected",
			zap.String("session", p.sessionID),
			zap.String("player", p.ParticipantID()),
		)
		p.sink.PlayerDisconnected(p.ParticipantID())
	}
}
