package world

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/game/events"
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
	"github.com/draconet/zoneserver/internal/protocol/vars"
)

// ErrRoomFull is returned when joining would exceed the room's capacity.
var ErrRoomFull = errors.New("world: room is full")

// ErrAlreadyJoined is returned when a player is already present in the
// targeted occupant set. A room hosts the same player at most once as an
// active user and once as a spectator.
var ErrAlreadyJoined = errors.New("world: player already in room")

// Room is a joinable space with variables and two disjoint occupant sets.
// All methods are safe for concurrent use. Broadcasts snapshot the occupant
// list under the lock and send after releasing it, so a player leaving
// mid-broadcast neither receives the update nor blocks it.
type Room struct {
	id       int32
	name     string
	zone     string
	group    string
	capacity int

	mu         sync.RWMutex
	variables  map[string]vars.Variable
	active     map[string]*User
	spectators map[string]*User
	selfEcho   bool

	sink   events.Sink
	logger *zap.Logger
}

func newRoom(id int32, name, zone, group string, capacity int, sink events.Sink, logger *zap.Logger) *Room {
	return &Room{
		id:         id,
		name:       name,
		zone:       zone,
		group:      group,
		capacity:   capacity,
		variables:  make(map[string]vars.Variable),
		active:     make(map[string]*User),
		spectators: make(map[string]*User),
		sink:       sink,
		logger:     logger,
	}
}

func (r *Room) ID() int32     { return r.id }
func (r *Room) Name() string  { return r.name }
func (r *Room) Group() string { return r.group }
func (r *Room) Capacity() int { return r.capacity }

// SetSelfEcho controls whether a variable broadcast is also delivered to
// the participant that set it. Off by default.
func (r *Room) SetSelfEcho(echo bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selfEcho = echo
}

// Join adds p to the active occupant set.
//
// Postcondition: Returns the created presence, ErrRoomFull at capacity, or
// ErrAlreadyJoined when p is already active here.
func (r *Room) Join(p Participant) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ParticipantID()
	if _, dup := r.active[id]; dup {
		return nil, fmt.Errorf("%w: %s active in room %d", ErrAlreadyJoined, id, r.id)
	}
	if len(r.active) >= r.capacity {
		return nil, fmt.Errorf("%w: room %d at %d occupants", ErrRoomFull, r.id, r.capacity)
	}

	u := newUser(p, r.id, false)
	r.active[id] = u
	return u, nil
}

// JoinSpectator adds p to the spectator set, which has no capacity limit.
func (r *Room) JoinSpectator(p Participant) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ParticipantID()
	if _, dup := r.spectators[id]; dup {
		return nil, fmt.Errorf("%w: %s spectating room %d", ErrAlreadyJoined, id, r.id)
	}

	u := newUser(p, r.id, true)
	r.spectators[id] = u
	return u, nil
}

// Leave removes the player from both occupant sets. Safe to call for a
// player who is not present; reports whether anything was removed.
func (r *Room) Leave(participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, wasActive := r.active[participantID]
	_, wasSpectating := r.spectators[participantID]
	delete(r.active, participantID)
	delete(r.spectators, participantID)
	return wasActive || wasSpectating
}

// UserFor returns the player's active presence in this room.
func (r *Room) UserFor(participantID string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.active[participantID]
	return u, ok
}

// SpectatorFor returns the player's spectator presence in this room.
func (r *Room) SpectatorFor(participantID string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.spectators[participantID]
	return u, ok
}

// Occupants returns a snapshot of all presences, active before spectators.
func (r *Room) Occupants() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*User, 0, len(r.active)+len(r.spectators))
	for _, u := range r.active {
		out = append(out, u)
	}
	for _, u := range r.spectators {
		out = append(out, u)
	}
	return out
}

// OccupantCount returns the active and spectator counts.
func (r *Room) OccupantCount() (active, spectators int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active), len(r.spectators)
}

// SetVariable stores v last-write-wins and broadcasts the update to the
// room's occupants. setter may be nil for server-set variables; a non-nil
// setter is excluded from the broadcast unless self-echo is on.
func (r *Room) SetVariable(setter Participant, v vars.Variable) {
	r.mu.Lock()
	r.variables[v.Name] = v
	recipients := r.recipientsLocked(setter)
	r.mu.Unlock()

	r.send(recipients, &sysmsgs.SetRoomVariable{RoomID: r.id, Var: v})
	r.sink.RoomVariableChanged(r.zone, r.id, v.Name)
}

// RemoveVariable deletes a variable and fires a removal notification,
// distinct from a broadcast with an empty value. Reports whether the
// variable existed.
func (r *Room) RemoveVariable(setter Participant, name string) bool {
	r.mu.Lock()
	_, existed := r.variables[name]
	delete(r.variables, name)
	var recipients []*User
	if existed {
		recipients = r.recipientsLocked(setter)
	}
	r.mu.Unlock()

	if !existed {
		return false
	}
	r.send(recipients, &sysmsgs.SetRoomVariable{
		RoomID:  r.id,
		Removed: true,
		Var:     vars.Variable{Name: name},
	})
	r.sink.RoomVariableRemoved(r.zone, r.id, name)
	return true
}

// Variable looks up a room variable by name.
func (r *Room) Variable(name string) (vars.Variable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// Variables returns a snapshot of all room variables.
func (r *Room) Variables() []vars.Variable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]vars.Variable, 0, len(r.variables))
	for _, v := range r.variables {
		out = append(out, v)
	}
	return out
}

// Broadcast sends pkt on channelID to every occupant except excludeID.
// Pass an empty excludeID to reach everyone.
func (r *Room) Broadcast(channelID byte, pkt packet.Packet, excludeID string) {
	r.mu.RLock()
	recipients := make([]*User, 0, len(r.active)+len(r.spectators))
	for id, u := range r.active {
		if id != excludeID {
			recipients = append(recipients, u)
		}
	}
	for id, u := range r.spectators {
		if id != excludeID {
			recipients = append(recipients, u)
		}
	}
	r.mu.RUnlock()

	r.sendOn(channelID, recipients, pkt)
}

// recipientsLocked snapshots the occupant set for a variable broadcast.
// Callers hold r.mu. A player present in both sets is included once.
func (r *Room) recipientsLocked(setter Participant) []*User {
	setterID := ""
	if setter != nil && !r.selfEcho {
		setterID = setter.ParticipantID()
	}

	seen := make(map[string]bool, len(r.active)+len(r.spectators))
	out := make([]*User, 0, len(r.active)+len(r.spectators))
	for id, u := range r.active {
		if id == setterID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, u)
	}
	for id, u := range r.spectators {
		if id == setterID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, u)
	}
	return out
}

func (r *Room) send(recipients []*User, pkt packet.Packet) {
	r.sendOn(sysmsgs.ChannelID, recipients, pkt)
}

// sendOn delivers pkt to each recipient outside the room lock. A failed or
// disconnected recipient is logged and skipped; it never aborts the
// broadcast.
func (r *Room) sendOn(channelID byte, recipients []*User, pkt packet.Packet) {
	for _, u := range recipients {
		if err := u.Participant().Send(channelID, pkt); err != nil {
			r.logger.Debug("broadcast send failed",
				zap.Int32("room", r.id),
				zap.String("player", u.Participant().ParticipantID()),
				zap.Error(err),
			)
		}
	}
}
