// Package world implements the shared world graph: zones own room groups,
// room groups own rooms, rooms own variables and occupants. The graph is
// mutated from whichever connection's handler goroutine triggers a change,
// so every container guards its own state and broadcasts work from atomic
// occupant snapshots.
package world

import (
	"reflect"
	"sync"

	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/vars"
)

// Participant is a connected player as seen by the world graph: an identity
// plus a way to queue clientbound packets. Send must be safe from any
// goroutine.
type Participant interface {
	ParticipantID() string
	DisplayName() string
	Send(channelID byte, pkt packet.Packet) error
}

// User is one player's presence within one room. A player simultaneously
// present in two rooms has two independent Users; their variables never
// affect each other.
type User struct {
	participant Participant
	roomID      int32
	spectator   bool

	mu   sync.RWMutex
	vars map[string]vars.Variable
	bag  map[reflect.Type]any
}

func newUser(p Participant, roomID int32, spectator bool) *User {
	return &User{
		participant: p,
		roomID:      roomID,
		spectator:   spectator,
		vars:        make(map[string]vars.Variable),
		bag:         make(map[reflect.Type]any),
	}
}

// Participant returns the connected player behind this presence.
func (u *User) Participant() Participant { return u.participant }

// RoomID returns the room this presence belongs to.
func (u *User) RoomID() int32 { return u.roomID }

// Spectator reports whether this presence is in the spectator set.
func (u *User) Spectator() bool { return u.spectator }

// SetVariable stores v, replacing any existing variable of the same name.
func (u *User) SetVariable(v vars.Variable) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.vars[v.Name] = v
}

// Variable looks up a variable by name.
func (u *User) Variable(name string) (vars.Variable, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.vars[name]
	return v, ok
}

// Variables returns a snapshot of all variables.
func (u *User) Variables() []vars.Variable {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]vars.Variable, 0, len(u.vars))
	for _, v := range u.vars {
		out = append(out, v)
	}
	return out
}

// RemoveVariable deletes a variable, reporting whether it existed.
func (u *User) RemoveVariable(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.vars[name]
	delete(u.vars, name)
	return ok
}

// StoreObject stashes obj in the per-type object bag, replacing any
// previous value of the same concrete type. Extensions use the bag for
// ephemeral per-room-per-user state such as positional data.
func (u *User) StoreObject(obj any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.bag[reflect.TypeOf(obj)] = obj
}

// LoadObject retrieves the bag entry stored under typ.
func (u *User) LoadObject(typ reflect.Type) (any, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	obj, ok := u.bag[typ]
	return obj, ok
}
