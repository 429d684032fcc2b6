package world

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/game/events"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
)

// Manager owns the set of zones and assigns room IDs server-wide. The
// hosting process supplies the default occupant limit and the optional
// per-room override table keyed by group-qualified room name.
type Manager struct {
	logger          *zap.Logger
	sink            events.Sink
	defaultCapacity int
	overrides       map[string]int

	mu         sync.RWMutex
	zones      map[string]*Zone
	nextRoomID atomic.Int32
}

// NewManager creates an empty world manager.
//
// Precondition: defaultCapacity must be positive; sink and logger must be
// non-nil. overrides may be nil.
func NewManager(defaultCapacity int, overrides map[string]int, sink events.Sink, logger *zap.Logger) *Manager {
	return &Manager{
		logger:          logger,
		sink:            sink,
		defaultCapacity: defaultCapacity,
		overrides:       overrides,
		zones:           make(map[string]*Zone),
	}
}

// CreateZone creates a named zone.
//
// Postcondition: Returns an error if the name is taken; fires ZoneCreated.
func (m *Manager) CreateZone(name string) (*Zone, error) {
	m.mu.Lock()
	if _, dup := m.zones[name]; dup {
		m.mu.Unlock()
		return nil, fmt.Errorf("world: zone %q already exists", name)
	}
	z := newZone(name)
	m.zones[name] = z
	m.mu.Unlock()

	m.logger.Info("zone created", zap.String("zone", name))
	m.sink.ZoneCreated(name)
	return z, nil
}

// Zone looks up a zone by name.
func (m *Manager) Zone(name string) (*Zone, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[name]
	return z, ok
}

// ZoneCount returns the number of live zones.
func (m *Manager) ZoneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.zones)
}

// DeleteZone removes a zone and fires ZoneDeleted. The caller is
// responsible for having moved players out first.
func (m *Manager) DeleteZone(name string) error {
	m.mu.Lock()
	_, ok := m.zones[name]
	delete(m.zones, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("world: zone %q not found", name)
	}
	m.logger.Info("zone deleted", zap.String("zone", name))
	m.sink.ZoneDeleted(name)
	return nil
}

// CreateRoomGroup adds a named group to z and fires RoomGroupCreated.
func (m *Manager) CreateRoomGroup(z *Zone, name string) (*RoomGroup, error) {
	g, err := z.AddGroup(name)
	if err != nil {
		return nil, err
	}
	m.sink.RoomGroupCreated(z.Name(), name)
	return g, nil
}

// CreateRoom creates a room in the named group with the configured
// capacity and fires RoomCreated.
func (m *Manager) CreateRoom(z *Zone, group, name string) (*Room, error) {
	g, ok := z.Group(group)
	if !ok {
		return nil, fmt.Errorf("world: zone %q has no group %q", z.Name(), group)
	}

	id := m.nextRoomID.Add(1)
	r := newRoom(id, name, z.Name(), group, m.capacityFor(group, name), m.sink, m.logger)
	if err := z.addRoom(g, r); err != nil {
		return nil, err
	}

	m.logger.Info("room created",
		zap.String("zone", z.Name()),
		zap.String("group", group),
		zap.String("room", name),
		zap.Int32("id", id),
		zap.Int("capacity", r.Capacity()),
	)
	m.sink.RoomCreated(z.Name(), id, name)
	return r, nil
}

// DeleteRoom tears a room down: remaining occupants are told the room is
// gone and removed, then RoomDeleted fires.
func (m *Manager) DeleteRoom(z *Zone, roomID int32) error {
	r, ok := z.removeRoom(roomID)
	if !ok {
		return fmt.Errorf("world: zone %q has no room %d", z.Name(), roomID)
	}

	r.Broadcast(sysmsgs.ChannelID, &sysmsgs.RoomDelete{RoomID: roomID}, "")
	for _, u := range r.Occupants() {
		r.Leave(u.Participant().ParticipantID())
	}

	m.logger.Info("room deleted",
		zap.String("zone", z.Name()),
		zap.Int32("id", roomID),
	)
	m.sink.RoomDeleted(z.Name(), roomID)
	return nil
}

func (m *Manager) capacityFor(group, name string) int {
	if limit, ok := m.overrides[group+"/"+name]; ok {
		return limit
	}
	return m.defaultCapacity
}
