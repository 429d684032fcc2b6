package world

import (
	"fmt"
	"sync"
)

// Zone is a named world instance owning an ordered set of room groups.
type Zone struct {
	name string

	mu           sync.RWMutex
	groups       []*RoomGroup
	groupsByName map[string]*RoomGroup
	roomsByID    map[int32]*Room
	roomsByName  map[string]*Room // "group/name"
}

func newZone(name string) *Zone {
	return &Zone{
		name:         name,
		groupsByName: make(map[string]*RoomGroup),
		roomsByID:    make(map[int32]*Room),
		roomsByName:  make(map[string]*Room),
	}
}

// Name returns the zone name.
func (z *Zone) Name() string { return z.name }

// AddGroup appends a new room group, preserving creation order.
func (z *Zone) AddGroup(name string) (*RoomGroup, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if _, dup := z.groupsByName[name]; dup {
		return nil, fmt.Errorf("world: zone %q already has group %q", z.name, name)
	}
	g := &RoomGroup{name: name}
	z.groups = append(z.groups, g)
	z.groupsByName[name] = g
	return g, nil
}

// Group looks up a room group by name.
func (z *Zone) Group(name string) (*RoomGroup, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	g, ok := z.groupsByName[name]
	return g, ok
}

// Groups returns the room groups in creation order.
func (z *Zone) Groups() []*RoomGroup {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make([]*RoomGroup, len(z.groups))
	copy(out, z.groups)
	return out
}

// Room looks up a room anywhere in the zone by numeric ID.
func (z *Zone) Room(id int32) (*Room, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	r, ok := z.roomsByID[id]
	return r, ok
}

// RoomByName looks up a room by its group-qualified name.
func (z *Zone) RoomByName(group, name string) (*Room, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	r, ok := z.roomsByName[group+"/"+name]
	return r, ok
}

// FindRoom looks up a room by bare name across all groups, in group
// creation order.
func (z *Zone) FindRoom(name string) (*Room, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	for _, g := range z.groups {
		if r, ok := g.room(name); ok {
			return r, true
		}
	}
	return nil, false
}

// Rooms returns a snapshot of every room in the zone.
func (z *Zone) Rooms() []*Room {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make([]*Room, 0, len(z.roomsByID))
	for _, r := range z.roomsByID {
		out = append(out, r)
	}
	return out
}

func (z *Zone) addRoom(g *RoomGroup, r *Room) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	qualified := r.Group() + "/" + r.Name()
	if _, dup := z.roomsByName[qualified]; dup {
		return fmt.Errorf("world: zone %q already has room %q", z.name, qualified)
	}
	z.roomsByID[r.ID()] = r
	z.roomsByName[qualified] = r
	g.add(r)
	return nil
}

func (z *Zone) removeRoom(id int32) (*Room, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	r, ok := z.roomsByID[id]
	if !ok {
		return nil, false
	}
	delete(z.roomsByID, id)
	delete(z.roomsByName, r.Group()+"/"+r.Name())
	if g, ok := z.groupsByName[r.Group()]; ok {
		g.remove(id)
	}
	return r, true
}

// RoomGroup is a named subdivision of a zone grouping related rooms.
type RoomGroup struct {
	name string

	mu    sync.RWMutex
	rooms []*Room
}

// Name returns the group name.
func (g *RoomGroup) Name() string { return g.name }

// Rooms returns the group's rooms in creation order.
func (g *RoomGroup) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, len(g.rooms))
	copy(out, g.rooms)
	return out
}

func (g *RoomGroup) room(name string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.rooms {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

func (g *RoomGroup) add(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms = append(g.rooms, r)
}

func (g *RoomGroup) remove(id int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, r := range g.rooms {
		if r.ID() == id {
			g.rooms = append(g.rooms[:i], g.rooms[i+1:]...)
			return
		}
	}
}
