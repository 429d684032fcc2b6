// Package events defines the lifecycle notification sink consumed by the
// external module system. The core emits; it never depends on what a sink
// does with the notifications.
package events

// Sink receives zone/room/user lifecycle notifications. Implementations
// must be safe for concurrent use and must not block: notifications are
// delivered from connection handler goroutines.
type Sink interface {
	ZoneCreated(zone string)
	ZoneDeleted(zone string)
	RoomGroupCreated(zone, group string)
	RoomCreated(zone string, roomID int32, name string)
	RoomDeleted(zone string, roomID int32)
	RoomVariableChanged(zone string, roomID int32, name string)
	RoomVariableRemoved(zone string, roomID int32, name string)
	UserVariablesChanged(zone string, roomID int32, playerID string, names []string)
	PlayerJoinedZone(zone, playerID string)
	PlayerLeftZone(zone, playerID string)
	PlayerDisconnected(playerID string)
	ChatMessageSent(zone string, roomID int32, playerID, text string)
	ChatModerated(zone string, targetID, action, reason string)
}

// NopSink discards every notification.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) ZoneCreated(string)                                 {}
func (NopSink) ZoneDeleted(string)                                 {}
func (NopSink) RoomGroupCreated(string, string)                    {}
func (NopSink) RoomCreated(string, int32, string)                  {}
func (NopSink) RoomDeleted(string, int32)                          {}
func (NopSink) RoomVariableChanged(string, int32, string)          {}
func (NopSink) RoomVariableRemoved(string, int32, string)          {}
func (NopSink) UserVariablesChanged(string, int32, string, []string) {}
func (NopSink) PlayerJoinedZone(string, string)                    {}
func (NopSink) PlayerLeftZone(string, string)                      {}
func (NopSink) PlayerDisconnected(string)                          {}
func (NopSink) ChatMessageSent(string, int32, string, string)      {}
func (NopSink) ChatModerated(string, string, string, string)       {}

// MultiSink fans every notification out to each member in order.
type MultiSink []Sink

var _ Sink = MultiSink{}

func (m MultiSink) ZoneCreated(zone string) {
	for _, s := range m {
		s.ZoneCreated(zone)
	}
}

func (m MultiSink) ZoneDeleted(zone string) {
	for _, s := range m {
		s.ZoneDeleted(zone)
	}
}

func (m MultiSink) RoomGroupCreated(zone, group string) {
	for _, s := range m {
		s.RoomGroupCreated(zone, group)
	}
}

func (m MultiSink) RoomCreated(zone string, roomID int32, name string) {
	for _, s := range m {
		s.RoomCreated(zone, roomID, name)
	}
}

func (m MultiSink) RoomDeleted(zone string, roomID int32) {
	for _, s := range m {
		s.RoomDeleted(zone, roomID)
	}
}

func (m MultiSink) RoomVariableChanged(zone string, roomID int32, name string) {
	for _, s := range m {
		s.RoomVariableChanged(zone, roomID, name)
	}
}

func (m MultiSink) RoomVariableRemoved(zone string, roomID int32, name string) {
	for _, s := range m {
		s.RoomVariableRemoved(zone, roomID, name)
	}
}

func (m MultiSink) UserVariablesChanged(zone string, roomID int32, playerID string, names []string) {
	for _, s := range m {
		s.UserVariablesChanged(zone, roomID, playerID, names)
	}
}

func (m MultiSink) PlayerJoinedZone(zone, playerID string) {
	for _, s := range m {
		s.PlayerJoinedZone(zone, playerID)
	}
}

func (m MultiSink) PlayerLeftZone(zone, playerID string) {
	for _, s := range m {
		s.PlayerLeftZone(zone, playerID)
	}
}

func (m MultiSink) PlayerDisconnected(playerID string) {
	for _, s := range m {
		s.PlayerDisconnected(playerID)
	}
}

func (m MultiSink) ChatMessageSent(zone string, roomID int32, playerID, text string) {
	for _, s := range m {
		s.ChatMessageSent(zone, roomID, playerID, text)
	}
}

func (m MultiSink) ChatModerated(zone string, targetID, action, reason string) {
	for _, s := range m {
		s.ChatModerated(zone, targetID, action, reason)
	}
}
