package extmsgs

import (
	"github.com/draconet/zoneserver/internal/protocol/extension"
	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// JoinRoom asks to enter a named room, optionally as a spectator.
type JoinRoom struct {
	RoomName  string
	Spectator bool
}

func (m *JoinRoom) Command() string { return CmdJoinRoom }

func (m *JoinRoom) Parse(pl *payload.Payload) error {
	var err error
	if m.RoomName, err = pl.GetString("rm"); err != nil {
		return err
	}
	if pl.Has("sp") {
		if m.Spectator, err = pl.GetBool("sp"); err != nil {
			return err
		}
	}
	return nil
}

func (m *JoinRoom) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("rm", m.RoomName)
	if m.Spectator {
		pl.SetBool("sp", true)
	}
	return pl, nil
}

func (m *JoinRoom) NewInstance() extension.Message { return &JoinRoom{} }

// JoinOwnerRoom asks to enter the private room owned by another player.
type JoinOwnerRoom struct {
	OwnerName string
}

func (m *JoinOwnerRoom) Command() string { return CmdJoinOwnerRoom }

func (m *JoinOwnerRoom) Parse(pl *payload.Payload) error {
	var err error
	if m.OwnerName, err = pl.GetString("ow"); err != nil {
		return err
	}
	return nil
}

func (m *JoinOwnerRoom) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("ow", m.OwnerName)
	return pl, nil
}

func (m *JoinOwnerRoom) NewInstance() extension.Message { return &JoinOwnerRoom{} }

// TimeSync is the engine clock sync. Requests carry no fields; the reply
// carries the server epoch in milliseconds.
type TimeSync struct {
	ServerTimeMillis int64
}

func (m *TimeSync) Command() string { return CmdTimeSync }

func (m *TimeSync) Parse(pl *payload.Payload) error {
	if !pl.Has("t") {
		return nil
	}
	var err error
	if m.ServerTimeMillis, err = pl.GetLong("t"); err != nil {
		return err
	}
	return nil
}

func (m *TimeSync) Build() (*payload.Payload, error) {
	pl := payload.New()
	if m.ServerTimeMillis != 0 {
		pl.SetLong("t", m.ServerTimeMillis)
	}
	return pl, nil
}

func (m *TimeSync) NewInstance() extension.Message { return &TimeSync{} }

// DateSync is the engine calendar sync; the reply carries a formatted
// server date string.
type DateSync struct {
	Date string
}

func (m *DateSync) Command() string { return CmdDateSync }

func (m *DateSync) Parse(pl *payload.Payload) error {
	if !pl.Has("d") {
		return nil
	}
	var err error
	if m.Date, err = pl.GetString("d"); err != nil {
		return err
	}
	return nil
}

func (m *DateSync) Build() (*payload.Payload, error) {
	pl := payload.New()
	if m.Date != "" {
		pl.SetString("d", m.Date)
	}
	return pl, nil
}

func (m *DateSync) NewInstance() extension.Message { return &DateSync{} }
