package extmsgs

import (
	"github.com/draconet/zoneserver/internal/protocol/extension"
	"github.com/draconet/zoneserver/internal/protocol/payload"
	"github.com/draconet/zoneserver/internal/protocol/vars"
)

// SetUserVars updates one or more variables on the sender's presence in the
// room named by the envelope's room ID. Also used clientbound to fan the
// update out to the room's other occupants, with PlayerID filled in.
type SetUserVars struct {
	PlayerID string
	Vars     []vars.Variable
}

func (m *SetUserVars) Command() string { return CmdSetUserVars }

func (m *SetUserVars) Parse(pl *payload.Payload) error {
	if pl.Has("id") {
		id, err := pl.GetString("id")
		if err != nil {
			return err
		}
		m.PlayerID = id
	}

	nodes, err := pl.GetObjectArray("vl")
	if err != nil {
		return err
	}
	m.Vars = make([]vars.Variable, 0, len(nodes))
	for _, node := range nodes {
		v, err := vars.FromPayload(node)
		if err != nil {
			return err
		}
		m.Vars = append(m.Vars, v)
	}
	return nil
}

func (m *SetUserVars) Build() (*payload.Payload, error) {
	pl := payload.New()
	if m.PlayerID != "" {
		pl.SetString("id", m.PlayerID)
	}
	nodes := make([]*payload.Payload, 0, len(m.Vars))
	for _, v := range m.Vars {
		node, err := v.ToPayload()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	pl.SetObjectArray("vl", nodes)
	return pl, nil
}

func (m *SetUserVars) NewInstance() extension.Message { return &SetUserVars{} }

// SetPosVars updates the sender's positional state in the room. Stashed in
// the user's per-room object bag rather than the variable map, since
// position changes at a much higher rate than ordinary variables.
type SetPosVars struct {
	PlayerID string
	X, Y, Z  float64
	Rotation float64
}

func (m *SetPosVars) Command() string { return CmdSetPosVars }

func (m *SetPosVars) Parse(pl *payload.Payload) error {
	var err error
	if pl.Has("id") {
		if m.PlayerID, err = pl.GetString("id"); err != nil {
			return err
		}
	}
	if m.X, err = pl.GetDouble("px"); err != nil {
		return err
	}
	if m.Y, err = pl.GetDouble("py"); err != nil {
		return err
	}
	if m.Z, err = pl.GetDouble("pz"); err != nil {
		return err
	}
	if pl.Has("pr") {
		if m.Rotation, err = pl.GetDouble("pr"); err != nil {
			return err
		}
	}
	return nil
}

func (m *SetPosVars) Build() (*payload.Payload, error) {
	pl := payload.New()
	if m.PlayerID != "" {
		pl.SetString("id", m.PlayerID)
	}
	pl.SetDouble("px", m.X)
	pl.SetDouble("py", m.Y)
	pl.SetDouble("pz", m.Z)
	if m.Rotation != 0 {
		pl.SetDouble("pr", m.Rotation)
	}
	return pl, nil
}

func (m *SetPosVars) NewInstance() extension.Message { return &SetPosVars{} }
