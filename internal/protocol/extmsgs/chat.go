package extmsgs

import (
	"github.com/draconet/zoneserver/internal/protocol/extension"
	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// ChatSend carries an outgoing chat line from a client.
type ChatSend struct {
	Text string
}

func (m *ChatSend) Command() string { return CmdChatSend }

func (m *ChatSend) Parse(pl *payload.Payload) error {
	var err error
	if m.Text, err = pl.GetString("msg"); err != nil {
		return err
	}
	return nil
}

func (m *ChatSend) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("msg", m.Text)
	return pl, nil
}

func (m *ChatSend) NewInstance() extension.Message { return &ChatSend{} }

// ChatReceive delivers a chat line to room occupants. Clientbound only.
type ChatReceive struct {
	SenderID   string
	SenderName string
	Text       string
}

func (m *ChatReceive) Command() string { return CmdChatReceive }

func (m *ChatReceive) Parse(pl *payload.Payload) error {
	var err error
	if m.SenderID, err = pl.GetString("sid"); err != nil {
		return err
	}
	if m.SenderName, err = pl.GetString("sn"); err != nil {
		return err
	}
	if m.Text, err = pl.GetString("msg"); err != nil {
		return err
	}
	return nil
}

func (m *ChatReceive) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("sid", m.SenderID)
	pl.SetString("sn", m.SenderName)
	pl.SetString("msg", m.Text)
	return pl, nil
}

func (m *ChatReceive) NewInstance() extension.Message { return &ChatReceive{} }

// ChatAck confirms delivery of a sent line back to its author, carrying the
// text as it was actually relayed after filtering.
type ChatAck struct {
	Accepted bool
	Text     string
}

func (m *ChatAck) Command() string { return CmdChatAck }

func (m *ChatAck) Parse(pl *payload.Payload) error {
	var err error
	if m.Accepted, err = pl.GetBool("ok"); err != nil {
		return err
	}
	if pl.Has("msg") {
		if m.Text, err = pl.GetString("msg"); err != nil {
			return err
		}
	}
	return nil
}

func (m *ChatAck) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetBool("ok", m.Accepted)
	if m.Text != "" {
		pl.SetString("msg", m.Text)
	}
	return pl, nil
}

func (m *ChatAck) NewInstance() extension.Message { return &ChatAck{} }

// ChatBlocked tells the author their line was rejected. Clientbound only.
type ChatBlocked struct {
	Reason string
}

func (m *ChatBlocked) Command() string { return CmdChatBlocked }

func (m *ChatBlocked) Parse(pl *payload.Payload) error {
	var err error
	if m.Reason, err = pl.GetString("rs"); err != nil {
		return err
	}
	return nil
}

func (m *ChatBlocked) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("rs", m.Reason)
	return pl, nil
}

func (m *ChatBlocked) NewInstance() extension.Message { return &ChatBlocked{} }

// ChatModerate is a moderator action against another player's chat.
type ChatModerate struct {
	TargetID string
	Action   string
	Reason   string
}

func (m *ChatModerate) Command() string { return CmdChatModerate }

func (m *ChatModerate) Parse(pl *payload.Payload) error {
	var err error
	if m.TargetID, err = pl.GetString("tid"); err != nil {
		return err
	}
	if m.Action, err = pl.GetString("act"); err != nil {
		return err
	}
	if pl.Has("rs") {
		if m.Reason, err = pl.GetString("rs"); err != nil {
			return err
		}
	}
	return nil
}

func (m *ChatModerate) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("tid", m.TargetID)
	pl.SetString("act", m.Action)
	if m.Reason != "" {
		pl.SetString("rs", m.Reason)
	}
	return pl, nil
}

func (m *ChatModerate) NewInstance() extension.Message { return &ChatModerate{} }
