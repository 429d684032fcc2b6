package sysmsgs

import (
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// LoginRequest authenticates a connection against the identity provider and
// binds it to a zone.
type LoginRequest struct {
	// Token is the opaque session token issued by the account service.
	Token string
	// ZoneName names the zone the player wants to enter.
	ZoneName string
}

func (p *LoginRequest) ID() int16 { return IDLogin }

func (p *LoginRequest) Parse(pl *payload.Payload) error {
	var err error
	if p.Token, err = pl.GetString("tk"); err != nil {
		return err
	}
	if p.ZoneName, err = pl.GetString("zn"); err != nil {
		return err
	}
	return nil
}

func (p *LoginRequest) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("tk", p.Token)
	pl.SetString("zn", p.ZoneName)
	return pl, nil
}

func (p *LoginRequest) NewInstance() packet.Packet { return &LoginRequest{} }

// LoginResponse reports the login outcome. Clientbound only.
type LoginResponse struct {
	Success     bool
	PlayerID    string
	DisplayName string
	// Reason carries the failure cause when Success is false.
	Reason string
}

func (p *LoginResponse) ID() int16 { return IDLogin }

func (p *LoginResponse) Parse(pl *payload.Payload) error {
	var err error
	if p.Success, err = pl.GetBool("ok"); err != nil {
		return err
	}
	if pl.Has("id") {
		if p.PlayerID, err = pl.GetString("id"); err != nil {
			return err
		}
	}
	if pl.Has("dn") {
		if p.DisplayName, err = pl.GetString("dn"); err != nil {
			return err
		}
	}
	if pl.Has("rs") {
		if p.Reason, err = pl.GetString("rs"); err != nil {
			return err
		}
	}
	return nil
}

func (p *LoginResponse) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetBool("ok", p.Success)
	if p.PlayerID != "" {
		pl.SetString("id", p.PlayerID)
	}
	if p.DisplayName != "" {
		pl.SetString("dn", p.DisplayName)
	}
	if p.Reason != "" {
		pl.SetString("rs", p.Reason)
	}
	return pl, nil
}

func (p *LoginResponse) NewInstance() packet.Packet { return &LoginResponse{} }

// Logout asks the server to end the authenticated session.
type Logout struct{}

func (p *Logout) ID() int16 { return IDLogout }

func (p *Logout) Parse(pl *payload.Payload) error { return nil }

func (p *Logout) Build() (*payload.Payload, error) { return payload.New(), nil }

func (p *Logout) NewInstance() packet.Packet { return &Logout{} }
