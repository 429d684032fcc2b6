package sysmsgs

import (
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// HandshakeRequest opens the protocol exchange on a fresh connection.
type HandshakeRequest struct {
	// APIVersion is the client protocol version string.
	APIVersion string
	// ClientType identifies the client platform.
	ClientType string
}

func (p *HandshakeRequest) ID() int16 { return IDHandshake }

func (p *HandshakeRequest) Parse(pl *payload.Payload) error {
	var err error
	if p.APIVersion, err = pl.GetString("v"); err != nil {
		return err
	}
	if p.ClientType, err = pl.GetString("ct"); err != nil {
		return err
	}
	return nil
}

func (p *HandshakeRequest) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("v", p.APIVersion)
	pl.SetString("ct", p.ClientType)
	return pl, nil
}

func (p *HandshakeRequest) NewInstance() packet.Packet { return &HandshakeRequest{} }

// HandshakeResponse acknowledges the handshake. Clientbound only.
type HandshakeResponse struct {
	// SessionToken is the ephemeral token identifying this connection.
	SessionToken string
	// CompressionThreshold tells the client the server's outbound
	// compression cutoff.
	CompressionThreshold int32
}

func (p *HandshakeResponse) ID() int16 { return IDHandshake }

func (p *HandshakeResponse) Parse(pl *payload.Payload) error {
	var err error
	if p.SessionToken, err = pl.GetString("tk"); err != nil {
		return err
	}
	if p.CompressionThreshold, err = pl.GetInt("ct"); err != nil {
		return err
	}
	return nil
}

func (p *HandshakeResponse) Build() (*payload.Payload, error) {
	pl := payload.New()
	pl.SetString("tk", p.SessionToken)
	pl.SetInt("ct", p.CompressionThreshold)
	return pl, nil
}

func (p *HandshakeResponse) NewInstance() packet.Packet { return &HandshakeResponse{} }
