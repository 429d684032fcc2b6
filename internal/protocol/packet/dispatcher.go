package packet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// SessionStateError reports a packet that requires an authenticated session
// arriving on a connection that has none. The frame is rejected; the
// connection stays open.
type SessionStateError struct {
	ChannelID byte
	PacketID  int16
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("packet %d on channel %d requires an authenticated session", e.PacketID, e.ChannelID)
}

// Gate authorizes an inbound packet before it is instantiated. Returning an
// error drops the frame.
type Gate func(sess Session, channelID byte, packetID int16) error

// Dispatcher decodes inbound frame bodies and routes them through the
// channel registry. Unknown channels, packet IDs, and handlers are dropped
// without closing the connection (forward-compatibility policy); handler
// failures are logged and isolated to the offending packet.
type Dispatcher struct {
	registry *Registry
	gate     Gate
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over registry. gate may be nil.
func NewDispatcher(registry *Registry, gate Gate, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, gate: gate, logger: logger}
}

// Dispatch processes one inbound frame body. The returned error is nil for
// every per-frame failure mode; only conditions that should fail the
// connection propagate, and there are currently none past the framing
// layer.
func (d *Dispatcher) Dispatch(ctx context.Context, sess Session, body []byte) error {
	env, err := payload.Decode(body)
	if err != nil {
		d.logger.Warn("dropping undecodable frame body", zap.Error(err))
		return nil
	}

	channelID, err := env.GetByte(KeyChannel)
	if err != nil {
		d.logFieldError("channel id", err)
		return nil
	}
	packetID, err := env.GetShort(KeyAction)
	if err != nil {
		d.logFieldError("packet id", err)
		return nil
	}

	ch, ok := d.registry.Channel(channelID)
	if !ok {
		d.logger.Debug("dropping frame for unknown channel",
			zap.Uint8("channel", channelID),
			zap.Int16("packet", packetID),
		)
		return nil
	}

	if d.gate != nil {
		if err := d.gate(sess, channelID, packetID); err != nil {
			d.logger.Warn("rejecting unauthorized packet",
				zap.Uint8("channel", channelID),
				zap.Int16("packet", packetID),
				zap.Error(err),
			)
			return nil
		}
	}

	pkt, ok := ch.Instantiate(packetID)
	if !ok {
		d.logger.Debug("dropping frame for unknown packet id",
			zap.Uint8("channel", channelID),
			zap.Int16("packet", packetID),
		)
		return nil
	}

	params, err := env.GetObject(KeyParams)
	if err != nil {
		d.logFieldError("params", err)
		return nil
	}
	if err := pkt.Parse(params); err != nil {
		d.logger.Warn("dropping malformed packet",
			zap.Uint8("channel", channelID),
			zap.Int16("packet", packetID),
			zap.Error(err),
		)
		return nil
	}

	h, ok := ch.HandlerFor(pkt)
	if !ok {
		d.logger.Debug("no handler registered, dropping packet",
			zap.Uint8("channel", channelID),
			zap.Int16("packet", packetID),
		)
		return nil
	}

	d.invoke(ctx, sess, ch, pkt, h)
	return nil
}

// invoke runs one handler, isolating its failures to this packet.
func (d *Dispatcher) invoke(ctx context.Context, sess Session, ch *Channel, pkt Packet, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				zap.Uint8("channel", ch.ID()),
				zap.Int16("packet", pkt.ID()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := h.Handle(ctx, sess, pkt); err != nil {
		d.logger.Error("handler failed",
			zap.Uint8("channel", ch.ID()),
			zap.Int16("packet", pkt.ID()),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) logFieldError(field string, err error) {
	var missing *payload.MissingKeyError
	var mismatch *payload.TypeError
	switch {
	case errors.As(err, &missing), errors.As(err, &mismatch):
		d.logger.Warn("dropping frame with bad envelope field",
			zap.String("field", field),
			zap.Error(err),
		)
	default:
		d.logger.Warn("dropping frame", zap.String("field", field), zap.Error(err))
	}
}
