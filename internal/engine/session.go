package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/game/player"
	"github.com/draconet/zoneserver/internal/protocol/frame"
	"github.com/draconet/zoneserver/internal/protocol/packet"
)

// connSession is the per-connection state from accept to teardown. Before
// login it writes frames synchronously; once a player is bound, sends go
// through the player's outbound queue.
type connSession struct {
	engine     *Engine
	conn       *frame.Conn
	closer     io.Closer
	remoteAddr string
	logger     *zap.Logger

	mu     sync.Mutex
	token  string
	player *player.PlayerInfo
}

var _ packet.Session = (*connSession)(nil)

// Send encodes pkt and writes it to the client. Safe pre-auth; after login
// it delegates to the player's queue so handler goroutines never block on
// the socket.
func (s *connSession) Send(channelID byte, pkt packet.Packet) error {
	if p := s.boundPlayer(); p != nil {
		return p.Send(channelID, pkt)
	}
	body, err := packet.Encode(channelID, pkt)
	if err != nil {
		return err
	}
	return s.conn.WriteFrame(body, false)
}

func (s *connSession) authenticated() bool {
	return s.boundPlayer() != nil
}

func (s *connSession) boundPlayer() *player.PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *connSession) bindPlayer(p *player.PlayerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = p
}

func (s *connSession) sessionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *connSession) setSessionToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
}

// HandleSession implements netx.SessionHandler: it frames the byte stream
// and feeds every inbound body through the dispatcher until the stream
// ends. Teardown runs exactly once regardless of how the loop exits.
func (e *Engine) HandleSession(ctx context.Context, rw io.ReadWriteCloser, remoteAddr string) error {
	sess := &connSession{
		engine:     e,
		conn:       frame.NewConn(rw, e.cfg.Server.ReadTimeout, e.cfg.Server.WriteTimeout),
		closer:     rw,
		remoteAddr: remoteAddr,
		logger:     e.logger.With(zap.String("remote_addr", remoteAddr)),
	}

	// A connection that has not logged in by the deadline is cut off.
	loginTimer := time.AfterFunc(e.cfg.Server.LoginTimeout, func() {
		if !sess.authenticated() {
			sess.logger.Info("login deadline expired, closing connection")
			rw.Close()
		}
	})
	defer loginTimer.Stop()

	var loopErr error
	for {
		body, err := sess.conn.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				loopErr = err
			}
			break
		}
		if err := e.dispatcher.Dispatch(ctx, sess, body); err != nil {
			loopErr = err
			break
		}
	}

	if p := sess.boundPlayer(); p != nil {
		p.Disconnect()
		e.removePlayer(p)
	} else {
		rw.Close()
	}
	return loopErr
}
