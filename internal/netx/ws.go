package netx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/config"
)

// wsStream adapts a WebSocket connection to an io.ReadWriteCloser. Reads
// drain binary messages in order; each Write sends one binary message.
// Non-binary messages are skipped.
type wsStream struct {
	conn *websocket.Conn
	r    io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			msgType, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error { return s.conn.Close() }

// WSAcceptor serves the WebSocket endpoint and dispatches each upgraded
// connection to the same SessionHandler the TCP acceptor uses.
type WSAcceptor struct {
	cfg      config.ServerConfig
	handler  SessionHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	server  *http.Server
	wg      sync.WaitGroup
	quit    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewWSAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg.WSPort must be non-zero; handler and logger must be non-nil.
func NewWSAcceptor(cfg config.ServerConfig, handler SessionHandler, logger *zap.Logger) *WSAcceptor {
	return &WSAcceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Game clients connect from installed binaries, not pages.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// ListenAndServe starts the HTTP listener serving the upgrade endpoint.
// This method blocks until the acceptor is stopped.
//
// Postcondition: The listener is closed when this method returns.
func (a *WSAcceptor) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.WSPath, a.serveUpgrade)

	a.mu.Lock()
	a.server = &http.Server{Addr: a.cfg.WSAddr(), Handler: mux}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", a.cfg.WSAddr()),
		zap.String("path", a.cfg.WSPath),
	)

	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *WSAcceptor) serveUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	a.wg.Add(1)
	defer a.wg.Done()

	start := time.Now()
	addr := conn.RemoteAddr().String()
	a.logger.Info("websocket client connected",
		zap.String("remote_addr", addr),
	)

	stream := &wsStream{conn: conn}
	defer stream.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		select {
		case <-a.quit:
			cancel()
			stream.Close()
		case <-ctx.Done():
		}
	}()

	if err := a.handler.HandleSession(ctx, stream, addr); err != nil {
		a.logger.Debug("websocket session ended",
			zap.String("remote_addr", addr),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		a.logger.Info("websocket session ended cleanly",
			zap.String("remote_addr", addr),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Stop gracefully stops the acceptor, shutting the HTTP server down and
// waiting for active sessions to finish.
func (a *WSAcceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	close(a.quit)
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("websocket server shutdown", zap.Error(err))
		}
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}
