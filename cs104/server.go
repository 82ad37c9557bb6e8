package cs104

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/arloliu/go-iec104/logger"
)

// Server accepts IEC 60870-5-104 connections on one listener.
//
// Every admitted connection gets its own Connection with the connection configuration
// of the server and the Handler returned by ServerHandler.OnConnectionAccepted.
// Remote addresses outside the allow list, and connections beyond the connection limit,
// are closed before any protocol byte is exchanged.
type Server struct {
	cfg     *ServerConfig
	handler ServerHandler
	logger  logger.Logger

	state   atomicServerState
	mu      sync.Mutex // protects ln and the serving transition
	ln      net.Listener
	done    chan struct{}
	serveWg sync.WaitGroup

	conns   *xsync.MapOf[string, *Connection]
	limiter *rate.Limiter

	metrics ServerMetrics
}

// NewServer creates a server. A nil handler accepts every admitted connection without
// notifications.
func NewServer(cfg *ServerConfig, handler ServerHandler) (*Server, error) {
	if cfg == nil {
		return nil, ErrServerConfigNil
	}
	if handler == nil {
		handler = ServerHandlerFuncs{}
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  cfg.logger.With("server", cfg.address),
		done:    make(chan struct{}),
		conns:   xsync.NewMapOf[string, *Connection](),
	}
	if cfg.acceptLimit > 0 {
		s.limiter = rate.NewLimiter(cfg.acceptLimit, cfg.acceptBurst)
	}

	return s, nil
}

// ListenAndServe listens on the configured address and serves until ctx is done or
// Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.state.IsClosed() {
		return ErrServerClosed
	}

	ln, err := s.cfg.listen(ctx, s.cfg.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.address, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, Close is called or the listener
// fails permanently. ln is closed when Serve returns, together with every connection
// accepted by it.
//
// It returns ErrServerClosed after Close, the context error when ctx ended, or the
// accept error that stopped the listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if !s.state.ToServing() {
		s.mu.Unlock()
		if s.state.IsClosed() {
			_ = ln.Close()
			return ErrServerClosed
		}

		return ErrServerRunning
	}
	s.ln = ln
	s.serveWg.Add(1)
	s.mu.Unlock()
	defer s.serveWg.Done()

	s.logger.Info("server started", "addr", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.acceptLoop(gctx, ctx, ln)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.done:
		}

		return ln.Close()
	})

	err := g.Wait()
	if s.isClosing() {
		err = ErrServerClosed
	}

	s.closeConnections(ErrServerClosed)

	s.logger.Info("server stopped", "cause", err)
	s.handler.OnListenerStopped(err)

	return err
}

// Close stops accepting, closes every connection and waits for their goroutines up to
// the close timeout of the connection configuration. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.state.ToClosing() {
		s.mu.Unlock()
		return nil
	}
	close(s.done)
	s.mu.Unlock()

	s.closeConnections(ErrServerClosed)
	s.serveWg.Wait()
	s.state.ToClosed()

	return nil
}

// State returns the lifecycle state of the server.
func (s *Server) State() ServerState { return s.state.Get() }

// Addr returns the listener address, or nil when the server is not serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return nil
	}

	return s.ln.Addr()
}

// Connections returns the live connections.
func (s *Server) Connections() []*Connection {
	conns := make([]*Connection, 0, s.conns.Size())
	s.conns.Range(func(_ string, c *Connection) bool {
		conns = append(conns, c)
		return true
	})

	return conns
}

// Connection returns the live connection with the given ID.
func (s *Server) Connection(id string) (*Connection, bool) {
	return s.conns.Load(id)
}

// Metrics returns the metrics of the server.
func (s *Server) Metrics() *ServerMetrics { return &s.metrics }

func (s *Server) isClosing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// acceptLoop accepts until ctx ends. Admitted connections live under connCtx.
func (s *Server) acceptLoop(ctx context.Context, connCtx context.Context, ln net.Listener) error {
	var tempDelay time.Duration

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return s.stopCause(ctx, err)
			}
		}

		nc, err := ln.Accept()
		if err != nil {
			if s.isClosing() || ctx.Err() != nil {
				return s.stopCause(ctx, err)
			}

			if !isTemporary(err) {
				s.logger.Error("accept failed, listener stopped", "error", err)
				return fmt.Errorf("accept: %w", err)
			}

			s.metrics.AcceptErrCount.Add(1)
			s.logger.Warn("accept failed", "error", err)
			s.handler.OnAcceptFailed(err)

			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay = min(2*tempDelay, time.Second)
			}

			select {
			case <-time.After(tempDelay):
			case <-ctx.Done():
				return s.stopCause(ctx, ctx.Err())
			}

			continue
		}
		tempDelay = 0

		s.admit(connCtx, nc)
	}
}

func (s *Server) stopCause(ctx context.Context, err error) error {
	if s.isClosing() {
		return ErrServerClosed
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	return err
}

// admit applies the admission policy to nc and starts the connection.
func (s *Server) admit(ctx context.Context, nc net.Conn) {
	remote := nc.RemoteAddr()

	if !s.cfg.allowed(remote) {
		s.reject(nc, ErrNotAllowed)
		return
	}
	if s.cfg.maxConnections > 0 && s.conns.Size() >= s.cfg.maxConnections {
		s.reject(nc, ErrTooManyConnections)
		return
	}

	conn, err := newConnection(ctx, nc, s.cfg.connCfg, nil)
	if err != nil {
		_ = nc.Close()
		s.logger.Error("failed to create connection", "remote", remote, "error", err)

		return
	}

	if h := s.handler.OnConnectionAccepted(conn); h != nil {
		conn.handler = h
	}

	conn.onClose(func(c *Connection) {
		if _, ok := s.conns.LoadAndDelete(c.ID()); ok {
			s.metrics.ActiveConnGauge.Add(-1)
		}
	})
	s.conns.Store(conn.ID(), conn)
	s.metrics.ActiveConnGauge.Add(1)
	s.metrics.AcceptCount.Add(1)

	if err := conn.start(); err != nil {
		s.logger.Error("failed to start connection", "remote", remote, "error", err)
		return
	}

	s.logger.Info("connection accepted", "conn_id", conn.ID(), "remote", remote)
}

func (s *Server) reject(nc net.Conn, reason error) {
	remote := nc.RemoteAddr()
	_ = nc.Close()

	s.metrics.RejectCount.Add(1)
	s.logger.Warn("connection rejected", "remote", remote, "reason", reason)
	s.handler.OnConnectionRejected(remote, reason)
}

// closeConnections closes all live connections with cause and waits for their
// goroutines in parallel.
func (s *Server) closeConnections(cause error) {
	timeout := s.cfg.connCfg.closeTimeout

	var g errgroup.Group
	for _, c := range s.Connections() {
		g.Go(func() error {
			c.fail(cause)
			if !c.wait(timeout) {
				return fmt.Errorf("connection %s: close timeout", c.ID())
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("connections did not stop in time", "error", err)
	}
}

// isTemporary reports whether an accept error allows the loop to continue.
func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
