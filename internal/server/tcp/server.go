// Package tcp serves the line-delimited JSON protocol over TCP. Each
// connection gets its own session and is served by its own goroutine; the
// number of connections served at once is bounded.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/logging"
	"github.com/dmitrijs2005/msgbox/internal/protocol"
	"github.com/dmitrijs2005/msgbox/internal/server/session"
)

// Dispatcher executes one decoded request.
type Dispatcher interface {
	Dispatch(ctx context.Context, s *session.Session, req protocol.Request) protocol.Response
}

// Hooks observes connection lifecycle events.
type Hooks interface {
	ConnectionOpened()
	ConnectionClosed()
	ProtocolError()
}

type nopHooks struct{}

func (nopHooks) ConnectionOpened() {}
func (nopHooks) ConnectionClosed() {}
func (nopHooks) ProtocolError()    {}

type Config struct {
	Address          string
	MaxConnections   int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxRequestSize   int
	MaxCommandLength int
}

type Server struct {
	cfg        Config
	codec      *protocol.Codec
	dispatcher Dispatcher
	logger     logging.Logger
	hooks      Hooks
	slots      *semaphore.Weighted

	wg sync.WaitGroup
}

// NewServer returns a server; zero limits fall back to serving one
// connection at a time with a five minute read timeout.
func NewServer(cfg Config, d Dispatcher, l logging.Logger, hooks Hooks) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if hooks == nil {
		hooks = nopHooks{}
	}
	codec := protocol.NewCodec(cfg.MaxRequestSize, cfg.MaxCommandLength)
	cfg.MaxRequestSize = codec.MaxRequestSize

	return &Server{
		cfg:        cfg,
		codec:      codec,
		dispatcher: d,
		logger:     l.With("module", "tcp_server"),
		hooks:      hooks,
		slots:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for the
// connections in flight to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		s.logger.Info(ctx, "Stopping TCP server...")
		_ = ln.Close()
	})
	defer stop()
	defer s.wg.Wait()

	s.logger.Info(ctx, "Starting TCP server", "address", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)

	for {
		// a free slot is taken before accepting, so extra clients wait in the backlog
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			s.slots.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.slots.Release(1)
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn runs the request loop of one connection and closes it when done.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := session.New(remoteAddr(conn))
	logger := s.logger.With("conn_id", sess.ID, "remote", sess.Remote)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	s.hooks.ConnectionOpened()
	defer s.hooks.ConnectionClosed()
	logger.Info(ctx, "client connected")

	// room for the frame plus a trailing \r; the initial buffer must not
	// exceed the limit or the scanner would accept longer lines
	limit := s.cfg.MaxRequestSize + 2
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(limit, 4096)), limit)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		if !scanner.Scan() {
			s.logClose(ctx, logger, scanner.Err(), conn)
			return
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		req, err := s.codec.DecodeRequest(line)
		if err != nil {
			s.hooks.ProtocolError()
			logger.Warn(ctx, "malformed request", "error", err.Error())
			if !s.write(ctx, logger, conn, protocol.FromError(err)) {
				return
			}
			continue
		}

		resp := s.dispatcher.Dispatch(ctx, sess, req)
		if !s.write(ctx, logger, conn, resp) {
			return
		}
	}
}

func (s *Server) logClose(ctx context.Context, logger logging.Logger, err error, conn net.Conn) {
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		logger.Info(ctx, "client disconnected")
	case errors.Is(err, bufio.ErrTooLong):
		s.hooks.ProtocolError()
		logger.Warn(ctx, "request too large, closing connection")
		s.write(ctx, logger, conn, protocol.FromError(common.Protocol("request exceeds %d bytes", s.cfg.MaxRequestSize)))
	case errors.As(err, &ne) && ne.Timeout():
		logger.Info(ctx, "read timeout, closing connection")
	default:
		logger.Warn(ctx, "read failed", "error", common.Connection(err).Error())
	}
}

func (s *Server) write(ctx context.Context, logger logging.Logger, conn net.Conn, resp protocol.Response) bool {
	b, err := protocol.EncodeResponse(resp)
	if err != nil {
		logger.Error(ctx, "encode response failed", "error", err.Error())
		b, _ = protocol.EncodeResponse(protocol.FromError(err))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := conn.Write(append(b, '\n')); err != nil {
		logger.Warn(ctx, "write failed", "error", common.Connection(err).Error())
		return false
	}
	return true
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
