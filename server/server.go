package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"socket-chat-server/domain"
	"socket-chat-server/hub"
	"socket-chat-server/protocol"
	"socket-chat-server/tcp"
)

// Server accepts connections, runs the join handshake and feeds every
// session's requests into a single dispatcher.
type Server struct {
	hub     *hub.Hub
	handler *protocol.Handler
	queue   chan domain.Inbound

	handshakeTimeout time.Duration
	writeTimeout     time.Duration

	dispatchOnce sync.Once
	dispatchDone chan struct{}
	wg           sync.WaitGroup
}

type Option func(*Server)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

func WithQueueSize(n int) Option {
	return func(s *Server) { s.queue = make(chan domain.Inbound, n) }
}

func New(h *hub.Hub, opts ...Option) *Server {
	s := &Server{
		hub:              h,
		handler:          protocol.NewHandler(h),
		queue:            make(chan domain.Inbound, 256),
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     10 * time.Second,
		dispatchDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the dispatcher once; Serve and Attach call it as needed.
func (s *Server) Start(ctx context.Context) {
	s.dispatchOnce.Do(func() {
		go func() {
			defer close(s.dispatchDone)
			if err := s.handler.Run(ctx, s.queue); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("dispatcher stopped", "error", err)
			}
		}()
	})
}

// Serve accepts TCP connections until ctx is done. Accept errors are logged
// and skipped; a listener closed by anything but ctx is returned as fatal.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start(ctx)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	slog.Info("server started", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("server: accept: %w", err)
			}
			slog.Error("accept error", "error", err)
			continue
		}

		t := tcp.NewConn(uuid.NewString(), conn, s.writeTimeout)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Attach(ctx, t)
		}()
	}
}

// Attach runs the join handshake on t and, when it succeeds, starts the
// session's reader. It returns once the handshake is over.
func (s *Server) Attach(ctx context.Context, t domain.Transport) {
	s.Start(ctx)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during handshake", "connId", t.ID(), "panic", r)
			t.Close()
		}
	}()

	name, err := s.handshake(t)
	if err != nil {
		slog.Info("client sent invalid request", "connId", t.ID(), "remote", t.RemoteAddr(), "error", err)
		t.Close()
		return
	}

	err = s.hub.Admit(name, t, func() error {
		return t.Acknowledge([]byte(protocol.Accepted().Encode()))
	})
	switch {
	case errors.Is(err, hub.ErrClosed):
		slog.Info("server shutting down, join refused", "name", name, "remote", t.RemoteAddr())
		t.Close()
		return
	case errors.Is(err, hub.ErrNameConflict):
		slog.Info("denied access", "name", name, "remote", t.RemoteAddr())
		if err := t.Acknowledge([]byte(protocol.Denied().Encode())); err != nil {
			slog.Debug("denial not delivered", "remote", t.RemoteAddr(), "error", err)
		}
		t.Close()
		return
	case err != nil:
		slog.Error("error writing connection acceptance", "name", name, "remote", t.RemoteAddr(), "error", err)
		t.Close()
		return
	}

	if err := s.hub.Broadcast([]byte(protocol.UserJoined(name).Encode())); err != nil {
		slog.Warn("broadcast incomplete", "name", name, "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.read(ctx, name, t)
	}()
}

// handshake reads the first frame, which must be "CON <name>". The transport
// is closed if nothing valid arrives in time.
func (s *Server) handshake(t domain.Transport) (string, error) {
	timer := time.AfterFunc(s.handshakeTimeout, func() { t.Close() })
	frame, err := t.Receive()
	if !timer.Stop() {
		return "", errors.New("server: handshake timed out")
	}
	if err != nil {
		return "", fmt.Errorf("server: reading connection request: %w", err)
	}

	msg, err := protocol.Parse(string(frame))
	if err != nil {
		return "", err
	}
	if msg.Opcode != protocol.OpConnect {
		return "", fmt.Errorf("%w: expected %s, got %q", protocol.ErrUnknownOpcode, protocol.OpConnect, msg.Opcode)
	}
	if msg.Body != "" {
		return "", fmt.Errorf("%w: %q", protocol.ErrInvalidName, msg.Sender+" "+msg.Body)
	}
	if err := protocol.ValidateName(msg.Sender); err != nil {
		return "", err
	}
	return msg.Sender, nil
}

// Wait blocks until every connection goroutine and the dispatcher have
// returned. Connections must be closed first, e.g. with hub.Close.
func (s *Server) Wait() {
	s.wg.Wait()
	s.dispatchOnce.Do(func() { close(s.dispatchDone) })
	<-s.dispatchDone
}
