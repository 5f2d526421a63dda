package server

import (
	"context"
	"log/slog"

	"socket-chat-server/domain"
	"socket-chat-server/protocol"
)

// read forwards every frame from t to the dispatcher until the connection
// fails. A session still registered at that point is removed and announced
// as gone, so a vanished client does not linger in the hub.
func (s *Server) read(ctx context.Context, name string, t domain.Transport) {
	defer s.depart(name, t)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in session reader", "name", name, "connId", t.ID(), "panic", r)
		}
	}()

	for {
		frame, err := t.Receive()
		if err != nil {
			slog.Debug("closing reader", "name", name, "connId", t.ID(), "error", err)
			return
		}
		if len(frame) == 0 {
			continue
		}

		select {
		case s.queue <- domain.Inbound{Session: name, ConnID: t.ID(), Frame: string(frame)}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) depart(name string, t domain.Transport) {
	if err := s.hub.Release(name, t); err != nil {
		return
	}
	slog.Info("client disconnected", "name", name, "connId", t.ID())
	if err := s.hub.Broadcast([]byte(protocol.UserLeft(name).Encode())); err != nil {
		slog.Warn("broadcast incomplete", "name", name, "error", err)
	}
}
