package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"socket-chat-server/domain"
)

var (
	ErrNameConflict = errors.New("hub: name already exists")
	ErrNotFound     = errors.New("hub: no such client")
	ErrClosed       = errors.New("hub: closed")
)

type session struct {
	name string
	conn domain.Connection
}

// Hub is the directory of named sessions. Every operation holds the single
// lock for its whole duration, writes included, so a lookup and the write
// that follows it never see a half-applied add or remove.
type Hub struct {
	mu       sync.Mutex
	sessions []session
	closed   bool
}

func New() *Hub {
	return &Hub{}
}

func (h *Hub) Add(name string, conn domain.Connection) error {
	return h.Admit(name, conn, nil)
}

// Admit registers conn under name and, while still holding the lock, runs
// accept. If accept fails the session is dropped again and its error returned.
// A closed hub admits nobody.
func (h *Hub) Admit(name string, conn domain.Connection, accept func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if _, ok := h.lookup(name); ok {
		return fmt.Errorf("%w: %q", ErrNameConflict, name)
	}
	h.sessions = append(h.sessions, session{name: name, conn: conn})
	if accept != nil {
		if err := accept(); err != nil {
			h.sessions = h.sessions[:len(h.sessions)-1]
			return err
		}
	}

	slog.Info("client joined", "name", name, "connId", conn.ID(), "remote", conn.RemoteAddr(), "clients", len(h.sessions))
	return nil
}

// Remove deletes the session and closes its connection.
func (h *Hub) Remove(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	h.removeAt(i)
	return nil
}

// Release removes name only while it is still owned by conn.
func (h *Hub) Release(name string, conn domain.Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.lookup(name)
	if !ok || h.sessions[i].conn.ID() != conn.ID() {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	h.removeAt(i)
	return nil
}

func (h *Hub) removeAt(i int) {
	s := h.sessions[i]
	h.sessions = append(h.sessions[:i], h.sessions[i+1:]...)
	s.conn.Close()
	slog.Info("client removed", "name", s.name, "connId", s.conn.ID(), "clients", len(h.sessions))
}

// Lookup returns the position of name. It is a linear scan.
func (h *Hub) Lookup(name string) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lookup(name)
}

func (h *Hub) lookup(name string) (int, bool) {
	for i, s := range h.sessions {
		if s.name == name {
			return i, true
		}
	}
	return -1, false
}

// SendTo writes data to the named session only. A failed write closes that
// connection so its reader ends and reaps the session.
func (h *Hub) SendTo(name string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return h.send(h.sessions[i], data)
}

// Broadcast writes data to every session. One failing session does not stop
// delivery to the others; all failures are returned joined.
func (h *Hub) Broadcast(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, s := range h.sessions {
		if err := h.send(s, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) send(s session, data []byte) error {
	if err := s.conn.Send(data); err != nil {
		slog.Warn("write failed, closing connection", "name", s.name, "connId", s.conn.ID(), "error", err)
		s.conn.Close()
		return fmt.Errorf("hub: send to %q: %w", s.name, err)
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Names returns a copy of the registered names in join order.
func (h *Hub) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, len(h.sessions))
	for i, s := range h.sessions {
		names[i] = s.name
	}
	return names
}

// Close closes every connection and empties the hub. Later joins fail with
// ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, s := range h.sessions {
		s.conn.Close()
	}
	h.sessions = nil
}
