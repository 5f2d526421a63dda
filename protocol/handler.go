package protocol

import (
	"context"
	"fmt"
	"log/slog"

	"socket-chat-server/domain"
)

type Handler struct {
	registry domain.Registry
}

func NewHandler(r domain.Registry) *Handler {
	return &Handler{registry: r}
}

// Run drains queue until ctx is done or the queue is closed. Requests from one
// session are handled in the order they were queued.
func (h *Handler) Run(ctx context.Context, queue <-chan domain.Inbound) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-queue:
			if !ok {
				slog.Error("inbound queue closed, dispatcher stopping")
				return ErrQueueClosed
			}
			h.Handle(in)
		}
	}
}

// Handle interprets one request against the registry. The returned error says
// why a request was discarded; it has already been logged.
func (h *Handler) Handle(in domain.Inbound) error {
	slog.Debug("request received", "name", in.Session, "connId", in.ConnID, "request", in.Frame)

	msg, err := Parse(in.Frame)
	if err != nil {
		slog.Info("invalid request", "name", in.Session, "request", in.Frame, "error", err)
		return err
	}
	if msg.Sender != in.Session {
		slog.Warn("request sender does not match session", "name", in.Session, "sender", msg.Sender)
		return fmt.Errorf("%w: %q sent as %q", ErrSenderMismatch, in.Session, msg.Sender)
	}

	switch msg.Opcode {
	case OpMessage:
		if err := h.registry.Broadcast([]byte(in.Frame)); err != nil {
			slog.Warn("broadcast incomplete", "name", msg.Sender, "error", err)
		}
	case OpCommand:
		if err := h.command(msg); err != nil {
			return err
		}
	default:
		slog.Info("client sent invalid identifier", "name", in.Session, "opcode", msg.Opcode)
		return fmt.Errorf("%w: %q", ErrUnknownOpcode, msg.Opcode)
	}

	slog.Info("request handled", "name", in.Session, "request", in.Frame)
	return nil
}

func (h *Handler) command(msg Message) error {
	cmd, err := ParseCommand(msg.Body)
	if err != nil {
		slog.Info("client sent invalid command", "name", msg.Sender, "command", msg.Body, "error", err)
		return err
	}

	switch cmd.Name {
	case CmdWhisper:
		return h.whisper(msg.Sender, cmd)
	case CmdExit:
		return h.logout(msg.Sender)
	default:
		slog.Info("client sent invalid command", "name", msg.Sender, "command", cmd.Name)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
}

func (h *Handler) whisper(sender string, cmd Command) error {
	err := h.registry.SendTo(cmd.Target, []byte(Private(sender, cmd.Text).Encode()))
	if err != nil {
		// a missing or broken target is not the sender's fault
		slog.Info("whisper not delivered", "name", sender, "target", cmd.Target, "error", err)
	}
	return nil
}

// logout removes sender before announcing the departure, so the leaving
// client gets CDE but never its own ULS.
func (h *Handler) logout(sender string) error {
	if err := h.registry.SendTo(sender, []byte(Denied().Encode())); err != nil {
		slog.Info("logout notice not delivered", "name", sender, "error", err)
	}
	if err := h.registry.Remove(sender); err != nil {
		slog.Error("logout failed", "name", sender, "error", err)
		return err
	}
	if err := h.registry.Broadcast([]byte(UserLeft(sender).Encode())); err != nil {
		slog.Warn("broadcast incomplete", "name", sender, "error", err)
	}
	return nil
}
