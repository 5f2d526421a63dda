package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Client requests.
const (
	OpConnect = "CON"
	OpMessage = "MSG"
	OpCommand = "CMD"
)

// Server responses. MSG is relayed unchanged in both directions.
const (
	OpAccepted   = "CAC"
	OpDenied     = "CDE"
	OpUserJoined = "UJS"
	OpUserLeft   = "ULS"
	OpPrivate    = "PRM"
)

const (
	CmdWhisper = "/w"
	CmdExit    = "/exit"
)

const (
	SessionFrameSize   = 1024
	HandshakeFrameSize = 32
	MaxNameLength      = 64

	opcodeLen = 3
)

var (
	ErrMalformed      = errors.New("protocol: malformed message")
	ErrUnknownOpcode  = errors.New("protocol: unknown opcode")
	ErrUnknownCommand = errors.New("protocol: no such command")
	ErrSenderMismatch = errors.New("protocol: sender does not own the session")
	ErrFrameTooLarge  = errors.New("protocol: message does not fit in frame")
	ErrEmptyMessage   = errors.New("protocol: empty message")
	ErrInvalidName    = errors.New("protocol: invalid name")
	ErrQueueClosed    = errors.New("protocol: inbound queue closed")
)

// Frame copies msg into a zero-padded buffer of exactly size bytes.
func Frame(msg string, size int) ([]byte, error) {
	if len(msg) > size {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(msg), size)
	}
	buf := make([]byte, size)
	copy(buf, msg)
	return buf, nil
}

// Unframe strips the zero padding left after the message.
func Unframe(buf []byte) []byte {
	return bytes.TrimRight(buf, "\x00")
}

func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	case strings.ContainsFunc(name, func(r rune) bool { return unicode.IsSpace(r) || r == 0 }):
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return nil
}
