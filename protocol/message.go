package protocol

import (
	"fmt"
	"strings"
)

// Message is a decoded request or response. Sender holds the name token that
// follows the opcode (the joining name for CON, UJS and ULS) and Body the rest.
type Message struct {
	Opcode string
	Sender string
	Body   string
}

// Parse splits a trimmed frame into opcode, sender and body. The sender is the
// token right after the opcode; it is never searched for inside the line.
func Parse(line string) (Message, error) {
	if len(line) < opcodeLen {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	msg := Message{Opcode: line[:opcodeLen]}
	if len(line) == opcodeLen {
		return msg, nil
	}
	if line[opcodeLen] != ' ' {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	msg.Sender, msg.Body, _ = strings.Cut(line[opcodeLen+1:], " ")
	return msg, nil
}

func (m Message) Encode() string {
	var b strings.Builder
	b.WriteString(m.Opcode)
	if m.Sender != "" {
		b.WriteByte(' ')
		b.WriteString(m.Sender)
		if m.Body != "" {
			b.WriteByte(' ')
			b.WriteString(m.Body)
		}
	}
	return b.String()
}

func (m Message) String() string { return m.Encode() }

func Connect(name string) Message    { return Message{Opcode: OpConnect, Sender: name} }
func Accepted() Message              { return Message{Opcode: OpAccepted} }
func Denied() Message                { return Message{Opcode: OpDenied} }
func UserJoined(name string) Message { return Message{Opcode: OpUserJoined, Sender: name} }
func UserLeft(name string) Message   { return Message{Opcode: OpUserLeft, Sender: name} }

func Private(sender, text string) Message {
	return Message{Opcode: OpPrivate, Sender: sender, Body: text}
}
