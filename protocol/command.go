package protocol

import (
	"fmt"
	"strings"
)

// Command is the body of a CMD request.
type Command struct {
	Name   string
	Target string
	Text   string
}

// ParseCommand reads "/w <target> <text>" or "/exit". Unknown command tokens
// are returned as-is so the caller can report them.
func ParseCommand(body string) (Command, error) {
	body = strings.TrimLeft(body, " ")
	name, rest, _ := strings.Cut(body, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return Command{}, fmt.Errorf("%w: empty command", ErrMalformed)
	}
	cmd := Command{Name: name}
	if name != CmdWhisper {
		return cmd, nil
	}
	target, text, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if target == "" {
		return Command{}, fmt.Errorf("%w: whisper without target", ErrMalformed)
	}
	cmd.Target, cmd.Text = target, text
	return cmd, nil
}

func knownCommand(name string) bool {
	return name == CmdWhisper || name == CmdExit
}

// Compose turns a line typed by sender into the request to put on the wire.
// Commands are checked here so unknown ones never reach the server.
func Compose(sender, line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Message{}, ErrEmptyMessage
	}
	if !strings.HasPrefix(line, "/") {
		return Message{Opcode: OpMessage, Sender: sender, Body: line}, nil
	}
	token := strings.Fields(line)[0]
	if !knownCommand(token) {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownCommand, token)
	}
	if token == CmdWhisper {
		if _, err := ParseCommand(line); err != nil {
			return Message{}, err
		}
	}
	return Message{Opcode: OpCommand, Sender: sender, Body: line}, nil
}
