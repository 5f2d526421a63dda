package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"socket-chat-server/protocol"
)

var (
	ErrDenied          = errors.New("client: connection denied")
	ErrUnexpectedReply = errors.New("client: unexpected handshake reply")
)

// Client is one named session on a chat server.
type Client struct {
	name string
	conn net.Conn

	wmu sync.Mutex
	buf []byte
}

// Dial connects to addr and joins as name.
func Dial(ctx context.Context, addr, name string) (*Client, error) {
	if err := protocol.ValidateName(name); err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	c := &Client{name: name, conn: conn, buf: make([]byte, protocol.SessionFrameSize)}
	if err := c.join(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) join(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := c.write(protocol.Connect(c.name)); err != nil {
		return fmt.Errorf("client: sending join request: %w", err)
	}

	reply := make([]byte, protocol.HandshakeFrameSize)
	if _, err := io.ReadFull(c.conn, reply); err != nil {
		return fmt.Errorf("client: reading join reply: %w", err)
	}

	switch op := string(protocol.Unframe(reply)); op {
	case protocol.OpAccepted:
		return nil
	case protocol.OpDenied:
		return ErrDenied
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, op)
	}
}

func (c *Client) Name() string { return c.name }

// Send turns a typed line into a request and writes it. Unknown commands and
// oversized lines fail locally without touching the connection.
func (c *Client) Send(line string) error {
	msg, err := protocol.Compose(c.name, line)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Client) write(msg protocol.Message) error {
	frame, err := protocol.Frame(msg.Encode(), protocol.SessionFrameSize)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(frame)
	return err
}

// Receive blocks for the next message from the server. It must not be called
// concurrently.
func (c *Client) Receive() (protocol.Message, error) {
	if _, err := io.ReadFull(c.conn, c.buf); err != nil {
		return protocol.Message{}, err
	}
	return protocol.Parse(string(protocol.Unframe(c.buf)))
}

func (c *Client) Close() error {
	return c.conn.Close()
}
