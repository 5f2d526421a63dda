package tcp

import (
	"io"
	"net"
	"sync"
	"time"

	"socket-chat-server/protocol"
)

const (
	defaultWriteTimeout = 10 * time.Second

	// ackWriteTimeout bounds the handshake reply, which is written while the
	// hub lock is held.
	ackWriteTimeout = time.Second
)

// Conn carries protocol messages over a stream. Outgoing messages are
// zero-padded frames; incoming ones may be padded or bare.
type Conn struct {
	id           string
	conn         net.Conn
	writeTimeout time.Duration

	wmu sync.Mutex
}

func NewConn(id string, conn net.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Conn{
		id:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Receive reads one message into a zeroed session-sized buffer and returns it
// without padding. A bare message is whatever a single read delivers. A read
// that stops inside zero padding is completed to a full frame so the next
// padded frame starts on its own. Only the session's reader may call it.
func (c *Conn) Receive() ([]byte, error) {
	buf := make([]byte, protocol.SessionFrameSize)
	n, err := c.conn.Read(buf)
	if n == 0 {
		return nil, err
	}
	if n < len(buf) && buf[n-1] == 0 {
		if _, err := io.ReadFull(c.conn, buf[n:]); err != nil {
			return nil, err
		}
	}
	return protocol.Unframe(buf), nil
}

func (c *Conn) Send(data []byte) error {
	return c.write(data, protocol.SessionFrameSize, c.writeTimeout)
}

// Acknowledge writes the short handshake reply frame under a tighter deadline
// than session traffic.
func (c *Conn) Acknowledge(data []byte) error {
	return c.write(data, protocol.HandshakeFrameSize, min(c.writeTimeout, ackWriteTimeout))
}

func (c *Conn) write(data []byte, size int, timeout time.Duration) error {
	frame, err := protocol.Frame(string(data), size)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	_, err = c.conn.Write(frame)
	return err
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
