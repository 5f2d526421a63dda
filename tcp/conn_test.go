package tcp

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socket-chat-server/protocol"
)

func readFrame(t *testing.T, conn net.Conn, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	return buf
}

func TestConn_Send(t *testing.T) {
	peer, server := net.Pipe()
	defer peer.Close()
	c := NewConn("c1", server, time.Second)
	defer c.Close()

	errc := make(chan error, 1)
	go func() { errc <- c.Send([]byte("UJS alice")) }()

	frame := readFrame(t, peer, protocol.SessionFrameSize)
	require.NoError(t, <-errc)
	assert.Equal(t, "UJS alice", string(protocol.Unframe(frame)))
	assert.Equal(t, byte(0), frame[len(frame)-1])
}

func TestConn_Acknowledge(t *testing.T) {
	peer, server := net.Pipe()
	defer peer.Close()
	c := NewConn("c1", server, time.Second)
	defer c.Close()

	errc := make(chan error, 1)
	go func() { errc <- c.Acknowledge([]byte(protocol.Accepted().Encode())) }()

	frame := readFrame(t, peer, protocol.HandshakeFrameSize)
	require.NoError(t, <-errc)
	assert.Equal(t, "CAC", string(protocol.Unframe(frame)))
}

func TestConn_SendTooLarge(t *testing.T) {
	_, server := net.Pipe()
	c := NewConn("c1", server, time.Second)
	defer c.Close()

	err := c.Acknowledge(make([]byte, protocol.HandshakeFrameSize+1))
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestConn_Receive(t *testing.T) {
	peer, server := net.Pipe()
	c := NewConn("c1", server, time.Second)
	defer c.Close()

	go func() {
		for _, msg := range []string{"MSG alice hello", "CMD alice /exit"} {
			frame, _ := protocol.Frame(msg, protocol.SessionFrameSize)
			peer.Write(frame)
		}
		peer.Close()
	}()

	first, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, "MSG alice hello", string(first))

	second, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, "CMD alice /exit", string(second))
	assert.Equal(t, "MSG alice hello", string(first), "frames do not share the read buffer")

	_, err = c.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_ReceiveBare(t *testing.T) {
	peer, server := net.Pipe()
	c := NewConn("c1", server, time.Second)
	defer c.Close()

	go func() {
		peer.Write([]byte("CON alice"))
		peer.Write([]byte("MSG alice hi"))
		peer.Close()
	}()

	for _, want := range []string{"CON alice", "MSG alice hi"} {
		got, err := c.Receive()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestConn_ReceiveSplitFrame(t *testing.T) {
	peer, server := net.Pipe()
	c := NewConn("c1", server, time.Second)
	defer c.Close()

	go func() {
		first, _ := protocol.Frame("MSG alice hi", protocol.SessionFrameSize)
		peer.Write(first[:20])
		peer.Write(first[20:])
		second, _ := protocol.Frame("MSG alice again", protocol.SessionFrameSize)
		peer.Write(second)
		peer.Close()
	}()

	for _, want := range []string{"MSG alice hi", "MSG alice again"} {
		got, err := c.Receive()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestConn_AcknowledgeStalledPeer(t *testing.T) {
	peer, server := net.Pipe()
	defer peer.Close()
	c := NewConn("c1", server, 10*time.Second)
	defer c.Close()

	start := time.Now()
	err := c.Acknowledge([]byte(protocol.Accepted().Encode()))

	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestConn_Identity(t *testing.T) {
	_, server := net.Pipe()
	c := NewConn("c1", server, 0)
	defer c.Close()

	assert.Equal(t, "c1", c.ID())
	assert.Equal(t, "pipe", c.RemoteAddr())
	assert.Equal(t, defaultWriteTimeout, c.writeTimeout)
}
