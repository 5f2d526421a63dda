package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pair starts a server that wraps the upgraded socket in a Conn and returns
// it together with the dialing client side.
func pair(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()
	conns := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conns <- NewConn("c1", ws)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-conns:
		return c, client
	case <-time.After(time.Second):
		t.Fatal("server side was not created")
		return nil, nil
	}
}

func TestConn_Receive(t *testing.T) {
	c, client := pair(t)
	defer c.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("CON alice\x00\x00\x00")))

	data, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, "CON alice", string(data))
}

func TestConn_SendAndClose(t *testing.T) {
	c, client := pair(t)

	require.NoError(t, c.Acknowledge([]byte("CAC")))
	require.NoError(t, c.Send([]byte("UJS alice")))
	require.NoError(t, c.Close())

	client.SetReadDeadline(time.Now().Add(time.Second))
	var got []string
	for {
		_, data, err := client.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"CAC", "UJS alice"}, got)

	assert.ErrorIs(t, c.Send([]byte("MSG bob hi")), websocket.ErrCloseSent)
}

func TestConn_ReceiveAfterClose(t *testing.T) {
	c, _ := pair(t)
	assert.Equal(t, "c1", c.ID())

	c.Close()
	_, err := c.Receive()
	assert.Error(t, err)
}
