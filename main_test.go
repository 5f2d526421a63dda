package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socket-chat-server/hub"
	"socket-chat-server/protocol"
	"socket-chat-server/server"
)

type mockConn struct{ id string }

func (m *mockConn) ID() string             { return m.id }
func (m *mockConn) RemoteAddr() string     { return "pipe" }
func (m *mockConn) Send(data []byte) error { return nil }
func (m *mockConn) Close() error           { return nil }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatsHandler(t *testing.T) {
	clients := hub.New()
	require.NoError(t, clients.Add("alice", &mockConn{id: "c1"}))
	require.NoError(t, clients.Add("bob", &mockConn{id: "c2"}))

	rec := httptest.NewRecorder()
	statsHandler(clients)(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var body struct {
		Sessions int      `json:"sessions"`
		Names    []string `json:"names"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Sessions)
	assert.Equal(t, []string{"alice", "bob"}, body.Names)
}

func TestWSHandler_Join(t *testing.T) {
	clients := hub.New()
	srv := server.New(clients, server.WithHandshakeTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())

	httpServer := httptest.NewServer(wsHandler(ctx, srv))
	defer func() {
		httpServer.Close()
		cancel()
		clients.Close()
		srv.Wait()
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpServer.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(protocol.Connect("alice").Encode())))
	for _, want := range []string{"CAC", "UJS alice"} {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
	assert.Equal(t, []string{"alice"}, clients.Names())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("MSG alice hi")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "MSG alice hi", string(data))
}

func TestRender(t *testing.T) {
	tests := []struct {
		msg  protocol.Message
		want string
	}{
		{protocol.Message{Opcode: protocol.OpMessage, Sender: "bob", Body: "hi"}, "bob> hi"},
		{protocol.Private("bob", "psst"), "bob whispered: psst"},
		{protocol.UserJoined("bob"), "bob joined the server!"},
		{protocol.UserLeft("bob"), "bob left the server!"},
		{protocol.Accepted(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.msg.Opcode, func(t *testing.T) {
			assert.Equal(t, tt.want, render(tt.msg))
		})
	}
}
