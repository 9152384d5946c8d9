package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLine(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &m))
	return m
}

func startServer(t *testing.T, hub *Hub) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer("", hub).Serve(ctx, ln) }()

	return ln.Addr().String(), func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop")
		}
	}
}

func dialTCP(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn, bufio.NewReader(conn)
}

func TestServer_StreamsEvents(t *testing.T) {
	hub := NewHub()
	addr, stop := startServer(t, hub)
	defer stop()

	_, r := dialTCP(t, addr)
	hello := readLine(t, r)
	assert.Equal(t, "welcome", hello["type"])
	assert.Equal(t, "tcp", hello["transport"])
	assert.Equal(t, 1, hub.Stats().TCPClients)

	hub.Publish(RoundEvent{Type: EventRoundSongs, RoundID: "r1", Title: "March"})
	ev := readLine(t, r)
	assert.Equal(t, EventRoundSongs, ev["type"])
	assert.Equal(t, "r1", ev["round_id"])
	assert.NotEmpty(t, ev["at"])
}

func TestServer_FollowOneRound(t *testing.T) {
	hub := NewHub()
	addr, stop := startServer(t, hub)
	defer stop()

	conn, r := dialTCP(t, addr)
	readLine(t, r)

	_, err := fmt.Fprintln(conn, "round r2")
	require.NoError(t, err)
	ack := readLine(t, r)
	assert.Equal(t, "following", ack["type"])
	assert.Equal(t, "r2", ack["round_id"])

	hub.Publish(RoundEvent{Type: EventRoundSongs, RoundID: "r1"})
	hub.Publish(RoundEvent{Type: EventRoundComplete, RoundID: "r2"})
	assert.Equal(t, "r2", readLine(t, r)["round_id"])

	_, err = fmt.Fprintln(conn, "all")
	require.NoError(t, err)
	assert.Equal(t, "following", readLine(t, r)["type"])

	hub.Publish(RoundEvent{Type: EventRoundSongs, RoundID: "r1"})
	assert.Equal(t, "r1", readLine(t, r)["round_id"])
}

func TestWSHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	router := gin.New()
	router.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?round=r9"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"transport":"websocket"`)
	assert.Contains(t, string(msg), `"round_id":"r9"`)
	assert.Equal(t, 1, hub.Stats().WSClients)

	hub.Publish(RoundEvent{Type: EventRoundSongs, RoundID: "other"})
	hub.Publish(RoundEvent{Type: EventRoundComplete, RoundID: "r9"})

	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"round.complete"`)
}

func TestHub_DropsBrokenClients(t *testing.T) {
	hub := NewHub()
	a, b := net.Pipe()
	go func() {
		_, _ = bufio.NewReader(b).ReadString('\n')
		_ = b.Close()
	}()
	require.NoError(t, hub.subscribe(tcpSubscriber(a)))
	assert.Equal(t, 1, hub.Stats().TCPClients)

	hub.Publish(RoundEvent{Type: EventRoundCreated, RoundID: "r1"})
	assert.Equal(t, 0, hub.Stats().TCPClients)
}
