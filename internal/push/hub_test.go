package push

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-given/token-monitor/internal/models"
)

func httpHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	return mux
}

func TestBroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	for i := 0; i < 10; i++ {
		hub.BroadcastTokenUpdate(&models.TokenSnapshot{Address: "0xaaa"})
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestClientReceivesBroadcast(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait until the hub has registered the client
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastTokenUpdate(&models.TokenSnapshot{Address: "0xabc", Symbol: "TST"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(msg, &envelope))
	assert.Equal(t, MsgTokenUpdated, envelope.Type)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0xabc", data["address"])
}

func TestRemovalBroadcast(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastTokenRemoval("0xgone", "Exceeded honeypot failure limit (5)")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(msg, &envelope))
	assert.Equal(t, MsgTokenRemoved, envelope.Type)
}
