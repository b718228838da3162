package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Huddle/internal/config"
	"github.com/BioHazard786/Huddle/internal/protocol"
	"github.com/BioHazard786/Huddle/internal/signaling"
)

func newTestServer(t *testing.T, cfg *config.Server) (*signaling.Hub, *httptest.Server) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := signaling.NewHub(signaling.DefaultConfig(), signaling.WithLogger(log))
	srv := httptest.NewServer(NewRouter(hub, cfg, log))
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t, &config.Server{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsAuth(t *testing.T) {
	_, srv := newTestServer(t, &config.Server{StatsToken: "s3cret"})

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stats?token=wrong")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats signaling.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, signaling.Stats{}, stats)
}

func TestStatsDisabledWithoutToken(t *testing.T) {
	_, srv := newTestServer(t, &config.Server{})

	resp, err := http.Get(srv.URL + "/stats?token=")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketJoinReflectedInStatsAndMetrics(t *testing.T) {
	hub, srv := newTestServer(t, &config.Server{StatsToken: "t"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?codec=msgpack"), nil)
	require.NoError(t, err)
	defer conn.Close()

	data, err := protocol.Msgpack.Marshal(&protocol.Message{Type: protocol.TypeJoinRoom, RoomCode: "ABCD"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frameType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, frameType)
	var joined protocol.Message
	require.NoError(t, protocol.Msgpack.Unmarshal(data, &joined))
	assert.Equal(t, protocol.TypeRoomJoined, joined.Type)

	assert.Equal(t, signaling.Stats{Rooms: 1, Members: 1, Connections: 1}, hub.Stats())

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "huddle_relay_connections 1")
	assert.Contains(t, string(body), "huddle_relay_rooms 1")
}

func TestUnknownCodecRejected(t *testing.T) {
	_, srv := newTestServer(t, &config.Server{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?codec=xml"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOriginCheck(t *testing.T) {
	_, srv := newTestServer(t, &config.Server{AllowedOrigins: []string{"https://huddle.example"}})

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": {"https://huddle.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	conn.Close()
}
