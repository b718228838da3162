package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Huddle/internal/config"
	"github.com/BioHazard786/Huddle/internal/dns"
	"github.com/BioHazard786/Huddle/internal/protocol"
	"github.com/BioHazard786/Huddle/internal/server"
	"github.com/BioHazard786/Huddle/internal/session"
	"github.com/BioHazard786/Huddle/internal/signaling"
)

func newRelay(t *testing.T, token string) (*signaling.Hub, *config.Config) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := signaling.NewHub(signaling.DefaultConfig(), signaling.WithLogger(log))
	srv := httptest.NewServer(server.NewRouter(hub, &config.Server{StatsToken: token}, log))
	t.Cleanup(srv.Close)

	cfg, err := config.Load(config.Options{Server: srv.URL})
	require.NoError(t, err)
	return hub, cfg
}

func TestFetchStats(t *testing.T) {
	hub, cfg := newRelay(t, "secret")
	_, err := hub.Rooms.Join("a", "ROOM")
	require.NoError(t, err)
	_, err = hub.Rooms.Join("b", "ROOM")
	require.NoError(t, err)

	stats, err := fetchStats(context.Background(), newHTTPClient(&dns.Resolver{}), cfg, "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 2, stats.Members)
	assert.Equal(t, 0, stats.Connections)
}

func TestFetchStatsWrongToken(t *testing.T) {
	_, cfg := newRelay(t, "secret")

	_, err := fetchStats(context.Background(), newHTTPClient(&dns.Resolver{}), cfg, "guess")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestFetchStatsDisabled(t *testing.T) {
	_, cfg := newRelay(t, "")

	_, err := fetchStats(context.Background(), newHTTPClient(&dns.Resolver{}), cfg, "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestStartCode(t *testing.T) {
	code, err := startCode("")
	require.NoError(t, err)
	_, ok := protocol.NormalizeRoomCode(code)
	assert.True(t, ok)

	code, err = startCode("  team-standup ")
	require.NoError(t, err)
	assert.Equal(t, "TEAM-STANDUP", code)

	_, err = startCode("THIS-CODE-IS-FAR-TOO-LONG")
	assert.True(t, errors.Is(err, session.ErrInvalidRoom))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"start", "join", "stats"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"server", "stun", "turn", "turn-user", "turn-pass", "relay"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.NotNil(t, startCmd.Flags().Lookup("muted"))
	assert.NotNil(t, joinCmd.Flags().Lookup("muted"))
}

func TestJoinRejectsBadLink(t *testing.T) {
	err := joinCmd.RunE(joinCmd, []string{"https://huddle.qzz.io/x/ROOM"})
	assert.True(t, errors.Is(err, session.ErrInvalidRoom))
}
