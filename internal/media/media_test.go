package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtcp"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Huddle/internal/config"
	"github.com/BioHazard786/Huddle/internal/protocol"
)

func newTestEngine(t *testing.T) *PionEngine {
	t.Helper()
	e, err := NewPionEngine(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	return e
}

func TestOfferAnswerExchange(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.NewConnection("b", Handler{})
	require.NoError(t, err)
	defer a.Close()
	b, err := e.NewConnection("a", Handler{})
	require.NoError(t, err)
	defer b.Close()

	offer, err := a.CreateLocalOffer()
	require.NoError(t, err)
	assert.Contains(t, offer, "m=audio")
	assert.Contains(t, strings.ToLower(offer), "opus")

	require.NoError(t, b.ApplyRemoteOffer(offer))
	answer, err := b.CreateLocalAnswer()
	require.NoError(t, err)
	assert.Contains(t, answer, "m=audio")

	require.NoError(t, a.ApplyRemoteAnswer(answer))
}

func TestApplyRejectsInvalidSDP(t *testing.T) {
	e := newTestEngine(t)
	c, err := e.NewConnection("b", Handler{})
	require.NoError(t, err)
	defer c.Close()

	assert.Error(t, c.ApplyRemoteOffer("not sdp"))

	noAudio := "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"
	assert.ErrorIs(t, c.ApplyRemoteOffer(noAudio), ErrNoAudio)
}

func TestClosedConnectionRejectsNegotiation(t *testing.T) {
	e := newTestEngine(t)
	c, err := e.NewConnection("b", Handler{})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.CreateLocalOffer()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, err = c.CreateLocalAnswer()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, c.ApplyRemoteAnswer("v=0"), ErrConnectionClosed)
	assert.ErrorIs(t, c.AddRemoteCandidate(protocol.ICECandidate{Candidate: "candidate:1"}), ErrConnectionClosed)
}

func TestReceiverReportsUpdateLoss(t *testing.T) {
	e := newTestEngine(t)
	conn, err := e.NewConnection("b", Handler{})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, Stats{}, conn.Stats())

	c := conn.(*pionConnection)
	c.recordReports([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: 1},
		&rtcp.ReceiverReport{SSRC: 2, Reports: []rtcp.ReceptionReport{{SSRC: 1, FractionLost: 64}}},
	})
	assert.InDelta(t, 0.25, conn.Stats().FractionLost, 1e-9)

	c.packets.Add(3)
	assert.Equal(t, uint64(3), conn.Stats().PacketsReceived)
}

func TestCandidateConversion(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	ufrag := "abcd"
	c := protocol.ICECandidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx, UsernameFragment: &ufrag}
	assert.Equal(t, c, fromPionCandidate(toPionCandidate(c)))
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateClosed.Terminal())
	assert.False(t, StateDisconnected.Terminal())
	assert.Equal(t, "connected", StateConnected.String())
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{STUNServer: "stun:stun.example.com:19302"}
	mc := ConfigFrom(cfg)
	require.Len(t, mc.ICEServers, 1)
	assert.False(t, mc.ForceRelay)

	cfg.TURNServer = "turn:turn.example.com"
	cfg.TURNUser, cfg.TURNPass = "u", "p"
	cfg.ForceRelay = true
	mc = ConfigFrom(cfg)
	require.Len(t, mc.ICEServers, 2)
	assert.Equal(t, "u", mc.ICEServers[1].Username)
	assert.True(t, mc.ForceRelay)
}

func TestRestrictedInterface(t *testing.T) {
	lan := []net.Addr{&net.IPNet{IP: net.IPv4(192, 168, 1, 10), Mask: net.CIDRMask(24, 32)}}
	cgnat := []net.Addr{&net.IPNet{IP: net.IPv4(100, 100, 1, 1), Mask: net.CIDRMask(10, 32)}}

	assert.False(t, restrictedInterface("eth0", lan))
	assert.True(t, restrictedInterface("wg0", lan))
	assert.True(t, restrictedInterface("CloudflareWARP", lan))
	assert.True(t, restrictedInterface("eth0", cgnat))
}

type recordingWriter struct {
	mu      sync.Mutex
	samples []pionmedia.Sample
	err     error
}

func (w *recordingWriter) WriteSample(s pionmedia.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.samples = append(w.samples, s)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

func TestSilenceSource(t *testing.T) {
	w := &recordingWriter{}
	s := NewSilenceSource(w)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("source never became ready")
	}
	assert.Eventually(t, func() bool { return w.count() >= 3 }, 2*time.Second, 10*time.Millisecond)

	s.SetMuted(true)
	assert.True(t, s.Muted())
	time.Sleep(3 * frameDuration)
	n := w.count()
	time.Sleep(5 * frameDuration)
	assert.Equal(t, n, w.count())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSilenceSourceStopsOnWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("track closed")}
	s := NewSilenceSource(w)
	err := s.Run(context.Background())
	assert.EqualError(t, err, "track closed")
}
