package media

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Huddle/internal/config"
	"github.com/BioHazard786/Huddle/internal/logging"
	"github.com/BioHazard786/Huddle/internal/protocol"
)

// Config holds the ICE setup shared by every connection of an engine.
type Config struct {
	ICEServers []pion.ICEServer
	ForceRelay bool
	Logger     *slog.Logger
}

// ConfigFrom builds the ICE setup from participant configuration. Relay-only
// transport is used when requested, or when TURN is available and the host
// looks like it sits behind a VPN or CGNAT.
func ConfigFrom(cfg *config.Config) Config {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	return Config{
		ICEServers: iceServers,
		ForceRelay: turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()),
	}
}

// PionEngine creates audio connections backed by pion/webrtc. All
// connections share one local Opus track.
type PionEngine struct {
	api   *pion.API
	cfg   Config
	track *pion.TrackLocalStaticSample
	log   *slog.Logger
}

var _ Engine = (*PionEngine)(nil)

// NewPionEngine registers the default codecs and interceptors and creates
// the local audio track.
func NewPionEngine(cfg Config) (*PionEngine, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	s := pion.SettingEngine{LoggerFactory: logging.PionFactory{Logger: log}}

	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "huddle",
	)
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}

	return &PionEngine{
		api:   pion.NewAPI(pion.WithMediaEngine(m), pion.WithInterceptorRegistry(i), pion.WithSettingEngine(s)),
		cfg:   cfg,
		track: track,
		log:   log,
	}, nil
}

// LocalTrack is the track local audio is written to.
func (e *PionEngine) LocalTrack() *pion.TrackLocalStaticSample {
	return e.track
}

// NewConnection creates a peer connection to remoteID with the local track
// attached.
func (e *PionEngine) NewConnection(remoteID string, h Handler) (Connection, error) {
	policy := pion.ICETransportPolicyAll
	if e.cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := e.api.NewPeerConnection(pion.Configuration{
		ICEServers:         e.cfg.ICEServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &pionConnection{
		pc:  pc,
		log: e.log.With("remote", remoteID),
	}

	sender, err := pc.AddTrack(e.track)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add local track: %w", err)
	}
	go c.readRTCP(sender)

	pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil || h.LocalCandidate == nil {
			return
		}
		h.LocalCandidate(fromPionCandidate(cand.ToJSON()))
	})

	pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		c.log.Debug("connection state changed", "state", s.String())
		if h.StateChanged != nil {
			h.StateChanged(fromPionState(s))
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		if h.RemoteTrack != nil {
			h.RemoteTrack(TrackInfo{
				ID:    track.ID(),
				Kind:  track.Kind().String(),
				Codec: track.Codec().MimeType,
			})
		}
		go c.consume(track)
	})

	return c, nil
}

type pionConnection struct {
	pc  *pion.PeerConnection
	log *slog.Logger

	packets      atomic.Uint64
	fractionLost atomic.Uint32
	closed       atomic.Bool
}

func (c *pionConnection) CreateLocalOffer() (string, error) {
	if c.closed.Load() {
		return "", ErrConnectionClosed
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return c.pc.LocalDescription().SDP, nil
}

func (c *pionConnection) ApplyRemoteOffer(sdp string) error {
	return c.applyRemote(pion.SDPTypeOffer, sdp)
}

func (c *pionConnection) CreateLocalAnswer() (string, error) {
	if c.closed.Load() {
		return "", ErrConnectionClosed
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return c.pc.LocalDescription().SDP, nil
}

func (c *pionConnection) ApplyRemoteAnswer(sdp string) error {
	return c.applyRemote(pion.SDPTypeAnswer, sdp)
}

func (c *pionConnection) applyRemote(typ pion.SDPType, sdp string) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := validateSDP(sdp); err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(pion.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote %s: %w", typ, err)
	}
	return nil
}

func (c *pionConnection) AddRemoteCandidate(cand protocol.ICECandidate) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := c.pc.AddICECandidate(toPionCandidate(cand)); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (c *pionConnection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.log.Debug("closing media connection", "packets", c.packets.Load())
	return c.pc.Close()
}

// Stats returns the receive counters.
func (c *pionConnection) Stats() Stats {
	return Stats{
		PacketsReceived: c.packets.Load(),
		FractionLost:    float64(c.fractionLost.Load()) / 256,
	}
}

// consume counts inbound RTP until the track ends. Playback is not done
// here.
func (c *pionConnection) consume(track *pion.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			c.log.Debug("remote track ended", "track", track.ID(), "packets", c.packets.Load())
			return
		}
		c.packets.Add(1)
	}
}

// readRTCP drains RTCP for the local track so interceptors keep running, and
// records the loss the remote reports.
func (c *pionConnection) readRTCP(sender *pion.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		c.recordReports(packets)
	}
}

// recordReports keeps the latest loss fraction from receiver reports.
func (c *pionConnection) recordReports(packets []rtcp.Packet) {
	for _, p := range packets {
		rr, ok := p.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			c.fractionLost.Store(uint32(report.FractionLost))
		}
	}
}

func fromPionCandidate(init pion.ICECandidateInit) protocol.ICECandidate {
	return protocol.ICECandidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func toPionCandidate(c protocol.ICECandidate) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromPionState(s pion.PeerConnectionState) State {
	switch s {
	case pion.PeerConnectionStateConnecting:
		return StateConnecting
	case pion.PeerConnectionStateConnected:
		return StateConnected
	case pion.PeerConnectionStateDisconnected:
		return StateDisconnected
	case pion.PeerConnectionStateFailed:
		return StateFailed
	case pion.PeerConnectionStateClosed:
		return StateClosed
	}
	return StateNew
}
