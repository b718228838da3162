// Package media is the participant's audio connection capability: it
// produces and applies session descriptions, exchanges ICE candidates and
// reports connectivity for one remote at a time.
package media

import (
	"errors"

	"github.com/BioHazard786/Huddle/internal/protocol"
)

var (
	ErrNoAudio          = errors.New("session description has no audio section")
	ErrConnectionClosed = errors.New("media connection closed")
)

// State is the connectivity reported by a Connection.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether the connection can no longer carry media.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// TrackInfo describes a remote audio track.
type TrackInfo struct {
	ID    string
	Kind  string
	Codec string
}

// Handler receives a Connection's asynchronous events. Callbacks may run on
// any goroutine and must not block.
type Handler struct {
	LocalCandidate func(protocol.ICECandidate)
	StateChanged   func(State)
	RemoteTrack    func(TrackInfo)
}

// Connection is one negotiated audio path to a single remote.
type Connection interface {
	// CreateLocalOffer creates an offer, applies it locally and returns its SDP.
	CreateLocalOffer() (string, error)
	ApplyRemoteOffer(sdp string) error
	// CreateLocalAnswer answers the applied remote offer and returns its SDP.
	CreateLocalAnswer() (string, error)
	ApplyRemoteAnswer(sdp string) error
	AddRemoteCandidate(c protocol.ICECandidate) error
	// Stats returns receive counters for the remote's audio.
	Stats() Stats
	Close() error
}

// Stats are per-connection receive counters.
type Stats struct {
	PacketsReceived uint64
	// FractionLost is the loss the remote last reported for our audio, 0..1.
	FractionLost float64
}

// Engine creates Connections.
type Engine interface {
	NewConnection(remoteID string, h Handler) (Connection, error)
}
