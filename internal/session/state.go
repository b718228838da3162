package session

import (
	"maps"
	"time"
)

// Status is the aggregate state of the call.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusEnded      Status = "ended"
)

// PeerState is one remote's connection state as shown in the roster.
type PeerState string

const (
	PeerConnecting PeerState = "connecting"
	PeerConnected  PeerState = "connected"
	PeerFailed     PeerState = "failed"
)

// Participant is a roster entry for one remote.
type Participant struct {
	ID       string
	State    PeerState
	Muted    bool
	JoinedAt time.Time
	// Err is why the link failed when State is PeerFailed.
	Err error
}

// CallState is the externally visible state of the call. It is a projection
// of relay events and link states and holds no negotiation logic.
type CallState struct {
	RoomCode     string
	SelfID       string
	Status       Status
	Muted        bool
	StartedAt    time.Time
	Participants map[string]Participant
	Err          error
}

// Elapsed is the time since the first link connected.
func (s CallState) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Connected counts roster entries with an established media path.
func (s CallState) Connected() int {
	n := 0
	for _, p := range s.Participants {
		if p.State == PeerConnected {
			n++
		}
	}
	return n
}

func (s CallState) clone() CallState {
	s.Participants = maps.Clone(s.Participants)
	return s
}

// aggregate derives the call status from the roster.
func (s *CallState) aggregate() {
	if s.Status == StatusEnded || s.Status == StatusIdle {
		return
	}
	for _, p := range s.Participants {
		if p.State == PeerConnected {
			s.Status = StatusConnected
			return
		}
	}
	s.Status = StatusConnecting
}
