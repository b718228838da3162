package relayclient

import (
	"github.com/BioHazard786/Huddle/internal/protocol"
)

// Event is a decoded relay→participant message.
type Event interface {
	relayEvent()
}

// RoomJoined confirms admission. Members are the ids already in the room.
type RoomJoined struct {
	RoomCode string
	SelfID   string
	IsFirst  bool
	RoomSize int
	Members  []string
}

// RoomError reports a rejected join.
type RoomError struct {
	Message string
}

// UserJoined announces a new member.
type UserJoined struct {
	ID string
}

// UserLeft announces a departed member.
type UserLeft struct {
	ID string
}

// OfferReceived carries an SDP offer from a peer.
type OfferReceived struct {
	From string
	SDP  string
}

// AnswerReceived carries an SDP answer from a peer.
type AnswerReceived struct {
	From string
	SDP  string
}

// CandidateReceived carries a remote ICE candidate.
type CandidateReceived struct {
	From      string
	Candidate protocol.ICECandidate
}

// MuteChanged reports a peer's mute state.
type MuteChanged struct {
	ID    string
	Muted bool
}

func (RoomJoined) relayEvent()        {}
func (RoomError) relayEvent()         {}
func (UserJoined) relayEvent()        {}
func (UserLeft) relayEvent()          {}
func (OfferReceived) relayEvent()     {}
func (AnswerReceived) relayEvent()    {}
func (CandidateReceived) relayEvent() {}
func (MuteChanged) relayEvent()       {}

// Handler routes incoming signaling messages onto a single ordered channel.
type Handler struct {
	client *Client
	Events chan Event
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
		Events: make(chan Event, 64),
	}
}

// Start decodes incoming messages until the connection ends or the client
// is closed, then closes Events. Events nobody reads after Close are
// dropped.
func (h *Handler) Start() {
	defer close(h.Events)

	for msg := range h.client.Incoming() {
		ev := Decode(msg)
		if ev == nil {
			continue
		}
		select {
		case h.Events <- ev:
		case <-h.client.done:
			return
		}
	}
}

// Decode converts a relay message into an Event. Unknown or incomplete
// messages yield nil.
func Decode(msg *protocol.Message) Event {
	switch msg.Type {
	case protocol.TypeRoomJoined:
		return RoomJoined{
			RoomCode: msg.RoomCode,
			SelfID:   msg.SelfID,
			IsFirst:  msg.IsFirstUser != nil && *msg.IsFirstUser,
			RoomSize: msg.RoomSize,
			Members:  msg.Members,
		}

	case protocol.TypeRoomError:
		return RoomError{Message: msg.Error}

	case protocol.TypeUserJoined:
		if msg.SenderID == "" {
			return nil
		}
		return UserJoined{ID: msg.SenderID}

	case protocol.TypeUserLeft:
		if msg.SenderID == "" {
			return nil
		}
		return UserLeft{ID: msg.SenderID}

	case protocol.TypeOffer:
		if msg.Sender == "" || msg.SDP == "" {
			return nil
		}
		return OfferReceived{From: msg.Sender, SDP: msg.SDP}

	case protocol.TypeAnswer:
		if msg.Sender == "" || msg.SDP == "" {
			return nil
		}
		return AnswerReceived{From: msg.Sender, SDP: msg.SDP}

	case protocol.TypeICECandidate:
		if msg.Sender == "" || msg.Candidate == nil {
			return nil
		}
		return CandidateReceived{From: msg.Sender, Candidate: *msg.Candidate}

	case protocol.TypeUserMuteStatus:
		if msg.UserID == "" || msg.IsMuted == nil {
			return nil
		}
		return MuteChanged{ID: msg.UserID, Muted: *msg.IsMuted}
	}
	return nil
}
