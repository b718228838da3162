// Package protocol defines the messages exchanged between participants and the
// relay, and the codecs used to put them on the wire.
package protocol

// Message represents every websocket message between a participant and the relay.
//
// Fields are flat and optional; which ones are set depends on Type.
type Message struct {
	Type string `json:"type" msgpack:"type"`

	// join-room, room-joined
	RoomCode string `json:"roomCode,omitempty" msgpack:"roomCode,omitempty"`

	// room-joined
	IsFirstUser *bool    `json:"isFirstUser,omitempty" msgpack:"isFirstUser,omitempty"`
	RoomSize    int      `json:"roomSize,omitempty" msgpack:"roomSize,omitempty"`
	Members     []string `json:"members,omitempty" msgpack:"members,omitempty"`
	SelfID      string   `json:"selfId,omitempty" msgpack:"selfId,omitempty"`

	// room-error
	Error string `json:"message,omitempty" msgpack:"message,omitempty"`

	// user-joined, user-left
	SenderID string `json:"senderId,omitempty" msgpack:"senderId,omitempty"`

	// offer, answer, ice-candidate
	Target    string        `json:"target,omitempty" msgpack:"target,omitempty"`
	Sender    string        `json:"sender,omitempty" msgpack:"sender,omitempty"`
	SDP       string        `json:"sdp,omitempty" msgpack:"sdp,omitempty"`
	Candidate *ICECandidate `json:"candidate,omitempty" msgpack:"candidate,omitempty"`

	// mute-status
	UserID  string `json:"userId,omitempty" msgpack:"userId,omitempty"`
	IsMuted *bool  `json:"isMuted,omitempty" msgpack:"isMuted,omitempty"`
}

// Message type constants.
const (
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"

	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeMuteStatus   = "mute-status"

	TypeRoomJoined     = "room-joined"
	TypeRoomError      = "room-error"
	TypeUserJoined     = "user-joined"
	TypeUserLeft       = "user-left"
	TypeUserMuteStatus = "user-mute-status"
)

// ICECandidate mirrors the browser RTCIceCandidateInit dictionary so candidates
// survive a trip through either codec untouched.
type ICECandidate struct {
	Candidate        string  `json:"candidate" msgpack:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty" msgpack:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty" msgpack:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty" msgpack:"usernameFragment,omitempty"`
}

// IsRelayed reports whether the message is a negotiation message that the
// relay forwards to a single target.
func (m *Message) IsRelayed() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// HasPayload reports whether a negotiation message carries its payload.
func (m *Message) HasPayload() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer:
		return m.SDP != ""
	case TypeICECandidate:
		return m.Candidate != nil && m.Candidate.Candidate != ""
	}
	return false
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
