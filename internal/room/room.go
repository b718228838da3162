package room

import (
	"sync"
	"time"
)

// Member is one connection's membership in a room.
type Member struct {
	ConnID   string
	RoomCode string
	Muted    bool
	JoinedAt time.Time
}

// Room is a bounded set of members sharing one call.
//
// A room is created by the first successful join and destroyed when its last
// member leaves. Once closed, a Room value is never reused; a later join with
// the same code creates a fresh Room.
type Room struct {
	Code string

	mu      sync.Mutex
	members map[string]*Member
	closed  bool
}

func newRoom(code string) *Room {
	return &Room{
		Code:    code,
		members: make(map[string]*Member),
	}
}

// memberIDs returns the member identifiers, excluding skip. Caller holds r.mu.
func (r *Room) memberIDs(skip string) []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != skip {
			ids = append(ids, id)
		}
	}
	return ids
}
