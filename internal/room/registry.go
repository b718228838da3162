// Package room tracks which connections belong to which room.
//
// The registry only answers "who is where"; it never relays messages.
package room

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Huddle/internal/protocol"
)

var (
	ErrRoomFull    = errors.New("room is full")
	ErrInvalidCode = errors.New("invalid room code")
)

// JoinResult describes a successful join.
type JoinResult struct {
	RoomCode    string
	IsFirst     bool
	MemberCount int
	// Others are the members that were already in the room.
	Others []string
	// Left is the room that was implicitly left to make this join, if any.
	Left *LeaveResult
	// AlreadyMember is true when the connection was already in this room.
	AlreadyMember bool
}

// LeaveResult describes a removed membership.
type LeaveResult struct {
	RoomCode string
	// Remaining are the members still in the room after the leave.
	Remaining []string
	// Deleted is true when the leave emptied and removed the room.
	Deleted bool
}

// MetaPatch carries the metadata fields to merge. Nil fields are left alone.
type MetaPatch struct {
	Muted *bool
}

// Stats is a read-only view of registry counts.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

// Registry is the authoritative room-code → members mapping.
//
// Locking is per room: the rooms map lock is only held for lookups and
// insert/delete of Room values, never while a room's member set is mutated.
type Registry struct {
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	rooms map[string]*Room

	// memberships maps connection id → *Room the connection is in.
	memberships sync.Map

	roomCount   atomic.Int64
	memberCount atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity overrides the per-room member limit.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithClock overrides the clock used for join timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		capacity: protocol.RoomCapacity,
		now:      time.Now,
		rooms:    make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join admits connID into the room identified by code.
//
// Codes are normalized first; an empty or over-long code yields ErrInvalidCode.
// Any previous membership of connID is left first, unless it is the same room,
// in which case the join is a no-op reporting the current state. A full room
// yields ErrRoomFull and is left unchanged.
//
// A room that fills between the capacity check and admission also yields
// ErrRoomFull, but by then the previous room has been left: the result is
// non-nil with Left set, and connID ends up in no room. Callers must still
// announce Left to the old room.
func (reg *Registry) Join(connID, code string) (*JoinResult, error) {
	normalized, ok := protocol.NormalizeRoomCode(code)
	if !ok {
		return nil, ErrInvalidCode
	}

	if cur, ok := reg.roomOf(connID); ok && cur.Code == normalized {
		cur.mu.Lock()
		if !cur.closed {
			res := &JoinResult{
				RoomCode:      cur.Code,
				MemberCount:   len(cur.members),
				Others:        cur.memberIDs(connID),
				AlreadyMember: true,
			}
			cur.mu.Unlock()
			return res, nil
		}
		cur.mu.Unlock()
	}

	// Check capacity before leaving the old room so a rejected join changes nothing.
	if reg.isFull(normalized) {
		return nil, ErrRoomFull
	}

	left, _ := reg.Leave(connID)

	for {
		r := reg.getOrCreate(normalized)

		r.mu.Lock()
		if r.closed {
			// Lost a race with the last member leaving; retry against a fresh room.
			r.mu.Unlock()
			continue
		}
		if len(r.members) >= reg.capacity {
			r.mu.Unlock()
			// A concurrent join took the last slot after the pre-check; the
			// implicit leave has already happened and is reported in Left.
			return &JoinResult{Left: left}, ErrRoomFull
		}

		others := r.memberIDs("")
		r.members[connID] = &Member{
			ConnID:   connID,
			RoomCode: r.Code,
			JoinedAt: reg.now(),
		}
		count := len(r.members)
		reg.memberships.Store(connID, r)
		r.mu.Unlock()

		reg.memberCount.Add(1)

		return &JoinResult{
			RoomCode:    r.Code,
			IsFirst:     count == 1,
			MemberCount: count,
			Others:      others,
			Left:        left,
		}, nil
	}
}

// Leave removes connID from its room. It reports false if connID was not in
// a room. When the room becomes empty it is deleted and its code is reusable
// immediately.
func (reg *Registry) Leave(connID string) (*LeaveResult, bool) {
	v, ok := reg.memberships.LoadAndDelete(connID)
	if !ok {
		return nil, false
	}
	r := v.(*Room)

	r.mu.Lock()
	if _, ok := r.members[connID]; !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.members, connID)
	reg.memberCount.Add(-1)

	res := &LeaveResult{
		RoomCode:  r.Code,
		Remaining: r.memberIDs(""),
	}
	if len(r.members) == 0 {
		r.closed = true
		res.Deleted = true
	}
	r.mu.Unlock()

	if res.Deleted {
		reg.remove(r)
	}
	return res, true
}

// MembersOf returns the members of the room with the given code, or nil if
// there is no such room.
func (reg *Registry) MembersOf(code string) []string {
	normalized, ok := protocol.NormalizeRoomCode(code)
	if !ok {
		return nil
	}

	reg.mu.Lock()
	r, ok := reg.rooms[normalized]
	reg.mu.Unlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.memberIDs("")
}

// RoomOf returns the room code connID is currently in.
func (reg *Registry) RoomOf(connID string) (string, bool) {
	r, ok := reg.roomOf(connID)
	if !ok {
		return "", false
	}
	return r.Code, true
}

// Peers returns the other members of connID's room.
func (reg *Registry) Peers(connID string) (code string, peers []string, ok bool) {
	r, ok := reg.roomOf(connID)
	if !ok {
		return "", nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, in := r.members[connID]; !in {
		return "", nil, false
	}
	return r.Code, r.memberIDs(connID), true
}

// SameRoom reports whether a and b are currently members of the same room.
func (reg *Registry) SameRoom(a, b string) bool {
	ra, ok := reg.roomOf(a)
	if !ok {
		return false
	}
	rb, ok := reg.roomOf(b)
	return ok && ra == rb
}

// UpdateMeta merges patch into connID's member metadata and returns the
// updated member. The caller does not need to know which room connID is in.
func (reg *Registry) UpdateMeta(connID string, patch MetaPatch) (Member, bool) {
	r, ok := reg.roomOf(connID)
	if !ok {
		return Member{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return Member{}, false
	}
	if patch.Muted != nil {
		m.Muted = *patch.Muted
	}
	return *m, true
}

// Member returns a copy of connID's membership.
func (reg *Registry) Member(connID string) (Member, bool) {
	r, ok := reg.roomOf(connID)
	if !ok {
		return Member{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Stats returns room and member counts.
func (reg *Registry) Stats() Stats {
	return Stats{
		Rooms:   int(reg.roomCount.Load()),
		Members: int(reg.memberCount.Load()),
	}
}

func (reg *Registry) roomOf(connID string) (*Room, bool) {
	v, ok := reg.memberships.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*Room), true
}

func (reg *Registry) isFull(code string) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	reg.mu.Unlock()
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && len(r.members) >= reg.capacity
}

func (reg *Registry) getOrCreate(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	if !ok {
		r = newRoom(code)
		reg.rooms[code] = r
		reg.roomCount.Add(1)
	}
	return r
}

func (reg *Registry) remove(r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.rooms[r.Code]; ok && cur == r {
		delete(reg.rooms, r.Code)
		reg.roomCount.Add(-1)
	}
}
