// Package session turns relay events into negotiation requests and keeps
// the participant-facing view of the call.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/Huddle/internal/media"
	"github.com/BioHazard786/Huddle/internal/mesh"
	"github.com/BioHazard786/Huddle/internal/relayclient"
)

// Relay is the participant's connection to the signaling relay.
type Relay interface {
	mesh.Signaler
	JoinRoom(code string) error
	LeaveRoom() error
	SetMuted(muted bool) error
}

// Source is the local audio source.
type Source interface {
	Ready() <-chan struct{}
	SetMuted(muted bool)
}

// Coordinator reacts to relay events: it asks the orchestrator to negotiate
// with members as they appear and to drop them as they leave, and folds link
// updates into a CallState.
//
// A member already in the room offers to a newcomer; the newcomer waits for
// those offers.
type Coordinator struct {
	relay  Relay
	events <-chan relayclient.Event
	orch   *mesh.Orchestrator
	source Source
	log    *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  CallState
	joinCh chan error
	subs   map[chan CallState]struct{}
	left   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithSource sets the local audio source. Offers wait until it is ready.
func WithSource(s Source) Option {
	return func(c *Coordinator) {
		c.source = s
	}
}

// New creates a Coordinator consuming events from a relay connection.
func New(relay Relay, events <-chan relayclient.Event, engine media.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		relay:  relay,
		events: events,
		log:    slog.Default(),
		now:    time.Now,
		state:  CallState{Status: StatusIdle},
		subs:   make(map[chan CallState]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	meshOpts := []mesh.Option{
		mesh.WithObserver(c.onLinkUpdate),
		mesh.WithLogger(c.log),
	}
	if c.source == nil {
		meshOpts = append(meshOpts, mesh.WithMediaReady())
	}
	c.orch = mesh.New(engine, relay, meshOpts...)
	return c
}

// Run processes relay events until the relay connection ends or ctx is
// done, then closes every peer link. Join, SetMuted and Leave may be called
// while Run is running.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.source != nil {
		go func() {
			select {
			case <-c.source.Ready():
				c.orch.MediaReady()
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			c.orch.Close()
			c.end(nil)
			return ctx.Err()
		case ev, ok := <-c.events:
			if !ok {
				// Losing the relay is an implicit leave: every link goes with it.
				err := NewError("relay", ErrRelayClosed)
				c.orch.Close()
				c.end(err)
				return err
			}
			c.handle(ev)
		}
	}
}

// Join asks the relay to admit this participant to code and waits for the
// answer. Run must be running.
func (c *Coordinator) Join(ctx context.Context, code string) error {
	ch := make(chan error, 1)
	c.mu.Lock()
	c.joinCh = ch
	c.left = false
	c.state.RoomCode = code
	c.state.Status = StatusConnecting
	c.state.Participants = nil
	c.state.StartedAt = time.Time{}
	c.state.Err = nil
	c.publishLocked()
	c.mu.Unlock()

	if err := c.relay.JoinRoom(code); err != nil {
		return NewError("join", err)
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMuted mutes or unmutes local audio and tells the room.
func (c *Coordinator) SetMuted(muted bool) error {
	if c.source != nil {
		c.source.SetMuted(muted)
	}

	c.mu.Lock()
	c.state.Muted = muted
	c.publishLocked()
	c.mu.Unlock()

	if err := c.relay.SetMuted(muted); err != nil {
		return NewError("mute", err)
	}
	return nil
}

// Leave leaves the room and closes every peer link.
func (c *Coordinator) Leave() error {
	c.mu.Lock()
	c.left = true
	c.mu.Unlock()

	err := c.relay.LeaveRoom()
	c.orch.Close()
	c.end(nil)
	if err != nil {
		return NewError("leave", err)
	}
	return nil
}

// Snapshot returns a copy of the current call state.
func (c *Coordinator) Snapshot() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// PeerStats returns audio receive counters keyed by remote id for every
// peer with a live media connection.
func (c *Coordinator) PeerStats() map[string]media.Stats {
	return c.orch.Stats()
}

// Subscribe returns a channel that receives the latest CallState after each
// change. Slow readers only see the most recent state. cancel stops the
// subscription.
func (c *Coordinator) Subscribe() (updates <-chan CallState, cancel func()) {
	ch := make(chan CallState, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.state.clone()
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

func (c *Coordinator) handle(ev relayclient.Event) {
	c.mu.Lock()
	left := c.left
	c.mu.Unlock()
	if left {
		return
	}

	switch ev := ev.(type) {
	case relayclient.RoomJoined:
		c.onRoomJoined(ev)

	case relayclient.RoomError:
		c.mu.Lock()
		err := roomError(ev.Message)
		c.state.Status = StatusIdle
		c.state.Err = err
		c.resolveJoinLocked(err)
		c.publishLocked()
		c.mu.Unlock()
		c.log.Warn("join rejected", "err", err)

	case relayclient.UserJoined:
		c.addParticipant(ev.ID)
		c.log.Info("participant joined", "peer", ev.ID)
		c.orch.Initiate(ev.ID)

	case relayclient.UserLeft:
		c.orch.Remove(ev.ID)
		c.mu.Lock()
		delete(c.state.Participants, ev.ID)
		c.state.aggregate()
		c.publishLocked()
		c.mu.Unlock()
		c.log.Info("participant left", "peer", ev.ID)

	case relayclient.OfferReceived:
		c.addParticipant(ev.From)
		c.orch.HandleOffer(ev.From, ev.SDP)

	case relayclient.AnswerReceived:
		c.orch.HandleAnswer(ev.From, ev.SDP)

	case relayclient.CandidateReceived:
		c.orch.HandleCandidate(ev.From, ev.Candidate)

	case relayclient.MuteChanged:
		c.mu.Lock()
		if p, ok := c.state.Participants[ev.ID]; ok {
			p.Muted = ev.Muted
			c.state.Participants[ev.ID] = p
			c.publishLocked()
		}
		c.mu.Unlock()
	}
}

func (c *Coordinator) onRoomJoined(ev relayclient.RoomJoined) {
	c.orch.SetLocalID(ev.SelfID)

	c.mu.Lock()
	c.state.RoomCode = ev.RoomCode
	c.state.SelfID = ev.SelfID
	c.state.Status = StatusConnecting
	if c.state.Participants == nil {
		c.state.Participants = make(map[string]Participant)
	}
	now := c.now()
	for _, id := range ev.Members {
		if _, ok := c.state.Participants[id]; !ok {
			c.state.Participants[id] = Participant{ID: id, State: PeerConnecting, JoinedAt: now}
		}
	}
	c.resolveJoinLocked(nil)
	c.publishLocked()
	c.mu.Unlock()

	c.log.Info("joined room", "room", ev.RoomCode, "self", ev.SelfID, "members", len(ev.Members))
	for _, id := range ev.Members {
		c.orch.Expect(id)
	}
}

func (c *Coordinator) addParticipant(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Participants == nil {
		c.state.Participants = make(map[string]Participant)
	}
	if _, ok := c.state.Participants[id]; ok {
		return
	}
	c.state.Participants[id] = Participant{ID: id, State: PeerConnecting, JoinedAt: c.now()}
	c.state.aggregate()
	c.publishLocked()
}

// onLinkUpdate folds a link state change into the roster. Each remote only
// updates its own entry.
func (c *Coordinator) onLinkUpdate(u mesh.LinkUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.state.Participants[u.RemoteID]
	if !ok {
		return
	}

	switch u.State {
	case mesh.StateConnected:
		p.State = PeerConnected
		p.Err = nil
		if c.state.StartedAt.IsZero() {
			c.state.StartedAt = c.now()
		}
	case mesh.StateClosed:
		if u.Err == nil {
			return
		}
		p.State = PeerFailed
		p.Err = NewPeerError("link", u.RemoteID, u.Err)
		c.log.Warn("peer link failed", "peer", u.RemoteID, "err", u.Err)
	default:
		if p.State == PeerConnecting {
			return
		}
		p.State = PeerConnecting
		p.Err = nil
	}

	c.state.Participants[u.RemoteID] = p
	c.state.aggregate()
	c.publishLocked()
}

func (c *Coordinator) end(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status == StatusEnded {
		return
	}
	c.state.Status = StatusEnded
	if err != nil {
		c.state.Err = err
	}
	c.resolveJoinLocked(err)
	c.publishLocked()
}

func (c *Coordinator) resolveJoinLocked(err error) {
	if c.joinCh == nil {
		return
	}
	if err == nil && c.state.Status == StatusEnded {
		err = NewError("join", ErrNotRunning)
	}
	c.joinCh <- err
	c.joinCh = nil
}

func (c *Coordinator) publishLocked() {
	snap := c.state.clone()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
