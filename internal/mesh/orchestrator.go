// Package mesh negotiates one media connection per remote participant.
//
// Every remote gets a PeerLink: an actor goroutine that owns the link's
// state machine, media connection and candidate queue. Inbound signaling
// and media callbacks for a remote are posted to that remote's link only,
// so links never share state and a slow negotiation does not hold up the
// others.
package mesh

import (
	"log/slog"
	"sync"

	"github.com/BioHazard786/Huddle/internal/media"
	"github.com/BioHazard786/Huddle/internal/protocol"
)

// Signaler sends negotiation messages to a remote through the relay.
type Signaler interface {
	SendOffer(target, sdp string) error
	SendAnswer(target, sdp string) error
	SendCandidate(target string, candidate *protocol.ICECandidate) error
}

// LinkUpdate reports a PeerLink state change. Err is set when the link
// closed because of a failure.
type LinkUpdate struct {
	RemoteID string
	State    LinkState
	Err      error
}

// Observer receives link updates. It is called from link goroutines and
// must not block.
type Observer func(LinkUpdate)

// Orchestrator owns the PeerLinks of one participant.
type Orchestrator struct {
	engine   media.Engine
	signaler Signaler
	observe  Observer
	log      *slog.Logger

	mu         sync.Mutex
	localID    string
	links      map[string]*PeerLink
	mediaReady bool
	pending    map[string]struct{}
	wg         sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the link update observer.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		o.observe = fn
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithMediaReady marks the local media source as available from the start.
func WithMediaReady() Option {
	return func(o *Orchestrator) {
		o.mediaReady = true
	}
}

// New creates an Orchestrator.
func New(engine media.Engine, signaler Signaler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		signaler: signaler,
		observe:  func(LinkUpdate) {},
		log:      slog.Default(),
		links:    make(map[string]*PeerLink),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetLocalID records this participant's relay id, used to settle glare.
func (o *Orchestrator) SetLocalID(id string) {
	o.mu.Lock()
	o.localID = id
	o.mu.Unlock()
}

// Initiate starts negotiation with remoteID by sending it an offer. If the
// local media source is not ready yet, the remote is recorded as pending and
// the offer is made once MediaReady is called.
func (o *Orchestrator) Initiate(remoteID string) {
	o.mu.Lock()
	link := o.ensureLocked(remoteID)
	if !o.mediaReady {
		o.pending[remoteID] = struct{}{}
		o.mu.Unlock()
		o.log.Debug("media not ready, deferring offer", "remote", remoteID)
		return
	}
	o.mu.Unlock()

	link.post(linkEvent{kind: kindInitiate})
}

// Expect registers remoteID as a participant that will send an offer.
func (o *Orchestrator) Expect(remoteID string) {
	o.mu.Lock()
	o.ensureLocked(remoteID)
	o.mu.Unlock()
}

// MediaReady marks the local media source available and makes the deferred
// offers, once per pending remote.
func (o *Orchestrator) MediaReady() {
	o.mu.Lock()
	if o.mediaReady {
		o.mu.Unlock()
		return
	}
	o.mediaReady = true
	var retry []*PeerLink
	for id := range o.pending {
		if link, ok := o.links[id]; ok {
			retry = append(retry, link)
		}
	}
	clear(o.pending)
	o.mu.Unlock()

	for _, link := range retry {
		link.post(linkEvent{kind: kindInitiate})
	}
}

// HandleOffer routes a remote offer, creating the link if needed.
func (o *Orchestrator) HandleOffer(from, sdp string) {
	o.mu.Lock()
	link := o.ensureLocked(from)
	delete(o.pending, from)
	o.mu.Unlock()

	link.post(linkEvent{kind: kindRemoteOffer, sdp: sdp})
}

// HandleAnswer routes a remote answer. Answers for unknown remotes are
// ignored.
func (o *Orchestrator) HandleAnswer(from, sdp string) {
	if link, ok := o.link(from); ok {
		link.post(linkEvent{kind: kindRemoteAnswer, sdp: sdp})
		return
	}
	o.log.Debug("answer for unknown peer link", "remote", from)
}

// HandleCandidate routes a remote ICE candidate. Candidates for unknown
// remotes are ignored.
func (o *Orchestrator) HandleCandidate(from string, c protocol.ICECandidate) {
	if link, ok := o.link(from); ok {
		link.post(linkEvent{kind: kindRemoteCandidate, candidate: c})
		return
	}
	o.log.Debug("candidate for unknown peer link", "remote", from)
}

// Remove closes and discards the link to remoteID.
func (o *Orchestrator) Remove(remoteID string) {
	o.mu.Lock()
	link, ok := o.links[remoteID]
	delete(o.links, remoteID)
	delete(o.pending, remoteID)
	o.mu.Unlock()

	if ok {
		link.post(linkEvent{kind: kindClose})
	}
}

// Close discards every link and waits for their goroutines to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	links := make([]*PeerLink, 0, len(o.links))
	for id, link := range o.links {
		links = append(links, link)
		delete(o.links, id)
	}
	clear(o.pending)
	o.mu.Unlock()

	for _, link := range links {
		link.post(linkEvent{kind: kindClose})
	}
	o.wg.Wait()
}

// Stats returns the receive counters of every link with a media
// connection, keyed by remote id.
func (o *Orchestrator) Stats() map[string]media.Stats {
	o.mu.Lock()
	links := make([]*PeerLink, 0, len(o.links))
	for _, link := range o.links {
		links = append(links, link)
	}
	o.mu.Unlock()

	stats := make(map[string]media.Stats, len(links))
	for _, link := range links {
		if st, ok := link.Stats(); ok {
			stats[link.remoteID] = st
		}
	}
	return stats
}

// Remotes returns the ids of the remotes with an open link.
func (o *Orchestrator) Remotes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.links))
	for id := range o.links {
		ids = append(ids, id)
	}
	return ids
}

// ensureLocked returns the link to remoteID, creating and starting it if
// none exists. Must be called with o.mu held.
func (o *Orchestrator) ensureLocked(remoteID string) *PeerLink {
	if link, ok := o.links[remoteID]; ok {
		return link
	}
	link := newPeerLink(o, remoteID)
	o.links[remoteID] = link
	o.wg.Add(1)
	go link.run()
	o.notify(LinkUpdate{RemoteID: remoteID, State: StateIdle})
	return link
}

func (o *Orchestrator) link(remoteID string) (*PeerLink, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	link, ok := o.links[remoteID]
	return link, ok
}

// forget removes link if it is still the current link for its remote.
func (o *Orchestrator) forget(link *PeerLink) {
	o.mu.Lock()
	if o.links[link.remoteID] == link {
		delete(o.links, link.remoteID)
	}
	o.mu.Unlock()
}

// yieldsTo reports whether this side answers when it and remoteID have
// offered to each other at the same time. The lower id yields: it drops its
// own offer and answers, and the higher id keeps its offer.
func (o *Orchestrator) yieldsTo(remoteID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.localID < remoteID
}

func (o *Orchestrator) notify(u LinkUpdate) {
	o.observe(u)
}
