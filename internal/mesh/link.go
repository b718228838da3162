package mesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/looplab/fsm"

	"github.com/BioHazard786/Huddle/internal/media"
	"github.com/BioHazard786/Huddle/internal/protocol"
)

// LinkState is the negotiation state of a PeerLink.
type LinkState string

const (
	StateIdle          LinkState = "idle"
	StateOfferCreated  LinkState = "offer-created"
	StateAnswerAwaited LinkState = "answer-awaited"
	StateOfferReceived LinkState = "offer-received"
	StateAnsweringSent LinkState = "answering-sent"
	StateConnected     LinkState = "connected"
	StateClosed        LinkState = "closed"
)

// FSM events.
const (
	evtCreateOffer  = "create_offer"
	evtSendOffer    = "send_offer"
	evtReceiveOffer = "receive_offer"
	evtSendAnswer   = "send_answer"
	evtConnect      = "connect"
	evtClose        = "close"
)

var ErrMediaFailed = errors.New("media connection failed")

// newLinkFSM builds the negotiation state machine:
//
//	idle → offer-created → answer-awaited → connected
//	idle → offer-received → answering-sent → connected
//	any → closed
//
// A link that yields in glare moves from offer-created or answer-awaited to
// offer-received.
func newLinkFSM(onEnter func(LinkState)) *fsm.FSM {
	all := []string{
		string(StateIdle), string(StateOfferCreated), string(StateAnswerAwaited),
		string(StateOfferReceived), string(StateAnsweringSent), string(StateConnected),
	}
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evtCreateOffer, Src: []string{string(StateIdle)}, Dst: string(StateOfferCreated)},
			{Name: evtSendOffer, Src: []string{string(StateOfferCreated)}, Dst: string(StateAnswerAwaited)},
			{Name: evtReceiveOffer, Src: []string{string(StateIdle), string(StateOfferCreated), string(StateAnswerAwaited)}, Dst: string(StateOfferReceived)},
			{Name: evtSendAnswer, Src: []string{string(StateOfferReceived)}, Dst: string(StateAnsweringSent)},
			{Name: evtConnect, Src: []string{string(StateAnswerAwaited), string(StateAnsweringSent)}, Dst: string(StateConnected)},
			{Name: evtClose, Src: all, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(LinkState(e.Dst))
			},
		},
	)
}

type eventKind int

const (
	kindInitiate eventKind = iota
	kindRemoteOffer
	kindRemoteAnswer
	kindRemoteCandidate
	kindLocalCandidate
	kindMediaState
	kindClose
)

type linkEvent struct {
	kind      eventKind
	sdp       string
	candidate protocol.ICECandidate
	state     media.State
	// gen identifies the media connection a media event came from.
	gen int
}

// PeerLink is the local state for the connection to one remote. All of its
// fields are owned by its run goroutine.
type PeerLink struct {
	remoteID string
	o        *Orchestrator
	log      *slog.Logger
	box      *mailbox

	fsm  *fsm.FSM
	conn media.Connection
	gen  int

	// live mirrors conn for readers outside the run goroutine.
	live atomic.Pointer[liveConn]

	remoteApplied bool
	pending       []protocol.ICECandidate
	closed        bool
	closeErr      error
}

func newPeerLink(o *Orchestrator, remoteID string) *PeerLink {
	l := &PeerLink{
		remoteID: remoteID,
		o:        o,
		log:      o.log.With("remote", remoteID),
		box:      newMailbox(),
	}
	l.fsm = newLinkFSM(l.entered)
	return l
}

type liveConn struct {
	conn media.Connection
}

// Stats returns the receive counters of the current media connection, if
// there is one.
func (l *PeerLink) Stats() (media.Stats, bool) {
	lc := l.live.Load()
	if lc == nil {
		return media.Stats{}, false
	}
	return lc.conn.Stats(), true
}

// State returns the current negotiation state.
func (l *PeerLink) State() LinkState {
	return LinkState(l.fsm.Current())
}

func (l *PeerLink) post(ev linkEvent) bool {
	return l.box.post(ev)
}

func (l *PeerLink) run() {
	defer l.o.wg.Done()
	for range l.box.signal {
		for _, ev := range l.box.take() {
			l.handle(ev)
			if l.closed {
				l.box.close()
				return
			}
		}
	}
}

func (l *PeerLink) handle(ev linkEvent) {
	switch ev.kind {
	case kindInitiate:
		l.initiate()
	case kindRemoteOffer:
		l.receiveOffer(ev.sdp)
	case kindRemoteAnswer:
		l.receiveAnswer(ev.sdp)
	case kindRemoteCandidate:
		l.receiveCandidate(ev.candidate)
	case kindLocalCandidate:
		if ev.gen != l.gen {
			return
		}
		cand := ev.candidate
		if err := l.o.signaler.SendCandidate(l.remoteID, &cand); err != nil {
			l.log.Debug("failed to send candidate", "err", err)
		}
	case kindMediaState:
		if ev.gen == l.gen {
			l.mediaStateChanged(ev.state)
		}
	case kindClose:
		l.teardown(nil)
	}
}

func (l *PeerLink) initiate() {
	if l.State() != StateIdle {
		l.log.Debug("ignoring initiate", "state", l.State())
		return
	}
	if err := l.ensureConn(); err != nil {
		l.fail("create connection", err)
		return
	}

	sdp, err := l.conn.CreateLocalOffer()
	if err != nil {
		l.fail("create offer", err)
		return
	}
	l.event(evtCreateOffer)

	if err := l.o.signaler.SendOffer(l.remoteID, sdp); err != nil {
		l.fail("send offer", err)
		return
	}
	l.event(evtSendOffer)
}

// receiveOffer answers a remote offer. The offer-receiver always answers,
// except in glare: when both sides have offered, only the side with the
// lower id answers, discarding its own offer, while the other side ignores
// the inbound offer and waits for that answer. Each pair therefore sees
// exactly one answer.
func (l *PeerLink) receiveOffer(sdp string) {
	switch l.State() {
	case StateIdle:
	case StateOfferCreated, StateAnswerAwaited:
		if !l.o.yieldsTo(l.remoteID) {
			l.log.Debug("glare: keeping local offer")
			return
		}
		l.log.Debug("glare: discarding local offer")
		l.resetConn()
	default:
		l.log.Debug("ignoring offer", "state", l.State())
		return
	}

	if err := l.ensureConn(); err != nil {
		l.fail("create connection", err)
		return
	}
	if err := l.conn.ApplyRemoteOffer(sdp); err != nil {
		l.fail("apply offer", err)
		return
	}
	l.event(evtReceiveOffer)
	l.remoteApplied = true
	l.flushCandidates()

	answer, err := l.conn.CreateLocalAnswer()
	if err != nil {
		l.fail("create answer", err)
		return
	}
	if err := l.o.signaler.SendAnswer(l.remoteID, answer); err != nil {
		l.fail("send answer", err)
		return
	}
	l.event(evtSendAnswer)
}

func (l *PeerLink) receiveAnswer(sdp string) {
	if l.State() != StateAnswerAwaited || l.remoteApplied {
		l.log.Debug("ignoring answer", "state", l.State())
		return
	}
	if err := l.conn.ApplyRemoteAnswer(sdp); err != nil {
		l.fail("apply answer", err)
		return
	}
	l.remoteApplied = true
	l.flushCandidates()
}

func (l *PeerLink) receiveCandidate(c protocol.ICECandidate) {
	if !l.remoteApplied {
		l.pending = append(l.pending, c)
		return
	}
	l.addCandidate(c)
}

// flushCandidates applies candidates that arrived before the remote
// description, in arrival order.
func (l *PeerLink) flushCandidates() {
	pending := l.pending
	l.pending = nil
	for _, c := range pending {
		l.addCandidate(c)
	}
}

func (l *PeerLink) addCandidate(c protocol.ICECandidate) {
	if err := l.conn.AddRemoteCandidate(c); err != nil {
		l.log.Warn("failed to add remote candidate", "err", err)
	}
}

func (l *PeerLink) mediaStateChanged(s media.State) {
	switch {
	case s == media.StateConnected:
		if l.fsm.Can(evtConnect) {
			l.event(evtConnect)
		}
	case s.Terminal():
		l.teardown(&LinkError{Op: "media", Remote: l.remoteID, Err: ErrMediaFailed, Details: s.String()})
	default:
		l.log.Debug("media state", "state", s)
	}
}

func (l *PeerLink) ensureConn() error {
	if l.conn != nil {
		return nil
	}
	l.gen++
	gen := l.gen
	conn, err := l.o.engine.NewConnection(l.remoteID, media.Handler{
		LocalCandidate: func(c protocol.ICECandidate) {
			l.post(linkEvent{kind: kindLocalCandidate, candidate: c, gen: gen})
		},
		StateChanged: func(s media.State) {
			l.post(linkEvent{kind: kindMediaState, state: s, gen: gen})
		},
		RemoteTrack: func(t media.TrackInfo) {
			l.log.Debug("remote track", "track", t.ID, "codec", t.Codec)
		},
	})
	if err != nil {
		return err
	}
	l.conn = conn
	l.live.Store(&liveConn{conn: conn})
	return nil
}

// resetConn drops the current media connection, keeping buffered remote
// candidates.
func (l *PeerLink) resetConn() {
	if l.conn != nil {
		l.live.Store(nil)
		l.conn.Close()
		l.conn = nil
	}
	l.remoteApplied = false
}

func (l *PeerLink) event(name string) {
	if err := l.fsm.Event(context.Background(), name); err != nil {
		l.log.Debug("transition rejected", "event", name, "err", err)
	}
}

func (l *PeerLink) entered(s LinkState) {
	l.o.notify(LinkUpdate{RemoteID: l.remoteID, State: s, Err: l.closeErr})
}

func (l *PeerLink) fail(op string, err error) {
	l.teardown(&LinkError{Op: op, Remote: l.remoteID, Err: err})
}

// teardown closes the link and removes it from the orchestrator.
func (l *PeerLink) teardown(err error) {
	if l.closed {
		return
	}
	if err != nil {
		l.log.Warn("peer link failed", "err", err)
	}
	l.closed = true
	l.closeErr = err
	if l.conn != nil {
		l.live.Store(nil)
		l.conn.Close()
	}
	l.pending = nil
	l.o.forget(l)
	l.event(evtClose)
}

// LinkError describes a negotiation failure on one link.
type LinkError struct {
	Op      string
	Remote  string
	Err     error
	Details string
}

func (e *LinkError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.Remote, e.Err, e.Details)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Remote, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
