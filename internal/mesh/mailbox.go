package mesh

import "sync"

// mailbox is an unbounded FIFO feeding one PeerLink actor. Posting never
// blocks, so a link that is busy creating an offer cannot stall the caller.
type mailbox struct {
	mu     sync.Mutex
	items  []linkEvent
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// post appends ev. It reports false once the mailbox is closed.
func (m *mailbox) post(ev linkEvent) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, ev)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns every queued event.
func (m *mailbox) take() []linkEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.items = nil
	m.mu.Unlock()
}
