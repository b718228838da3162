// Package signaling is the relay side of the protocol: it tracks open
// connections, dispatches their messages and forwards negotiation messages
// between members of the same room without interpreting them.
package signaling

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/Huddle/internal/metrics"
	"github.com/BioHazard786/Huddle/internal/protocol"
	"github.com/BioHazard786/Huddle/internal/room"
)

// Config holds the per-connection limits applied by the hub.
type Config struct {
	// MaxMessagesPerSecond is the sustained inbound message rate allowed per
	// connection. Zero disables rate limiting.
	MaxMessagesPerSecond float64

	// MessageBurst is the number of messages a connection may send at once.
	MessageBurst int

	// SendBuffer is the size of each connection's outbound queue.
	SendBuffer int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxMessagesPerSecond: 50,
		MessageBurst:         100,
		SendBuffer:           256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MessageBurst <= 0 {
		c.MessageBurst = d.MessageBurst
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// Stats is the read-only data consumed by ops endpoints.
type Stats struct {
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
	Connections int `json:"connections"`
}

// Hub is the central relay. It owns the room registry and the directory of
// open connections.
//
// There is no hub-wide event loop: each connection's ReadPump dispatches its
// own messages sequentially, and connections only synchronize through the
// registry and the outbound queue of the target connection.
type Hub struct {
	Rooms *room.Registry

	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	clients     sync.Map // connection id → *Client
	connections atomic.Int64

	// handle is the dispatch target of every ReadPump, Handle unless replaced.
	handle func(c *Client, msg *protocol.Message)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.log = l
	}
}

// WithMetrics sets the collectors the hub reports to.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithRegistry replaces the room registry.
func WithRegistry(r *room.Registry) HubOption {
	return func(h *Hub) {
		h.Rooms = r
	}
}

// NewHub creates a new Hub instance.
func NewHub(cfg Config, opts ...HubOption) *Hub {
	h := &Hub{
		cfg: cfg.withDefaults(),
		log: slog.Default(),
	}
	h.handle = h.Handle
	for _, opt := range opts {
		opt(h)
	}
	if h.Rooms == nil {
		h.Rooms = room.NewRegistry()
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	return h
}

// Metrics returns the collectors the hub reports to.
func (h *Hub) Metrics() *metrics.Metrics {
	return h.metrics
}

// Attach wraps an upgraded websocket connection in a Client, registers it and
// starts its pumps. Replies are written with codec.
func (h *Hub) Attach(conn *websocket.Conn, codec protocol.Codec) *Client {
	c := h.newClient(uuid.NewString(), conn, codec)
	h.Register(c)

	go c.WritePump()
	go c.ReadPump()
	return c
}

func (h *Hub) newClient(id string, conn *websocket.Conn, codec protocol.Codec) *Client {
	c := &Client{
		ID:    id,
		hub:   h,
		conn:  conn,
		codec: codec,
		send:  make(chan *protocol.Message, h.cfg.SendBuffer),
		done:  make(chan struct{}),
		log:   h.log.With("conn", id),
	}
	if h.cfg.MaxMessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.cfg.MaxMessagesPerSecond), h.cfg.MessageBurst)
	}
	return c
}

// Register adds c to the connection directory.
func (h *Hub) Register(c *Client) {
	h.clients.Store(c.ID, c)
	n := h.connections.Add(1)
	h.metrics.Connections.Set(float64(n))
	c.log.Info("client registered", "codec", c.codec.Name())
}

// Unregister handles transport loss: the connection leaves its room exactly
// as if it had sent leave-room, then it is removed from the directory.
func (h *Hub) Unregister(c *Client) {
	if _, loaded := h.clients.LoadAndDelete(c.ID); !loaded {
		return
	}

	h.leave(c)

	n := h.connections.Add(-1)
	h.metrics.Connections.Set(float64(n))
	c.shutdown()
	c.log.Info("client unregistered")
}

// Lookup returns the open connection with the given id.
func (h *Hub) Lookup(id string) (*Client, bool) {
	v, ok := h.clients.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Client), true
}

// Stats returns room, member and connection counts.
func (h *Hub) Stats() Stats {
	rs := h.Rooms.Stats()
	return Stats{
		Rooms:       rs.Rooms,
		Members:     rs.Members,
		Connections: int(h.connections.Load()),
	}
}

// broadcast sends msg to every id in ids.
func (h *Hub) broadcast(ids []string, msg *protocol.Message) {
	for _, id := range ids {
		if target, ok := h.Lookup(id); ok {
			target.Send(msg)
		}
	}
}

func (h *Hub) updateRoomGauges() {
	rs := h.Rooms.Stats()
	h.metrics.Rooms.Set(float64(rs.Rooms))
	h.metrics.Members.Set(float64(rs.Members))
}

// Close disconnects every open connection. Hijacked websocket connections are
// not tracked by http.Server, so this is registered as a shutdown hook.
func (h *Hub) Close() {
	h.clients.Range(func(_, v any) bool {
		h.Unregister(v.(*Client))
		return true
	})
}
