// Package relayclient is the participant's connection to the signaling
// relay.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Huddle/internal/dns"
	"github.com/BioHazard786/Huddle/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	dialTimeout    = 10 * time.Second
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("relay connection closed")

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	serverURL string
	codec     protocol.Codec
	resolver  *dns.Resolver
	log       *slog.Logger

	conn      *websocket.Conn
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Option configures a Client.
type Option func(*Client)

// WithCodec sets the codec used for outbound frames.
func WithCodec(codec protocol.Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithResolver sets the resolver used to dial the relay.
func WithResolver(r *dns.Resolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a new signaling client. Frames are msgpack-encoded unless
// another codec is given.
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: serverURL,
		codec:     protocol.Msgpack,
		resolver:  &dns.Resolver{},
		log:       slog.Default(),
		incoming:  make(chan *protocol.Message, 64),
		outgoing:  make(chan *protocol.Message, 64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	dialer := &websocket.Dialer{
		NetDialContext:   c.resolver.DialContext,
		HandshakeTimeout: dialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.serverURL, err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	c.log.Debug("connected to relay", "url", c.serverURL, "codec", c.codec.Name())
	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}

		codec, err := protocol.CodecForFrame(frameType)
		if err != nil {
			continue
		}
		var msg protocol.Message
		if err := codec.Unmarshal(data, &msg); err != nil {
			c.log.Debug("dropping malformed relay message", "err", err)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic
// pings. On Close it sends leave-room followed by a close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			if err := c.write(message); err != nil {
				c.setErr(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.setErr(err)
				return
			}

		case <-c.done:
			c.drain()
			c.write(&protocol.Message{Type: protocol.TypeLeaveRoom})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes messages queued before Close.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.outgoing:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg *protocol.Message) error {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		c.log.Error("encode failed", "err", err, "type", msg.Type)
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(c.codec.FrameType(), data)
}

// Send queues a message for the relay.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// JoinRoom asks the relay to admit this participant to room code.
func (c *Client) JoinRoom(code string) error {
	return c.Send(&protocol.Message{Type: protocol.TypeJoinRoom, RoomCode: code})
}

// LeaveRoom leaves the current room without closing the connection.
func (c *Client) LeaveRoom() error {
	return c.Send(&protocol.Message{Type: protocol.TypeLeaveRoom})
}

// SendOffer relays an SDP offer to target.
func (c *Client) SendOffer(target, sdp string) error {
	return c.Send(&protocol.Message{Type: protocol.TypeOffer, Target: target, SDP: sdp})
}

// SendAnswer relays an SDP answer to target.
func (c *Client) SendAnswer(target, sdp string) error {
	return c.Send(&protocol.Message{Type: protocol.TypeAnswer, Target: target, SDP: sdp})
}

// SendCandidate relays a local ICE candidate to target.
func (c *Client) SendCandidate(target string, candidate *protocol.ICECandidate) error {
	return c.Send(&protocol.Message{Type: protocol.TypeICECandidate, Target: target, Candidate: candidate})
}

// SetMuted announces this participant's mute state to the room.
func (c *Client) SetMuted(muted bool) error {
	return c.Send(&protocol.Message{Type: protocol.TypeMuteStatus, IsMuted: protocol.Bool(muted)})
}

// Incoming returns the channel of decoded relay messages. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close leaves the room and closes the WebSocket connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
