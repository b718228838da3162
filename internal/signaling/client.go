package signaling

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/Huddle/internal/metrics"
	"github.com/BioHazard786/Huddle/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
)

var errRateLimited = errors.New("message rate exceeded")

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	// ID is the opaque connection identifier other participants see.
	ID string

	hub   *Hub
	conn  *websocket.Conn
	codec protocol.Codec

	// send is a buffered channel for all outbound messages.
	// We write to this channel, and a separate goroutine (WritePump)
	// reads from it and writes to the websocket.
	send chan *protocol.Message

	// done is closed once the connection is unregistered.
	done      chan struct{}
	closeOnce sync.Once

	limiter *rate.Limiter
	log     *slog.Logger
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. Messages of one
// connection are dispatched in the order they were received.
func (c *Client) ReadPump() {
	// When this function exits (e.g., connection closes), unregister the client
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.hub.metrics.RateLimited.Inc()
			c.log.Warn("closing connection", "err", errRateLimited)
			c.writeClose(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		msg, err := decodeFrame(frameType, data)
		if err != nil {
			c.log.Debug("dropping malformed message", "err", err)
			continue
		}

		if err := c.dispatch(msg); err != nil {
			c.log.Error("handler failed, closing connection", "err", err, "type", msg.Type)
			c.writeClose(websocket.CloseInternalServerErr, "internal error")
			return
		}
	}
}

// dispatch runs the hub handler for msg, turning a panic into an error so a
// single bad message cannot take down other connections.
func (c *Client) dispatch(msg *protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.hub.metrics.HandlerPanic.Inc()
			err = fmt.Errorf("panic handling %q: %v", msg.Type, r)
		}
	}()
	c.hub.handle(c, msg)
	return nil
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			data, err := c.codec.Marshal(message)
			if err != nil {
				c.log.Error("encode failed", "err", err, "type", message.Type)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.log.Debug("write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues msg for delivery. It never blocks: a message for a connection
// that is closing, or whose queue is full, is dropped.
func (c *Client) Send(msg *protocol.Message) bool {
	select {
	case <-c.done:
		c.hub.metrics.Dropped.WithLabelValues(metrics.DropClosed).Inc()
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		c.hub.metrics.Dropped.WithLabelValues(metrics.DropClosed).Inc()
		return false
	default:
		c.hub.metrics.Dropped.WithLabelValues(metrics.DropSlowConsumer).Inc()
		c.log.Warn("outbound queue full, dropping message", "type", msg.Type)
		return false
	}
}

// Done is closed when the connection has been unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) writeClose(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
}

func decodeFrame(frameType int, data []byte) (*protocol.Message, error) {
	codec, err := protocol.CodecForFrame(frameType)
	if err != nil {
		return nil, err
	}
	var msg protocol.Message
	if err := codec.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", codec.Name(), err)
	}
	if msg.Type == "" {
		return nil, errors.New("message without type")
	}
	return &msg, nil
}
