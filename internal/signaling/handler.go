package signaling

import (
	"errors"

	"github.com/BioHazard786/Huddle/internal/metrics"
	"github.com/BioHazard786/Huddle/internal/protocol"
	"github.com/BioHazard786/Huddle/internal/room"
)

// Error messages reported in room-error.
const (
	errMsgInvalidCode = "Invalid room code"
	errMsgRoomFull    = "Room is full"
)

// Handle dispatches one inbound message from c. It is called from c's
// ReadPump, so messages of a single connection never run concurrently.
func (h *Hub) Handle(c *Client, msg *protocol.Message) {
	if msg.IsRelayed() {
		h.handleRelay(c, msg)
		return
	}

	switch msg.Type {
	case protocol.TypeJoinRoom:
		h.handleJoin(c, msg)

	case protocol.TypeMuteStatus:
		h.handleMute(c, msg)

	case protocol.TypeLeaveRoom:
		h.leave(c)

	default:
		c.log.Debug("unknown message type", "type", msg.Type)
	}
}

func (h *Hub) handleJoin(c *Client, msg *protocol.Message) {
	res, err := h.Rooms.Join(c.ID, msg.RoomCode)
	if res != nil && res.Left != nil {
		h.notifyLeft(c.ID, res.Left)
	}
	if err != nil {
		text := errMsgInvalidCode
		result := metrics.JoinInvalidCode
		if errors.Is(err, room.ErrRoomFull) {
			text = errMsgRoomFull
			result = metrics.JoinRoomFull
		}
		h.metrics.Joins.WithLabelValues(result).Inc()
		c.log.Info("join rejected", "room", msg.RoomCode, "err", err)
		c.Send(&protocol.Message{Type: protocol.TypeRoomError, Error: text})
		h.updateRoomGauges()
		return
	}

	h.metrics.Joins.WithLabelValues(metrics.JoinAccepted).Inc()
	h.updateRoomGauges()
	c.log.Info("joined room", "room", res.RoomCode, "members", res.MemberCount, "first", res.IsFirst)

	// The joiner hears about its admission before anyone can offer to it,
	// followed by the mute state of members already muted.
	c.Send(&protocol.Message{
		Type:        protocol.TypeRoomJoined,
		RoomCode:    res.RoomCode,
		IsFirstUser: protocol.Bool(res.IsFirst),
		RoomSize:    res.MemberCount,
		Members:     res.Others,
		SelfID:      c.ID,
	})
	for _, id := range res.Others {
		if m, ok := h.Rooms.Member(id); ok && m.Muted {
			c.Send(&protocol.Message{
				Type:    protocol.TypeUserMuteStatus,
				UserID:  id,
				IsMuted: protocol.Bool(true),
			})
		}
	}

	if res.AlreadyMember {
		return
	}
	h.broadcast(res.Others, &protocol.Message{
		Type:     protocol.TypeUserJoined,
		SenderID: c.ID,
	})
}

// handleRelay forwards an offer, answer or candidate to its target, tagged
// with the sender's id. Delivery is at most once; anything that cannot be
// delivered is dropped without telling the sender.
func (h *Hub) handleRelay(c *Client, msg *protocol.Message) {
	if msg.Target == "" || !msg.HasPayload() {
		h.metrics.Dropped.WithLabelValues(metrics.DropInvalid).Inc()
		c.log.Debug("dropping invalid relay message", "type", msg.Type)
		return
	}

	if msg.Target == c.ID || !h.Rooms.SameRoom(c.ID, msg.Target) {
		h.metrics.Dropped.WithLabelValues(metrics.DropTargetGone).Inc()
		c.log.Debug("relay target not in room", "type", msg.Type, "target", msg.Target)
		return
	}

	target, ok := h.Lookup(msg.Target)
	if !ok {
		h.metrics.Dropped.WithLabelValues(metrics.DropTargetGone).Inc()
		return
	}

	out := &protocol.Message{
		Type:      msg.Type,
		Sender:    c.ID,
		SDP:       msg.SDP,
		Candidate: msg.Candidate,
	}
	if target.Send(out) {
		h.metrics.Relayed.WithLabelValues(msg.Type).Inc()
	}
}

func (h *Hub) handleMute(c *Client, msg *protocol.Message) {
	if msg.IsMuted == nil {
		return
	}
	member, ok := h.Rooms.UpdateMeta(c.ID, room.MetaPatch{Muted: msg.IsMuted})
	if !ok {
		return
	}

	_, peers, ok := h.Rooms.Peers(c.ID)
	if !ok {
		return
	}
	h.broadcast(peers, &protocol.Message{
		Type:    protocol.TypeUserMuteStatus,
		UserID:  c.ID,
		IsMuted: protocol.Bool(member.Muted),
	})
}

// leave removes c from its room, if any, and tells the remaining members.
func (h *Hub) leave(c *Client) {
	res, ok := h.Rooms.Leave(c.ID)
	if !ok {
		return
	}
	h.updateRoomGauges()
	c.log.Info("left room", "room", res.RoomCode, "remaining", len(res.Remaining), "deleted", res.Deleted)
	h.notifyLeft(c.ID, res)
}

func (h *Hub) notifyLeft(id string, res *room.LeaveResult) {
	h.broadcast(res.Remaining, &protocol.Message{
		Type:     protocol.TypeUserLeft,
		SenderID: id,
	})
}
