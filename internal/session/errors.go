package session

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrInvalidRoom  = errors.New("invalid room code")
	ErrRoomRejected = errors.New("room rejected the join")
	ErrRelayClosed  = errors.New("relay connection closed")
	ErrNotRunning   = errors.New("coordinator is not running")
)

// CallError describes a failed call operation.
type CallError struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *CallError {
	return &CallError{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}

// roomError maps a relay room-error message to a sentinel.
func roomError(message string) error {
	switch message {
	case "Room is full":
		return WrapError("join", ErrRoomFull, message)
	case "Invalid room code":
		return WrapError("join", ErrInvalidRoom, message)
	}
	return WrapError("join", ErrRoomRejected, message)
}
