package protocol

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxRoomCodeLength bounds the length of a room code, in runes.
	MaxRoomCodeLength = 20

	// RoomCapacity is the maximum number of members in a room.
	RoomCapacity = 8
)

// NormalizeRoomCode trims and upper-cases a room code. ok is false when the
// result is empty or longer than MaxRoomCodeLength.
func NormalizeRoomCode(code string) (normalized string, ok bool) {
	normalized = strings.ToUpper(strings.TrimSpace(code))
	n := utf8.RuneCountInString(normalized)
	if n == 0 || n > MaxRoomCodeLength {
		return normalized, false
	}
	return normalized, true
}
