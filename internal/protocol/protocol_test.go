package protocol

import (
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"abcd", "ABCD", true},
		{"  Full ", "FULL", true},
		{"", "", false},
		{"   ", "", false},
		{strings.Repeat("x", MaxRoomCodeLength), strings.Repeat("X", MaxRoomCodeLength), true},
		{strings.Repeat("x", MaxRoomCodeLength+1), strings.Repeat("X", MaxRoomCodeLength+1), false},
		{"ÄÖÜ", "ÄÖÜ", true},
	}
	for _, tt := range tests {
		got, ok := NormalizeRoomCode(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestCodecsDecodeBrowserShapedMessages(t *testing.T) {
	raw := `{"type":"ice-candidate","target":"b","candidate":{"candidate":"candidate:1 1 udp 2122260223 10.0.0.2 50000 typ host","sdpMid":"0","sdpMLineIndex":0}}`

	var msg Message
	require.NoError(t, JSON.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, TypeICECandidate, msg.Type)
	assert.Equal(t, "b", msg.Target)
	require.NotNil(t, msg.Candidate)
	require.NotNil(t, msg.Candidate.SDPMLineIndex)
	assert.Equal(t, uint16(0), *msg.Candidate.SDPMLineIndex)
	assert.True(t, msg.IsRelayed())
	assert.True(t, msg.HasPayload())

	// Cross-codec: what arrives as JSON leaves as msgpack with the same candidate.
	packed, err := Msgpack.Marshal(&msg)
	require.NoError(t, err)
	var back Message
	require.NoError(t, Msgpack.Unmarshal(packed, &back))
	assert.Equal(t, msg, back)
}

func TestFalseBooleansSurviveOmitEmpty(t *testing.T) {
	msg := Message{Type: TypeRoomJoined, RoomCode: "ABCD", IsFirstUser: Bool(false), RoomSize: 2}
	data, err := JSON.Marshal(&msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isFirstUser":false`)
	assert.NotContains(t, string(data), "isMuted")
}

func TestHasPayload(t *testing.T) {
	assert.False(t, (&Message{Type: TypeOffer}).HasPayload())
	assert.True(t, (&Message{Type: TypeAnswer, SDP: "v=0"}).HasPayload())
	assert.False(t, (&Message{Type: TypeICECandidate, Candidate: &ICECandidate{}}).HasPayload())
	assert.False(t, (&Message{Type: TypeJoinRoom}).IsRelayed())
}

func TestCodecSelection(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	c, err = CodecByName(CodecMsgpack)
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, c.FrameType())

	_, err = CodecByName("xml")
	assert.Error(t, err)

	c, err = CodecForFrame(websocket.TextMessage)
	require.NoError(t, err)
	assert.Equal(t, JSON, c)

	_, err = CodecForFrame(websocket.PingMessage)
	assert.Error(t, err)
}
