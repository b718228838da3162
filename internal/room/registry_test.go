package room

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Huddle/internal/protocol"
)

func TestJoinCreatesRoomAndReportsFirst(t *testing.T) {
	reg := NewRegistry()

	res, err := reg.Join("a", "abcd")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", res.RoomCode)
	assert.True(t, res.IsFirst)
	assert.Equal(t, 1, res.MemberCount)
	assert.Empty(t, res.Others)
	assert.Nil(t, res.Left)

	res, err = reg.Join("b", "ABCD")
	require.NoError(t, err)
	assert.False(t, res.IsFirst)
	assert.Equal(t, 2, res.MemberCount)
	assert.Equal(t, []string{"a"}, res.Others)

	assert.ElementsMatch(t, []string{"a", "b"}, reg.MembersOf("abcd"))
	assert.Equal(t, Stats{Rooms: 1, Members: 2}, reg.Stats())
}

func TestJoinRejectsInvalidCodes(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Join("a", "")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = reg.Join("a", strings.Repeat("z", protocol.MaxRoomCodeLength+1))
	assert.ErrorIs(t, err, ErrInvalidCode)

	assert.Equal(t, Stats{}, reg.Stats())
}

func TestJoinFullRoomLeavesMembershipUnchanged(t *testing.T) {
	reg := NewRegistry()
	for i := range protocol.RoomCapacity {
		_, err := reg.Join(fmt.Sprintf("m%d", i), "FULL")
		require.NoError(t, err)
	}

	_, err := reg.Join("late", "OTHER")
	require.NoError(t, err)

	_, err = reg.Join("late", "FULL")
	require.ErrorIs(t, err, ErrRoomFull)

	assert.Len(t, reg.MembersOf("FULL"), protocol.RoomCapacity)
	code, ok := reg.RoomOf("late")
	require.True(t, ok, "rejected join must not leave the previous room")
	assert.Equal(t, "OTHER", code)
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	var accepted, rejected atomic.Int32
	for i := range 64 {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := reg.Join(id, "race")
			if err != nil {
				assert.ErrorIs(t, err, ErrRoomFull)
				rejected.Add(1)
				return
			}
			accepted.Add(1)
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	assert.Equal(t, int32(protocol.RoomCapacity), accepted.Load())
	assert.Equal(t, int32(64-protocol.RoomCapacity), rejected.Load())
	assert.Len(t, reg.MembersOf("RACE"), protocol.RoomCapacity)
}

func TestRejectedSwitchReportsWhereMemberEnded(t *testing.T) {
	reg := NewRegistry(WithCapacity(2))

	const n = 32
	var wg sync.WaitGroup
	for i := range n {
		home := fmt.Sprintf("HOME%d", i)
		id := fmt.Sprintf("c%d", i)
		_, err := reg.Join(id, home)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reg.Join(id, "TARGET")
			if err == nil {
				return
			}
			assert.ErrorIs(t, err, ErrRoomFull)

			code, ok := reg.RoomOf(id)
			if res != nil && res.Left != nil {
				// Lost the race after leaving home: in no room at all.
				assert.Equal(t, home, res.Left.RoomCode)
				assert.False(t, ok)
				assert.Nil(t, reg.MembersOf(home))
				return
			}
			require.True(t, ok)
			assert.Equal(t, home, code)
		}()
	}
	wg.Wait()

	assert.Len(t, reg.MembersOf("TARGET"), 2)
}

func TestConcurrentJoinLeaveChurn(t *testing.T) {
	reg := NewRegistry(WithCapacity(3))

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for range 200 {
				if _, err := reg.Join(id, "churn"); err == nil {
					assert.LessOrEqual(t, len(reg.MembersOf("churn")), 3)
					reg.Leave(id)
				}
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	assert.Equal(t, Stats{}, reg.Stats())
	assert.Nil(t, reg.MembersOf("churn"))
}

func TestLeaveLastMemberDeletesRoom(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Join("a", "ABCD")
	require.NoError(t, err)
	_, err = reg.Join("b", "ABCD")
	require.NoError(t, err)

	res, ok := reg.Leave("b")
	require.True(t, ok)
	assert.Equal(t, "ABCD", res.RoomCode)
	assert.Equal(t, []string{"a"}, res.Remaining)
	assert.False(t, res.Deleted)

	res, ok = reg.Leave("a")
	require.True(t, ok)
	assert.True(t, res.Deleted)
	assert.Empty(t, res.Remaining)
	assert.Nil(t, reg.MembersOf("ABCD"))
	assert.Equal(t, Stats{}, reg.Stats())

	again, err := reg.Join("c", "abcd")
	require.NoError(t, err)
	assert.True(t, again.IsFirst, "code must be reusable as a fresh room")
}

func TestLeaveWithoutRoomIsNoop(t *testing.T) {
	reg := NewRegistry()
	res, ok := reg.Leave("ghost")
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestJoinImplicitlyLeavesPreviousRoom(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Join("a", "ONE")
	require.NoError(t, err)
	_, err = reg.Join("b", "ONE")
	require.NoError(t, err)

	res, err := reg.Join("a", "TWO")
	require.NoError(t, err)
	require.NotNil(t, res.Left)
	assert.Equal(t, "ONE", res.Left.RoomCode)
	assert.Equal(t, []string{"b"}, res.Left.Remaining)
	assert.True(t, res.IsFirst)

	assert.Equal(t, []string{"b"}, reg.MembersOf("ONE"))
	assert.Equal(t, []string{"a"}, reg.MembersOf("TWO"))
}

func TestRejoinSameRoomIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Join("a", "ONE")
	require.NoError(t, err)
	_, err = reg.Join("b", "ONE")
	require.NoError(t, err)

	res, err := reg.Join("a", "one")
	require.NoError(t, err)
	assert.Nil(t, res.Left)
	assert.True(t, res.AlreadyMember)
	assert.Equal(t, 2, res.MemberCount)
	assert.Equal(t, []string{"b"}, res.Others)
	assert.Equal(t, Stats{Rooms: 1, Members: 2}, reg.Stats())
}

func TestUpdateMetaMergesFields(t *testing.T) {
	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	reg := NewRegistry(WithClock(func() time.Time { return joined }))

	_, ok := reg.UpdateMeta("a", MetaPatch{Muted: protocol.Bool(true)})
	assert.False(t, ok)

	_, err := reg.Join("a", "ABCD")
	require.NoError(t, err)

	m, ok := reg.UpdateMeta("a", MetaPatch{Muted: protocol.Bool(true)})
	require.True(t, ok)
	assert.True(t, m.Muted)
	assert.Equal(t, joined, m.JoinedAt)

	m, ok = reg.UpdateMeta("a", MetaPatch{})
	require.True(t, ok)
	assert.True(t, m.Muted, "empty patch keeps existing fields")
}

func TestPeersAndSameRoom(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Join("a", "ONE")
	_, _ = reg.Join("b", "ONE")
	_, _ = reg.Join("c", "TWO")

	code, peers, ok := reg.Peers("a")
	require.True(t, ok)
	assert.Equal(t, "ONE", code)
	assert.Equal(t, []string{"b"}, peers)

	assert.True(t, reg.SameRoom("a", "b"))
	assert.False(t, reg.SameRoom("a", "c"))
	assert.False(t, reg.SameRoom("a", "ghost"))
}
