package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// TestReclaimDeletesIdleRooms verifies that only rooms idle past the
// threshold and without members are deleted.
func TestReclaimDeletesIdleRooms(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "alice")
	dev := h.createRoom("alice", "dev", "")
	busy := h.createRoom("alice", "busy", "")
	h.join("alice", busy, "")
	h.reset()

	h.clock.Advance(4 * time.Minute)
	res := h.router.Reclaim(h.clock.Now())
	assert.False(t, res.Changed())
	assert.NotNil(t, h.room(dev))

	h.clock.Advance(time.Minute)
	saves := h.persister.saves
	res = h.router.Reclaim(h.clock.Now())

	assert.Equal(t, []string{dev}, res.Deleted)
	assert.False(t, res.ClearedDefault)
	assert.Nil(t, h.room(dev))
	assert.NotNil(t, h.room(busy), "occupied rooms are never reclaimed")
	assert.Greater(t, h.persister.saves, saves)

	rooms := h.last("alice", protocol.TypeRoomsList).Data.([]protocol.RoomSummary)
	require.Len(t, rooms, 2)
	assert.Equal(t, busy, rooms[1].ID)
}

// TestReclaimKeepsRoomsWithHiddenMembers verifies that hidden members count
// as occupancy.
func TestReclaimKeepsRoomsWithHiddenMembers(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "alice")
	h.connect("eve", "eve")
	dev := h.createRoom("alice", "dev", "")
	h.join("eve", dev, "letmein")

	h.clock.Advance(time.Hour)
	res := h.router.Reclaim(h.clock.Now())

	assert.NotContains(t, res.Deleted, dev)
	assert.NotNil(t, h.room(dev))
}

// TestReclaimClearsDefaultRoom verifies that the public room is emptied and
// re-timestamped instead of deleted.
func TestReclaimClearsDefaultRoom(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "alice")
	h.join("alice", DefaultRoomID, "")
	h.say("alice", "anyone?")
	dev := h.createRoom("alice", "dev", "")
	h.join("alice", dev, "")
	h.reset()

	h.clock.Advance(6 * time.Minute)
	res := h.router.Reclaim(h.clock.Now())

	assert.True(t, res.ClearedDefault)
	assert.Empty(t, res.Deleted)
	public := h.room(DefaultRoomID)
	require.NotNil(t, public)
	assert.Zero(t, public.Len())
	assert.Equal(t, h.clock.Now(), public.LastActivity)
	h.last("alice", protocol.TypeRoomsList)

	t.Run("next pass is a no-op", func(t *testing.T) {
		res := h.router.Reclaim(h.clock.Now().Add(time.Second))
		assert.False(t, res.Changed())
	})

	t.Run("empty public room is only re-timestamped", func(t *testing.T) {
		h.reset()
		later := h.clock.Now().Add(10 * time.Minute)
		res := h.router.Reclaim(later)
		assert.False(t, res.ClearedDefault)
		assert.Equal(t, later, public.LastActivity)
		assert.Empty(t, h.eventsOf("alice", protocol.TypeRoomsList))
	})
}

// TestReclaimKeepsOccupiedPublicRoom verifies that a public room with a
// member keeps its history however long it has been idle.
func TestReclaimKeepsOccupiedPublicRoom(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "alice")
	h.join("alice", DefaultRoomID, "")

	h.clock.Advance(time.Hour)
	res := h.router.Reclaim(h.clock.Now())
	assert.False(t, res.Changed(), "occupied public room keeps its history")
	assert.NotZero(t, h.room(DefaultRoomID).Len())
}
