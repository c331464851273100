package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: testEpoch}
	return NewRegistry(clock.Now, sequentialIDs()), clock
}

// TestRegistryDefaultRoom verifies the permanent public room.
func TestRegistryDefaultRoom(t *testing.T) {
	reg, _ := newTestRegistry()

	room, ok := reg.Room(DefaultRoomID)
	require.True(t, ok)
	assert.Equal(t, DefaultRoomName, room.Name)
	assert.True(t, room.IsDefault())
	assert.False(t, room.HasPassword())
	assert.Empty(t, room.Owner)

	assert.Nil(t, reg.DeleteRoom(DefaultRoomID))
	assert.Equal(t, 1, reg.Len())

	reg.EnsureDefaultRoom()
	assert.Equal(t, 1, reg.Len())
}

// TestRegistryCreateAndDelete verifies room creation ordering and deletion.
func TestRegistryCreateAndDelete(t *testing.T) {
	reg, clock := newTestRegistry()

	first := reg.CreateRoom("first", "", "c1")
	clock.Advance(time.Second)
	second := reg.CreateRoom("second", "pw", "c2")
	assert.NotEqual(t, first.ID, second.ID)

	rooms := reg.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, DefaultRoomID, rooms[0].ID)
	assert.Equal(t, first.ID, rooms[1].ID)
	assert.Equal(t, second.ID, rooms[2].ID)

	summaries := reg.Summaries()
	assert.True(t, summaries[2].HasPassword)
	assert.True(t, summaries[2].CanClose)

	require.True(t, reg.Join(first.ID, "c1", false))
	deleted := reg.DeleteRoom(first.ID)
	require.NotNil(t, deleted)
	assert.Equal(t, []string{"c1"}, deleted.Members())
	_, ok := reg.RoomOf("c1")
	assert.False(t, ok)

	assert.Nil(t, reg.DeleteRoom(first.ID), "second delete is a no-op")
}

// TestRegistryCreateRoomSkipsTakenIDs verifies that id collisions are retried.
func TestRegistryCreateRoomSkipsTakenIDs(t *testing.T) {
	ids := []string{"dup", "dup", DefaultRoomID, "fresh"}
	next := func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	reg := NewRegistry(func() time.Time { return testEpoch }, next)

	a := reg.CreateRoom("a", "", "")
	b := reg.CreateRoom("b", "", "")
	assert.Equal(t, "dup", a.ID)
	assert.Equal(t, "fresh", b.ID)
}

// TestRegistryMembership verifies that a connection occupies at most one room
// and that hidden members are counted separately.
func TestRegistryMembership(t *testing.T) {
	reg, _ := newTestRegistry()
	dev := reg.CreateRoom("dev", "", "c1")

	require.True(t, reg.Join(DefaultRoomID, "c1", false))
	require.True(t, reg.Join(DefaultRoomID, "c2", true))
	assert.Equal(t, 1, reg.VisibleCount(DefaultRoomID))
	assert.Equal(t, 2, reg.TotalCount(DefaultRoomID))
	assert.True(t, reg.IsHidden(DefaultRoomID, "c2"))
	assert.False(t, reg.IsHidden(DefaultRoomID, "c1"))

	require.True(t, reg.Join(dev.ID, "c1", false))
	roomID, ok := reg.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, dev.ID, roomID)
	assert.Equal(t, 0, reg.VisibleCount(DefaultRoomID))

	assert.False(t, reg.Join("missing", "c3", false))
	_, ok = reg.RoomOf("c3")
	assert.False(t, ok)

	reg.Leave(DefaultRoomID, "c2")
	assert.Equal(t, 0, reg.TotalCount(DefaultRoomID))
	assert.Equal(t, 0, reg.VisibleCount("missing"))
}

// TestRoomPasswords verifies password checks on open and protected rooms.
func TestRoomPasswords(t *testing.T) {
	reg, _ := newTestRegistry()
	open := reg.CreateRoom("open", "", "c1")
	vault := reg.CreateRoom("vault", "s3cret", "c1")

	assert.True(t, open.CheckPassword(""))
	assert.True(t, open.CheckPassword("anything"))
	assert.True(t, vault.CheckPassword("s3cret"))
	assert.False(t, vault.CheckPassword(""))
	assert.False(t, vault.CheckPassword("s3cret "))
}

func userMessage(id, text string) *protocol.Message {
	return &protocol.Message{ID: id, Kind: protocol.KindUser, Author: "alice", Text: text, Reactions: map[string][]string{}}
}

// TestHistoryEviction verifies the bounded history keeps the newest messages.
func TestHistoryEviction(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _ := reg.Room(DefaultRoomID)

	for i := 0; i <= HistoryLimit; i++ {
		room.Append(userMessage(fmt.Sprintf("m%d", i), fmt.Sprintf("text %d", i)))
	}

	assert.Equal(t, HistoryLimit, room.Len())
	assert.Nil(t, room.Find("m0"), "oldest message is evicted")
	msgs := room.Messages()
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, fmt.Sprintf("m%d", HistoryLimit), msgs[len(msgs)-1].ID)

	room.Clear()
	assert.Zero(t, room.Len())
	assert.Empty(t, room.Messages())
}

// TestHistoryMessagesAreCopies verifies callers cannot mutate stored history.
func TestHistoryMessagesAreCopies(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _ := reg.Room(DefaultRoomID)
	room.Append(userMessage("m1", "original"))
	_, _, err := room.AddReaction("m1", "🎉", "bob")
	require.NoError(t, err)

	msgs := room.Messages()
	msgs[0].Text = "changed"
	msgs[0].Reactions["🎉"][0] = "mallory"

	stored := room.Find("m1")
	assert.Equal(t, "original", stored.Text)
	assert.Equal(t, []string{"bob"}, stored.Reactions["🎉"])
}

// TestReactionBookkeeping verifies reaction sets and eager key removal.
func TestReactionBookkeeping(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _ := reg.Room(DefaultRoomID)
	room.Append(userMessage("m1", "hi"))

	_, changed, err := room.AddReaction("m1", "👍", "bob")
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = room.AddReaction("m1", "👍", "bob")
	require.NoError(t, err)
	assert.False(t, changed)

	_, changed, err = room.RemoveReaction("m1", "❤️", "bob")
	require.NoError(t, err)
	assert.False(t, changed)

	msg, changed, err := room.RemoveReaction("m1", "👍", "bob")
	require.NoError(t, err)
	assert.True(t, changed)
	_, present := msg.Reactions["👍"]
	assert.False(t, present)

	_, _, err = room.AddReaction("missing", "👍", "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = room.RemoveReaction("missing", "👍", "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestSnapshotRestore verifies that a snapshot restores rooms without members
// and that the public room can never be restored with an owner or password.
func TestSnapshotRestore(t *testing.T) {
	reg, clock := newTestRegistry()
	dev := reg.CreateRoom("dev", "pw", "c1")
	dev.Append(userMessage("m1", "kept"))
	require.True(t, reg.Join(dev.ID, "c1", false))

	snaps := reg.Snapshot()
	require.Len(t, snaps, 2)
	assert.Equal(t, DefaultRoomID, snaps[0].ID)
	assert.NotNil(t, snaps[0].Messages)

	snaps[0].Password, snaps[0].Owner = "hijack", "c9"

	clock.Advance(time.Hour)
	restored := NewRegistry(clock.Now, sequentialIDs())
	restored.Restore(snaps)

	public, ok := restored.Room(DefaultRoomID)
	require.True(t, ok)
	assert.False(t, public.HasPassword())
	assert.Empty(t, public.Owner)

	room, ok := restored.Room(dev.ID)
	require.True(t, ok)
	assert.Equal(t, "pw", room.Password)
	assert.Equal(t, "c1", room.Owner)
	assert.Equal(t, testEpoch, room.CreatedAt)
	require.Equal(t, 1, room.Len())
	assert.Equal(t, "kept", room.Messages()[0].Text)
	assert.Zero(t, restored.TotalCount(dev.ID))

	t.Run("missing default room is recreated", func(t *testing.T) {
		only := NewRegistry(clock.Now, sequentialIDs())
		only.rooms = make(map[string]*Room)
		only.Restore([]RoomSnapshot{{ID: "x", Name: "x"}})
		_, ok := only.Room(DefaultRoomID)
		assert.True(t, ok)
	})
}
