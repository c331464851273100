package chat

import (
	"sort"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Registry owns every room and the connection → room membership index.
type Registry struct {
	rooms    map[string]*Room
	memberOf map[string]string
	now      func() time.Time
	newID    func() string
}

// NewRegistry returns a registry holding only the default room.
func NewRegistry(now func() time.Time, newID func() string) *Registry {
	reg := &Registry{
		rooms:    make(map[string]*Room),
		memberOf: make(map[string]string),
		now:      now,
		newID:    newID,
	}
	reg.EnsureDefaultRoom()
	return reg
}

// EnsureDefaultRoom creates the public room if it is missing.
func (g *Registry) EnsureDefaultRoom() {
	if _, ok := g.rooms[DefaultRoomID]; ok {
		return
	}
	g.rooms[DefaultRoomID] = newRoom(DefaultRoomID, DefaultRoomName, "", "", g.now())
}

// CreateRoom registers a new empty room owned by owner.
func (g *Registry) CreateRoom(name, password, owner string) *Room {
	id := g.newID()
	for {
		if _, taken := g.rooms[id]; !taken && id != DefaultRoomID {
			break
		}
		id = g.newID()
	}
	room := newRoom(id, name, password, owner, g.now())
	g.rooms[id] = room
	return room
}

// Room looks up a room by id.
func (g *Registry) Room(id string) (*Room, bool) {
	room, ok := g.rooms[id]
	return room, ok
}

// DeleteRoom removes a room and forgets its members. Deleting an absent room
// or the default room does nothing and returns nil.
func (g *Registry) DeleteRoom(id string) *Room {
	room, ok := g.rooms[id]
	if !ok || room.IsDefault() {
		return nil
	}
	for _, connID := range room.Members() {
		delete(g.memberOf, connID)
	}
	delete(g.rooms, id)
	return room
}

// Len returns the number of rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}

// Rooms returns all rooms, default first, then by creation time.
func (g *Registry) Rooms() []*Room {
	out := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault() != out[j].IsDefault() {
			return out[i].IsDefault()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Summaries lists every room as shown in the lobby.
func (g *Registry) Summaries() []protocol.RoomSummary {
	rooms := g.Rooms()
	out := make([]protocol.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, protocol.RoomSummary{
			ID:          room.ID,
			Name:        room.Name,
			UserCount:   len(room.visible),
			HasPassword: room.HasPassword(),
			CanClose:    !room.IsDefault(),
		})
	}
	return out
}
