package chat

import (
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// RoomSnapshot is the durable part of a room. Membership is never persisted.
type RoomSnapshot struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Password     string              `json:"password,omitempty"`
	Owner        string              `json:"owner,omitempty"`
	Messages     []*protocol.Message `json:"messages"`
	CreatedAt    time.Time           `json:"createdAt"`
	LastActivity time.Time           `json:"lastActivity"`
}

// Snapshot deep-copies every room so the result can be handed to another
// goroutine.
func (g *Registry) Snapshot() []RoomSnapshot {
	rooms := g.Rooms()
	out := make([]RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomSnapshot{
			ID:           room.ID,
			Name:         room.Name,
			Password:     room.Password,
			Owner:        room.Owner,
			Messages:     room.Messages(),
			CreatedAt:    room.CreatedAt,
			LastActivity: room.LastActivity,
		})
	}
	return out
}

// Restore loads persisted rooms. All rooms come back empty of members, and
// the default room is recreated if the snapshot lacks it.
func (g *Registry) Restore(snapshots []RoomSnapshot) {
	now := g.now()
	for _, snap := range snapshots {
		if snap.ID == "" {
			continue
		}
		room := newRoom(snap.ID, snap.Name, snap.Password, snap.Owner, now)
		if room.IsDefault() {
			room.Password, room.Owner = "", ""
			if room.Name == "" {
				room.Name = DefaultRoomName
			}
		}
		if !snap.CreatedAt.IsZero() {
			room.CreatedAt = snap.CreatedAt
		}
		if !snap.LastActivity.IsZero() {
			room.LastActivity = snap.LastActivity
		}
		for _, msg := range snap.Messages {
			if msg == nil {
				continue
			}
			if msg.Reactions == nil {
				msg.Reactions = make(map[string][]string)
			}
			room.Append(msg)
		}
		g.rooms[room.ID] = room
	}
	g.EnsureDefaultRoom()
}
