package chat

import (
	"crypto/subtle"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	// DefaultRoomID identifies the permanent public room.
	DefaultRoomID = "public"
	// DefaultRoomName is the display name of the public room.
	DefaultRoomName = "Public Chat"
)

// Room is one chat room with its history and transient membership.
type Room struct {
	ID           string
	Name         string
	Password     string
	Owner        string
	CreatedAt    time.Time
	LastActivity time.Time

	messages []*protocol.Message
	visible  map[string]struct{}
	hidden   map[string]struct{}
	typing   map[string]struct{}
}

func newRoom(id, name, password, owner string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		Password:     password,
		Owner:        owner,
		CreatedAt:    now,
		LastActivity: now,
		visible:      make(map[string]struct{}),
		hidden:       make(map[string]struct{}),
		typing:       make(map[string]struct{}),
	}
}

// IsDefault reports whether r is the permanent public room.
func (r *Room) IsDefault() bool {
	return r.ID == DefaultRoomID
}

// HasPassword reports whether joining requires a password.
func (r *Room) HasPassword() bool {
	return r.Password != ""
}

// CheckPassword reports whether password opens the room. Rooms without a
// password accept anything.
func (r *Room) CheckPassword(password string) bool {
	if !r.HasPassword() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.Password), []byte(password)) == 1
}

// Touch refreshes the room's last activity timestamp.
func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

// Members returns every connection in the room, visible and hidden.
func (r *Room) Members() []string {
	out := make([]string, 0, len(r.visible)+len(r.hidden))
	for id := range r.visible {
		out = append(out, id)
	}
	for id := range r.hidden {
		out = append(out, id)
	}
	return out
}

func (r *Room) startTyping(connID string) bool {
	if _, ok := r.typing[connID]; ok {
		return false
	}
	r.typing[connID] = struct{}{}
	return true
}

func (r *Room) stopTyping(connID string) bool {
	if _, ok := r.typing[connID]; !ok {
		return false
	}
	delete(r.typing, connID)
	return true
}

// IsTyping reports whether connID is currently marked as typing.
func (r *Room) IsTyping(connID string) bool {
	_, ok := r.typing[connID]
	return ok
}
