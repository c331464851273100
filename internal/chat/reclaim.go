package chat

import (
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ReclaimResult describes one reclamation pass.
type ReclaimResult struct {
	Deleted        []string
	ClearedDefault bool
}

// Changed reports whether the pass modified any room.
func (res ReclaimResult) Changed() bool {
	return len(res.Deleted) > 0 || res.ClearedDefault
}

// Reclaim applies the idle-room policy at now. Rooms without any member,
// visible or hidden, that have been idle for at least the threshold are
// deleted; the default room instead loses its history and gets a fresh
// timestamp so it does not trigger again on the next pass.
func (r *Router) Reclaim(now time.Time) ReclaimResult {
	var res ReclaimResult
	var doomed []string

	for _, room := range r.registry.Rooms() {
		if now.Sub(room.LastActivity) < r.opts.IdleThreshold {
			continue
		}
		if r.registry.TotalCount(room.ID) > 0 {
			continue
		}
		if room.IsDefault() {
			if room.Len() > 0 {
				room.Clear()
				res.ClearedDefault = true
			}
			room.Touch(now)
			continue
		}
		doomed = append(doomed, room.ID)
	}

	for _, id := range doomed {
		if r.registry.DeleteRoom(id) != nil {
			res.Deleted = append(res.Deleted, id)
		}
	}

	if !res.Changed() {
		return res
	}
	r.log.Info("idle rooms reclaimed", "deleted", len(res.Deleted), "public_cleared", res.ClearedDefault)
	r.persist()
	r.broadcastRooms()
	if res.ClearedDefault {
		r.transport.SendRoom(DefaultRoomID, protocol.Event{
			Type: protocol.TypeChatCleared,
			Data: protocol.Notice{Message: "Chat cleared by auto-cleanup"},
		})
	}
	return res
}
