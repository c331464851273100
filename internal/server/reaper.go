package server

import (
	"context"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Reaper periodically asks the hub's router to reclaim idle rooms.
type Reaper struct {
	hub      *Hub
	interval time.Duration
	now      func() time.Time
}

// NewReaper returns a reaper ticking every interval.
func NewReaper(hub *Hub, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{hub: hub, interval: interval, now: time.Now}
}

// Run ticks until ctx is done or the hub stops.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.Tick() {
				return
			}
		}
	}
}

// Tick queues one reclamation pass on the hub. It returns false once the hub
// has stopped.
func (r *Reaper) Tick() bool {
	return r.hub.Post(func(router *chat.Router) {
		router.Reclaim(r.now())
	})
}
