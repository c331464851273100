// Package store persists room snapshots. Backends are plain load/save blob
// stores; Writer decouples them from the event loop.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Backend loads and saves the full set of rooms.
type Backend interface {
	Load(ctx context.Context) ([]chat.RoomSnapshot, error)
	Save(ctx context.Context, rooms []chat.RoomSnapshot) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Open returns the backend for driver rooted at path.
func Open(driver, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverJSON:
		return NewFileStore(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
