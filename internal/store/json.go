package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// FileStore keeps all rooms in one JSON document on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store writing to path. The file is created on the
// first save.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	return &FileStore{path: path}, nil
}

// Load reads the rooms file. A missing file yields no rooms.
func (s *FileStore) Load(_ context.Context) ([]chat.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no rooms file yet", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("read rooms file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var rooms []chat.RoomSnapshot
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms file: %w", err)
	}
	slog.Info("rooms loaded", "path", s.path, "rooms", len(rooms))
	return rooms, nil
}

// Save replaces the rooms file atomically.
func (s *FileStore) Save(_ context.Context, rooms []chat.RoomSnapshot) error {
	data, err := json.MarshalIndent(rooms, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rooms: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rooms-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace rooms file: %w", err)
	}
	slog.Debug("rooms saved", "path", s.path, "rooms", len(rooms), "bytes", len(data))
	return nil
}

// Close is a no-op; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}
