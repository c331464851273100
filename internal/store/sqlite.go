package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"

	_ "modernc.org/sqlite"
)

// SQLite keeps one row per room, with the history stored as a JSON column.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	st := &SQLite{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	password TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	messages TEXT NOT NULL DEFAULT '[]',
	created_at_unix_ms INTEGER NOT NULL,
	last_activity_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_created_at ON rooms(created_at_unix_ms);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	slog.Debug("sqlite migrations applied")
	return nil
}

// Load returns every stored room, oldest first.
func (s *SQLite) Load(ctx context.Context) ([]chat.RoomSnapshot, error) {
	const q = `
SELECT id, name, password, owner, messages, created_at_unix_ms, last_activity_unix_ms
FROM rooms
ORDER BY created_at_unix_ms, id
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []chat.RoomSnapshot
	for rows.Next() {
		var (
			snap             chat.RoomSnapshot
			messages         string
			createdMs, actMs int64
		)
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.Password, &snap.Owner, &messages, &createdMs, &actMs); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &snap.Messages); err != nil {
			return nil, fmt.Errorf("decode messages of room %s: %w", snap.ID, err)
		}
		snap.CreatedAt = time.UnixMilli(createdMs).UTC()
		snap.LastActivity = time.UnixMilli(actMs).UTC()
		rooms = append(rooms, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	slog.Info("rooms loaded", "backend", DriverSQLite, "rooms", len(rooms))
	return rooms, nil
}

// Save replaces the stored rooms with rooms in one transaction.
func (s *SQLite) Save(ctx context.Context, rooms []chat.RoomSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms`); err != nil {
		return fmt.Errorf("clear rooms: %w", err)
	}

	const q = `
INSERT INTO rooms (
	id, name, password, owner, messages, created_at_unix_ms, last_activity_unix_ms
) VALUES (?, ?, ?, ?, ?, ?, ?)
`
	for _, room := range rooms {
		msgs := room.Messages
		if msgs == nil {
			msgs = []*protocol.Message{}
		}
		encoded, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("encode messages of room %s: %w", room.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q,
			room.ID,
			room.Name,
			room.Password,
			room.Owner,
			string(encoded),
			room.CreatedAt.UnixMilli(),
			room.LastActivity.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert room %s: %w", room.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rooms: %w", err)
	}
	slog.Debug("rooms saved", "backend", DriverSQLite, "rooms", len(rooms))
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
