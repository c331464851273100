package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const saveTimeout = 10 * time.Second

// Writer saves snapshots on its own goroutine. Only the newest pending
// snapshot is kept, so a slow disk never backs up the caller.
type Writer struct {
	backend Backend
	pending chan []chat.RoomSnapshot
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	log     *slog.Logger
}

// NewWriter starts a writer in front of backend.
func NewWriter(backend Backend, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		backend: backend,
		pending: make(chan []chat.RoomSnapshot, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     logger,
	}
	go w.run()
	return w
}

// Save queues rooms for writing, replacing any snapshot not yet written. It
// never blocks. Saves after Close are dropped.
func (w *Writer) Save(rooms []chat.RoomSnapshot) {
	select {
	case <-w.quit:
		w.log.Warn("save after writer close dropped", "rooms", len(rooms))
		return
	default:
	}
	for {
		select {
		case w.pending <- rooms:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case rooms := <-w.pending:
			w.write(rooms)
		case <-w.quit:
			select {
			case rooms := <-w.pending:
				w.write(rooms)
			default:
			}
			return
		}
	}
}

func (w *Writer) write(rooms []chat.RoomSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := w.backend.Save(ctx, rooms); err != nil {
		// The in-memory state stays authoritative; the next save retries.
		w.log.Error("persist rooms", "rooms", len(rooms), "err", err)
	}
}

// Close writes any pending snapshot, then closes the backend. It returns
// ctx.Err() if the flush does not finish in time.
func (w *Writer) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.quit) })
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.backend.Close()
}
