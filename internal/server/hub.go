// Package server coordinates client registration, event routing, and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ErrHubStopped is returned by Call once the hub loop has exited.
var ErrHubStopped = errors.New("hub stopped")

type inboundEvent struct {
	client *Client
	event  protocol.Inbound
}

// Hub owns every connection and the chat router. All router state is touched
// only from the Run goroutine; everything else reaches it through channels.
type Hub struct {
	clients map[string]*Client
	groups  map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	tasks      chan func()

	router    *chat.Router
	persister chat.Persister
	cfg       Config
	log       *slog.Logger

	clientCount atomic.Int64
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewHub creates a hub whose router starts from restored. persister may be
// nil, in which case room state lives only in memory.
func NewHub(cfg Config, persister chat.Persister, restored []chat.RoomSnapshot) *Hub {
	cfg = cfg.Sanitized()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent, 256),
		tasks:      make(chan func(), 64),
		persister:  persister,
		cfg:        cfg,
		log:        slog.Default().With("component", "hub"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.router = chat.NewRouter(h, persister, h, chat.Options{
		StealthPassword: cfg.Rooms.StealthPassword,
		CloseDelay:      cfg.Rooms.CloseDelay,
		OwnerLeaveDelay: cfg.Rooms.OwnerLeaveDelay,
		IdleThreshold:   cfg.Rooms.IdleThreshold,
		Logger:          slog.Default().With("component", "router"),
	}, restored)
	return h
}

// ClientCount reports the number of registered connections. Safe from any
// goroutine.
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// Register hands a freshly upgraded client to the hub, which starts its
// pumps. It returns false if the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Post queues fn to run on the hub goroutine. It returns false if the hub is
// shutting down.
func (h *Hub) Post(fn func(router *chat.Router)) bool {
	select {
	case h.tasks <- func() { fn(h.router) }:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Call runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) Call(ctx context.Context, fn func(router *chat.Router)) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn(h.router)
	}

	select {
	case h.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// Rooms returns the public room list as seen by the hub.
func (h *Hub) Rooms(ctx context.Context) ([]protocol.RoomSummary, error) {
	var rooms []protocol.RoomSummary
	err := h.Call(ctx, func(router *chat.Router) {
		rooms = router.Summaries()
	})
	return rooms, err
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			if h.persister != nil {
				h.persister.Save(h.router.Snapshot())
			}
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.id]; !ok {
				continue
			}
			h.router.Handle(in.client.id, in.event)

		case task := <-h.tasks:
			task()
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.log.Warn("received nil client registration; skipping")
		return
	}

	h.clients[client.id] = client
	h.clientCount.Store(int64(len(h.clients)))
	h.log.Info("client registered", "conn", client.id, "addr", client.addr, "clients", len(h.clients))

	if client.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			client.writePump()
		}()
		go func() {
			defer h.wg.Done()
			client.readPump()
		}()
	}

	h.router.Connect(client.id)
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}

	// The router may still address the leaving connection's former room.
	h.router.Disconnect(client.id)

	for roomID, members := range h.groups {
		delete(members, client.id)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}
	delete(h.clients, client.id)
	h.clientCount.Store(int64(len(h.clients)))
	client.closed = true
	close(client.send)
	h.log.Info("client unregistered", "conn", client.id, "addr", client.addr, "clients", len(h.clients))
}

// deliver queues payload for client. A client whose buffer is full is cut
// off; its read pump then unregisters it.
func (h *Hub) deliver(client *Client, payload []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.log.Warn("send buffer full; dropping client", "conn", client.id, "addr", client.addr)
		client.closed = true
		if client.conn != nil {
			_ = client.conn.Close()
		}
	}
}

func (h *Hub) encode(ev protocol.Event) ([]byte, bool) {
	payload, err := ev.Encode()
	if err != nil {
		h.log.Error("encode event", "type", ev.Type, "err", err)
		return nil, false
	}
	return payload, true
}

// Send implements chat.Transport.
func (h *Hub) Send(connID string, ev protocol.Event) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if payload, ok := h.encode(ev); ok {
		h.deliver(client, payload)
	}
}

// SendRoom implements chat.Transport.
func (h *Hub) SendRoom(roomID string, ev protocol.Event) {
	h.SendRoomExcept(roomID, "", ev)
}

// SendRoomExcept implements chat.Transport.
func (h *Hub) SendRoomExcept(roomID, connID string, ev protocol.Event) {
	members := h.groups[roomID]
	if len(members) == 0 {
		return
	}
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	for id, client := range members {
		if id == connID {
			continue
		}
		h.deliver(client, payload)
	}
}

// SendAll implements chat.Transport.
func (h *Hub) SendAll(ev protocol.Event) {
	if len(h.clients) == 0 {
		return
	}
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	for _, client := range h.clients {
		h.deliver(client, payload)
	}
}

// Subscribe implements chat.Transport.
func (h *Hub) Subscribe(connID, roomID string) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.groups[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.groups[roomID] = members
	}
	members[connID] = client
}

// Unsubscribe implements chat.Transport.
func (h *Hub) Unsubscribe(connID, roomID string) {
	members, ok := h.groups[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, roomID)
	}
}

// After implements chat.Scheduler. fn runs on the hub goroutine; timers that
// fire after shutdown are dropped.
func (h *Hub) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case h.tasks <- fn:
		case <-h.ctx.Done():
		}
	})
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	for _, client := range h.clients {
		client.closed = true
		close(client.send)
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("error closing client connection", "addr", client.addr, "err", err)
		}
	}

	h.log.Info("closed client connections", "clients", len(h.clients))
}

// Shutdown stops the hub loop, hands a final snapshot to the persister, and
// waits for the client goroutines to exit or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
