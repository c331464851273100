package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// fakeTransport mirrors the hub's fan-out rules and records what each
// connection would have received.
type fakeTransport struct {
	conns   map[string]bool
	groups  map[string]map[string]bool
	inbox   map[string][]protocol.Event
	panicOn string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		conns:  make(map[string]bool),
		groups: make(map[string]map[string]bool),
		inbox:  make(map[string][]protocol.Event),
	}
}

func (f *fakeTransport) deliver(connID string, ev protocol.Event) {
	if f.panicOn != "" && ev.Type == f.panicOn {
		panic("transport failure")
	}
	if !f.conns[connID] {
		return
	}
	f.inbox[connID] = append(f.inbox[connID], ev)
}

func (f *fakeTransport) Send(connID string, ev protocol.Event) {
	f.deliver(connID, ev)
}

func (f *fakeTransport) SendRoom(roomID string, ev protocol.Event) {
	f.SendRoomExcept(roomID, "", ev)
}

func (f *fakeTransport) SendRoomExcept(roomID, connID string, ev protocol.Event) {
	for id := range f.groups[roomID] {
		if id != connID {
			f.deliver(id, ev)
		}
	}
}

func (f *fakeTransport) SendAll(ev protocol.Event) {
	for id := range f.conns {
		f.deliver(id, ev)
	}
}

func (f *fakeTransport) Subscribe(connID, roomID string) {
	if f.groups[roomID] == nil {
		f.groups[roomID] = make(map[string]bool)
	}
	f.groups[roomID][connID] = true
}

func (f *fakeTransport) Unsubscribe(connID, roomID string) {
	delete(f.groups[roomID], connID)
}

type scheduledTask struct {
	delay time.Duration
	fn    func()
}

type fakeScheduler struct {
	pending []scheduledTask
}

func (s *fakeScheduler) After(d time.Duration, fn func()) {
	s.pending = append(s.pending, scheduledTask{delay: d, fn: fn})
}

func (s *fakeScheduler) runAll() {
	tasks := s.pending
	s.pending = nil
	for _, task := range tasks {
		task.fn()
	}
}

type fakePersister struct {
	saves int
	last  []RoomSnapshot
}

func (p *fakePersister) Save(rooms []RoomSnapshot) {
	p.saves++
	p.last = rooms
}

type harness struct {
	t         *testing.T
	router    *Router
	transport *fakeTransport
	scheduler *fakeScheduler
	persister *fakePersister
	clock     *fakeClock
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		transport: newFakeTransport(),
		scheduler: &fakeScheduler{},
		persister: &fakePersister{},
		clock:     &fakeClock{now: testEpoch},
	}
	opts := Options{
		StealthPassword: "letmein",
		CloseDelay:      2 * time.Second,
		OwnerLeaveDelay: time.Second,
		IdleThreshold:   5 * time.Minute,
		Now:             h.clock.Now,
		NewID:           sequentialIDs(),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.router = NewRouter(h.transport, h.persister, h.scheduler, opts, nil)
	return h
}

func (h *harness) connect(connID, nickname string) {
	h.transport.conns[connID] = true
	h.router.Connect(connID)
	if nickname != "" {
		h.send(connID, protocol.Inbound{Type: protocol.TypeSetNickname, Nickname: nickname})
	}
}

func (h *harness) disconnect(connID string) {
	h.router.Disconnect(connID)
	delete(h.transport.conns, connID)
}

func (h *harness) send(connID string, in protocol.Inbound) {
	h.router.Handle(connID, in)
}

func (h *harness) join(connID, roomID, password string) {
	h.send(connID, protocol.Inbound{Type: protocol.TypeJoinRoom, RoomID: roomID, Password: password})
}

func (h *harness) say(connID, text string) {
	h.send(connID, protocol.Inbound{Type: protocol.TypeSendMessage, Message: text})
}

func (h *harness) createRoom(connID, name, password string) string {
	h.t.Helper()
	h.send(connID, protocol.Inbound{Type: protocol.TypeCreateRoom, RoomName: name, Password: password})
	ev := h.last(connID, protocol.TypeRoomCreated)
	return ev.Data.(protocol.RoomCreated).RoomID
}

func (h *harness) reset() {
	h.transport.inbox = make(map[string][]protocol.Event)
}

func (h *harness) events(connID string) []protocol.Event {
	return h.transport.inbox[connID]
}

func (h *harness) eventsOf(connID, eventType string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range h.transport.inbox[connID] {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) last(connID, eventType string) protocol.Event {
	h.t.Helper()
	evs := h.eventsOf(connID, eventType)
	require.NotEmptyf(h.t, evs, "%s received no %s event", connID, eventType)
	return evs[len(evs)-1]
}

func (h *harness) messages(connID string) []*protocol.Message {
	var out []*protocol.Message
	for _, ev := range h.eventsOf(connID, protocol.TypeMessage) {
		out = append(out, ev.Data.(*protocol.Message))
	}
	return out
}

func (h *harness) room(id string) *Room {
	room, _ := h.router.Registry().Room(id)
	return room
}
