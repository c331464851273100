package chat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/google/uuid"
)

const minNicknameLength = 2

// Transport delivers events to connections and tracks which connections
// listen to which room.
type Transport interface {
	Send(connID string, ev protocol.Event)
	SendRoom(roomID string, ev protocol.Event)
	SendRoomExcept(roomID, connID string, ev protocol.Event)
	SendAll(ev protocol.Event)
	Subscribe(connID, roomID string)
	Unsubscribe(connID, roomID string)
}

// Persister receives a snapshot after every mutation. Save must not block on
// I/O.
type Persister interface {
	Save(rooms []RoomSnapshot)
}

// Scheduler runs fn after d on the same goroutine that drives the Router.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Options tunes router policy.
type Options struct {
	// StealthPassword grants hidden membership to any room. Empty disables it.
	StealthPassword string
	// CloseDelay separates the closing notice from the room's deletion.
	CloseDelay time.Duration
	// OwnerLeaveDelay postpones deleting a disconnected owner's room after
	// its leave message was broadcast.
	OwnerLeaveDelay time.Duration
	// IdleThreshold is how long an empty room may sit before reclamation.
	IdleThreshold time.Duration

	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.CloseDelay <= 0 {
		o.CloseDelay = 2 * time.Second
	}
	if o.OwnerLeaveDelay <= 0 {
		o.OwnerLeaveDelay = time.Second
	}
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = 5 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Session is the per-connection state.
type Session struct {
	ConnID   string
	Nickname string
	RoomID   string
	Hidden   bool
	Owner    bool
}

// Router applies client events to the registry and fans results out through
// the Transport.
type Router struct {
	registry  *Registry
	sessions  map[string]*Session
	transport Transport
	persister Persister
	scheduler Scheduler
	opts      Options
	log       *slog.Logger
}

// NewRouter builds a router over the restored rooms. persister may be nil.
func NewRouter(transport Transport, persister Persister, scheduler Scheduler, opts Options, restored []RoomSnapshot) *Router {
	opts = opts.withDefaults()
	reg := NewRegistry(opts.Now, opts.NewID)
	reg.Restore(restored)
	return &Router{
		registry:  reg,
		sessions:  make(map[string]*Session),
		transport: transport,
		persister: persister,
		scheduler: scheduler,
		opts:      opts,
		log:       opts.Logger,
	}
}

// Registry exposes the room registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Session returns the session of connID.
func (r *Router) Session(connID string) (*Session, bool) {
	s, ok := r.sessions[connID]
	return s, ok
}

// Summaries lists the rooms as clients see them.
func (r *Router) Summaries() []protocol.RoomSummary {
	return r.registry.Summaries()
}

// Snapshot returns the durable state of every room.
func (r *Router) Snapshot() []RoomSnapshot {
	return r.registry.Snapshot()
}

// Connect opens a session for connID and sends it the room list.
func (r *Router) Connect(connID string) {
	r.sessions[connID] = &Session{ConnID: connID}
	r.transport.Send(connID, protocol.Event{Type: protocol.TypeRoomsList, Data: r.registry.Summaries()})
}

// Handle dispatches one inbound event. A failing handler is logged and the
// event dropped; it never takes the caller down.
func (r *Router) Handle(connID string, in protocol.Inbound) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("event handler panicked", "conn_id", connID, "type", in.Type, "panic", fmt.Sprint(rec))
		}
	}()

	sess, ok := r.sessions[connID]
	if !ok {
		r.log.Debug("event from unknown connection", "conn_id", connID, "type", in.Type)
		return
	}
	if in.Type == protocol.TypeSetNickname {
		r.setNickname(sess, in)
		return
	}
	if sess.Nickname == "" {
		r.log.Debug("event before nickname dropped", "conn_id", connID, "type", in.Type)
		return
	}

	switch in.Type {
	case protocol.TypeCreateRoom:
		r.createRoom(sess, in)
	case protocol.TypeJoinRoom:
		r.joinRoom(sess, in)
	case protocol.TypeSendMessage:
		r.sendMessage(sess, in)
	case protocol.TypeStartTyping:
		r.startTyping(sess)
	case protocol.TypeStopTyping:
		r.stopTyping(sess)
	case protocol.TypeAddReaction:
		r.addReaction(sess, in)
	case protocol.TypeRemoveReaction:
		r.removeReaction(sess, in)
	case protocol.TypeClearChat:
		r.clearChat(sess, in)
	case protocol.TypeCloseRoom:
		r.closeRoom(sess, in)
	case protocol.TypeCloseRoomFromList:
		r.closeRoomFromList(sess, in)
	default:
		r.log.Debug("unsupported event type", "conn_id", connID, "type", in.Type)
	}
}

// Disconnect tears down the session of connID. An owner leaving takes its
// room with it.
func (r *Router) Disconnect(connID string) {
	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	delete(r.sessions, connID)

	if sess.RoomID == "" {
		return
	}
	room, announced := r.leaveCurrentRoom(sess)
	if room == nil {
		return
	}
	r.persist()

	if room.IsDefault() || room.Owner != connID {
		return
	}
	roomID := room.ID
	if announced {
		r.scheduler.After(r.opts.OwnerLeaveDelay, func() { r.destroyRoom(roomID) })
		return
	}
	r.destroyRoom(roomID)
}

func (r *Router) activeRoom(sess *Session) *Room {
	if sess.RoomID == "" {
		return nil
	}
	room, ok := r.registry.Room(sess.RoomID)
	if !ok {
		return nil
	}
	return room
}

// leaveCurrentRoom takes sess out of its room. announced reports whether a
// leave message went out, which only happens for visible members.
func (r *Router) leaveCurrentRoom(sess *Session) (room *Room, announced bool) {
	defer func() {
		sess.RoomID, sess.Hidden, sess.Owner = "", false, false
	}()

	room = r.activeRoom(sess)
	if room == nil {
		return nil, false
	}
	r.clearTyping(room, sess)
	r.registry.Leave(room.ID, sess.ConnID)
	r.transport.Unsubscribe(sess.ConnID, room.ID)
	room.Touch(r.opts.Now())

	if sess.Hidden {
		r.log.Debug("hidden member left", "conn_id", sess.ConnID, "room_id", room.ID)
		return room, false
	}
	r.announce(room, sess.Nickname+" left the room")
	r.broadcastRooms()
	return room, true
}

// announce appends a system message and follows it with a fresh visible count.
func (r *Router) announce(room *Room, text string) {
	r.appendMessage(room, &protocol.Message{
		ID:        r.opts.NewID(),
		Kind:      protocol.KindSystem,
		Text:      text,
		Timestamp: r.opts.Now(),
		Reactions: make(map[string][]string),
	})
	r.transport.SendRoom(room.ID, protocol.Event{
		Type: protocol.TypeUserCountUpdate,
		Data: protocol.UserCount{Count: r.registry.VisibleCount(room.ID)},
	})
}

func (r *Router) appendMessage(room *Room, msg *protocol.Message) {
	room.Append(msg)
	room.Touch(r.opts.Now())
	r.transport.SendRoom(room.ID, protocol.Event{Type: protocol.TypeMessage, Data: cloneMessage(msg)})
}

// clearTyping drops the typing mark of sess. Hidden members are tracked but
// never announced.
func (r *Router) clearTyping(room *Room, sess *Session) {
	if !room.stopTyping(sess.ConnID) || sess.Hidden {
		return
	}
	r.transport.SendRoomExcept(room.ID, sess.ConnID, protocol.Event{
		Type: protocol.TypeUserStoppedTyping,
		Data: protocol.Typing{UserID: sess.ConnID, Nickname: sess.Nickname},
	})
}

// destroyRoom deletes a room that may already be gone. Former members are
// told the room closed and lose their room.
func (r *Router) destroyRoom(roomID string) bool {
	room := r.registry.DeleteRoom(roomID)
	if room == nil {
		r.log.Debug("room already gone", "room_id", roomID)
		return false
	}
	r.log.Info("room deleted", "room_id", room.ID, "name", room.Name)
	r.persist()
	r.broadcastRooms()

	closed := protocol.Event{Type: protocol.TypeRoomClosed, Data: protocol.Notice{Message: "This room has been closed"}}
	for _, connID := range room.Members() {
		r.transport.Send(connID, closed)
		r.transport.Unsubscribe(connID, room.ID)
		if sess, ok := r.sessions[connID]; ok && sess.RoomID == room.ID {
			sess.RoomID, sess.Hidden, sess.Owner = "", false, false
		}
	}
	return true
}

func (r *Router) broadcastRooms() {
	r.transport.SendAll(protocol.Event{Type: protocol.TypeRoomsList, Data: r.registry.Summaries()})
}

func (r *Router) persist() {
	if r.persister == nil {
		return
	}
	r.persister.Save(r.registry.Snapshot())
}
