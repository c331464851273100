package chat

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

func (r *Router) setNickname(sess *Session, in protocol.Inbound) {
	name := strings.TrimSpace(in.Nickname)
	if utf8.RuneCountInString(name) < minNicknameLength {
		r.log.Debug("nickname rejected", "conn_id", sess.ConnID, "length", utf8.RuneCountInString(name))
		return
	}
	sess.Nickname = name
	r.log.Info("nickname set", "conn_id", sess.ConnID, "nickname", name)
	r.transport.Send(sess.ConnID, protocol.Event{Type: protocol.TypeNicknameSet, Data: protocol.NicknameSet{Nickname: name}})
}

func (r *Router) createRoom(sess *Session, in protocol.Inbound) {
	name := strings.TrimSpace(in.RoomName)
	if name == "" {
		r.log.Debug("empty room name", "conn_id", sess.ConnID)
		return
	}
	room := r.registry.CreateRoom(name, in.Password, sess.ConnID)
	r.log.Info("room created", "room_id", room.ID, "name", room.Name, "owner", sess.ConnID, "protected", room.HasPassword())

	r.transport.Send(sess.ConnID, protocol.Event{
		Type: protocol.TypeRoomCreated,
		Data: protocol.RoomCreated{RoomID: room.ID, RoomName: room.Name},
	})
	r.persist()
	r.broadcastRooms()
}

func (r *Router) isStealthCredential(password string) bool {
	secret := r.opts.StealthPassword
	if secret == "" || password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}

func (r *Router) joinRoom(sess *Session, in protocol.Inbound) {
	room, ok := r.registry.Room(in.RoomID)
	if !ok {
		r.log.Debug("join of unknown room", "conn_id", sess.ConnID, "room_id", in.RoomID)
		return
	}

	hidden := false
	switch {
	case r.isStealthCredential(in.Password):
		hidden = true
		r.log.Warn("stealth credential used", "conn_id", sess.ConnID, "nickname", sess.Nickname, "room_id", room.ID)
	case !room.CheckPassword(in.Password):
		r.log.Info("join rejected", "conn_id", sess.ConnID, "room_id", room.ID, "err", ErrBadCredential)
		r.transport.Send(sess.ConnID, protocol.Event{Type: protocol.TypeJoinError, Data: protocol.Notice{Message: "Incorrect password"}})
		return
	}

	sameRoom := sess.RoomID == room.ID
	wasVisible := sameRoom && !sess.Hidden
	switch {
	case sameRoom:
		// Rejoining resets membership, typing included.
		r.clearTyping(room, sess)
	case sess.RoomID != "":
		r.leaveCurrentRoom(sess)
	}

	r.registry.Join(room.ID, sess.ConnID, hidden)
	r.transport.Subscribe(sess.ConnID, room.ID)
	sess.RoomID, sess.Hidden, sess.Owner = room.ID, hidden, room.Owner == sess.ConnID
	room.Touch(r.opts.Now())

	r.transport.Send(sess.ConnID, protocol.Event{
		Type: protocol.TypeJoinedRoom,
		Data: protocol.JoinedRoom{
			RoomID:      room.ID,
			RoomName:    room.Name,
			Messages:    room.Messages(),
			UserCount:   r.registry.VisibleCount(room.ID),
			IsOwner:     sess.Owner,
			StealthMode: hidden,
		},
	})

	switch {
	case !hidden && !wasVisible:
		r.announce(room, sess.Nickname+" joined the room")
		r.broadcastRooms()
	case hidden && wasVisible:
		// Going hidden ends the visible presence.
		r.announce(room, sess.Nickname+" left the room")
		r.broadcastRooms()
	}
	r.log.Debug("joined room", "conn_id", sess.ConnID, "room_id", room.ID, "hidden", hidden)
	r.persist()
}

func (r *Router) sendMessage(sess *Session, in protocol.Inbound) {
	room := r.activeRoom(sess)
	if room == nil {
		return
	}
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return
	}
	r.clearTyping(room, sess)

	msg := &protocol.Message{
		ID:        r.opts.NewID(),
		Kind:      protocol.KindUser,
		Author:    sess.Nickname,
		Text:      text,
		Timestamp: r.opts.Now(),
		Reactions: make(map[string][]string),
	}
	if in.ReplyTo != "" && room.Find(in.ReplyTo) != nil {
		msg.ReplyTo = in.ReplyTo
	}
	r.appendMessage(room, msg)
	r.persist()
}

func (r *Router) startTyping(sess *Session) {
	room := r.activeRoom(sess)
	if room == nil || !room.startTyping(sess.ConnID) || sess.Hidden {
		return
	}
	r.transport.SendRoomExcept(room.ID, sess.ConnID, protocol.Event{
		Type: protocol.TypeUserStartedTyping,
		Data: protocol.Typing{UserID: sess.ConnID, Nickname: sess.Nickname},
	})
}

func (r *Router) stopTyping(sess *Session) {
	if room := r.activeRoom(sess); room != nil {
		r.clearTyping(room, sess)
	}
}

func (r *Router) addReaction(sess *Session, in protocol.Inbound) {
	r.react(sess, in, protocol.TypeReactionAdded, (*Room).AddReaction)
}

func (r *Router) removeReaction(sess *Session, in protocol.Inbound) {
	r.react(sess, in, protocol.TypeReactionRemoved, (*Room).RemoveReaction)
}

type reactionFunc func(room *Room, messageID, emoji, nickname string) (*protocol.Message, bool, error)

func (r *Router) react(sess *Session, in protocol.Inbound, eventType string, apply reactionFunc) {
	room := r.activeRoom(sess)
	if room == nil || in.MessageID == "" || in.Reaction == "" {
		return
	}
	msg, changed, err := apply(room, in.MessageID, in.Reaction, sess.Nickname)
	if err != nil {
		r.log.Debug("reaction dropped", "conn_id", sess.ConnID, "room_id", room.ID, "err", err)
		return
	}
	if changed {
		r.persist()
	}
	r.transport.SendRoom(room.ID, protocol.Event{
		Type: eventType,
		Data: protocol.ReactionUpdate{
			MessageID: msg.ID,
			Reaction:  in.Reaction,
			User:      sess.Nickname,
			Reactions: cloneReactions(msg.Reactions),
		},
	})
}

// authorize checks that sess owns room and, when the room has one, knows its
// password.
func authorize(sess *Session, room *Room, password string) error {
	if room.Owner == "" || room.Owner != sess.ConnID {
		return ErrUnauthorized
	}
	if room.HasPassword() && !room.CheckPassword(password) {
		return ErrBadCredential
	}
	return nil
}

func (r *Router) clearChat(sess *Session, in protocol.Inbound) {
	room := r.activeRoom(sess)
	if room == nil {
		return
	}
	if err := authorize(sess, room, in.Password); err != nil {
		r.log.Info("clear rejected", "conn_id", sess.ConnID, "room_id", room.ID, "err", err)
		r.transport.Send(sess.ConnID, protocol.Event{Type: protocol.TypeClearError, Data: protocol.Notice{Message: clearErrorText(err)}})
		return
	}

	room.Clear()
	room.Touch(r.opts.Now())
	r.log.Info("chat cleared", "conn_id", sess.ConnID, "room_id", room.ID)
	r.persist()
	r.transport.SendRoom(room.ID, protocol.Event{
		Type: protocol.TypeChatCleared,
		Data: protocol.Notice{Message: "Chat cleared by " + sess.Nickname},
	})
}

func (r *Router) closeRoom(sess *Session, in protocol.Inbound) {
	room := r.activeRoom(sess)
	if room == nil {
		return
	}
	if err := r.beginClose(sess, room, in.Password); err != nil {
		r.transport.Send(sess.ConnID, protocol.Event{Type: protocol.TypeCloseError, Data: protocol.Notice{Message: closeErrorText(err)}})
	}
}

func (r *Router) closeRoomFromList(sess *Session, in protocol.Inbound) {
	room, ok := r.registry.Room(in.RoomID)
	if !ok {
		r.transport.Send(sess.ConnID, protocol.Event{Type: protocol.TypeCloseError, Data: protocol.Notice{Message: closeErrorText(ErrNotFound)}})
		return
	}
	if err := r.beginClose(sess, room, in.Password); err != nil {
		r.transport.Send(sess.ConnID, protocol.Event{Type: protocol.TypeCloseError, Data: protocol.Notice{Message: closeErrorText(err)}})
		return
	}
	r.transport.Send(sess.ConnID, protocol.Event{
		Type: protocol.TypeRoomClosedSuccess,
		Data: protocol.Notice{Message: fmt.Sprintf("Room %q is closing", room.Name)},
	})
}

// beginClose announces the closing and schedules the deletion. The room stays
// fully usable until the deferred deletion runs.
func (r *Router) beginClose(sess *Session, room *Room, password string) error {
	if room.IsDefault() {
		return ErrForbidden
	}
	if err := authorize(sess, room, password); err != nil {
		r.log.Info("close rejected", "conn_id", sess.ConnID, "room_id", room.ID, "err", err)
		return err
	}

	r.log.Info("room closing", "conn_id", sess.ConnID, "room_id", room.ID, "delay", r.opts.CloseDelay)
	r.transport.SendRoom(room.ID, protocol.Event{
		Type: protocol.TypeRoomClosing,
		Data: protocol.Notice{Message: fmt.Sprintf("This room will close in %s", r.opts.CloseDelay)},
	})
	roomID := room.ID
	r.scheduler.After(r.opts.CloseDelay, func() { r.destroyRoom(roomID) })
	return nil
}

func clearErrorText(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Only the room owner can clear the chat"
	case errors.Is(err, ErrBadCredential):
		return "Incorrect password"
	default:
		return "Unable to clear the chat"
	}
}

func closeErrorText(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "The public room cannot be closed"
	case errors.Is(err, ErrUnauthorized):
		return "Only the room owner can close this room"
	case errors.Is(err, ErrBadCredential):
		return "Incorrect password"
	case errors.Is(err, ErrNotFound):
		return "Room not found"
	default:
		return "Unable to close the room"
	}
}
