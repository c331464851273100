// Package protocol defines the JSON envelopes exchanged with chat clients over
// the WebSocket connection.
package protocol

import (
	"encoding/json"
	"time"
)

// Inbound event types sent by clients.
const (
	TypeSetNickname       = "setNickname"
	TypeCreateRoom        = "createRoom"
	TypeJoinRoom          = "joinRoom"
	TypeSendMessage       = "sendMessage"
	TypeStartTyping       = "startTyping"
	TypeStopTyping        = "stopTyping"
	TypeAddReaction       = "addReaction"
	TypeRemoveReaction    = "removeReaction"
	TypeClearChat         = "clearChat"
	TypeCloseRoom         = "closeRoom"
	TypeCloseRoomFromList = "closeRoomFromList"
)

// Outbound event types sent by the server.
const (
	TypeRoomsList         = "roomsList"
	TypeNicknameSet       = "nicknameSet"
	TypeRoomCreated       = "roomCreated"
	TypeJoinedRoom        = "joinedRoom"
	TypeJoinError         = "joinError"
	TypeMessage           = "message"
	TypeUserCountUpdate   = "userCountUpdate"
	TypeUserStartedTyping = "userStartedTyping"
	TypeUserStoppedTyping = "userStoppedTyping"
	TypeReactionAdded     = "reactionAdded"
	TypeReactionRemoved   = "reactionRemoved"
	TypeChatCleared       = "chatCleared"
	TypeClearError        = "clearError"
	TypeRoomClosing       = "roomClosing"
	TypeRoomClosed        = "roomClosed"
	TypeRoomClosedSuccess = "roomClosedSuccess"
	TypeCloseError        = "closeError"
)

// Message kinds.
const (
	KindUser   = "user"
	KindSystem = "system"
)

// Inbound is the flat envelope every client event is decoded into. Only the
// fields relevant to Type are populated.
type Inbound struct {
	Type      string `json:"type"`
	Nickname  string `json:"nickname,omitempty"`
	RoomName  string `json:"roomName,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Password  string `json:"password,omitempty"`
	Message   string `json:"message,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Reaction  string `json:"reaction,omitempty"`
}

// Event is one outbound event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode marshals the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Message is a chat message as stored in room history and sent to clients.
type Message struct {
	ID        string              `json:"id"`
	Kind      string              `json:"type"`
	Author    string              `json:"nickname,omitempty"`
	Text      string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	ReplyTo   string              `json:"replyTo,omitempty"`
	Reactions map[string][]string `json:"reactions"`
}

// RoomSummary is one entry of the rooms list.
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	UserCount   int    `json:"userCount"`
	HasPassword bool   `json:"hasPassword"`
	CanClose    bool   `json:"canClose"`
}

// NicknameSet acknowledges a nickname change.
type NicknameSet struct {
	Nickname string `json:"nickname"`
}

// RoomCreated acknowledges a room creation to its owner.
type RoomCreated struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

// JoinedRoom is the private acknowledgement of a successful join.
type JoinedRoom struct {
	RoomID      string     `json:"roomId"`
	RoomName    string     `json:"roomName"`
	Messages    []*Message `json:"messages"`
	UserCount   int        `json:"userCount"`
	IsOwner     bool       `json:"isOwner"`
	StealthMode bool       `json:"stealthMode"`
}

// Notice carries a human readable message for error and status events.
type Notice struct {
	Message string `json:"message"`
}

// UserCount reports the visible occupancy of a room.
type UserCount struct {
	Count int `json:"count"`
}

// Typing identifies the connection whose typing state changed.
type Typing struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// ReactionUpdate carries the full reaction map of one message after a change.
type ReactionUpdate struct {
	MessageID string              `json:"messageId"`
	Reaction  string              `json:"reaction"`
	User      string              `json:"user"`
	Reactions map[string][]string `json:"reactions"`
}
