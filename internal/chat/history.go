package chat

import (
	"fmt"
	"slices"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// HistoryLimit is the number of messages a room keeps.
const HistoryLimit = 100

// Append adds msg to the history, evicting the oldest entries past HistoryLimit.
func (r *Room) Append(msg *protocol.Message) {
	r.messages = append(r.messages, msg)
	if over := len(r.messages) - HistoryLimit; over > 0 {
		n := copy(r.messages, r.messages[over:])
		clear(r.messages[n:])
		r.messages = r.messages[:n]
	}
}

// Clear empties the history.
func (r *Room) Clear() {
	clear(r.messages)
	r.messages = r.messages[:0]
}

// Len returns the number of messages in the history.
func (r *Room) Len() int {
	return len(r.messages)
}

// Messages returns a copy of the history, oldest first.
func (r *Room) Messages() []*protocol.Message {
	out := make([]*protocol.Message, len(r.messages))
	for i, m := range r.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Find returns the message with the given id, or nil.
func (r *Room) Find(messageID string) *protocol.Message {
	for _, m := range r.messages {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// AddReaction records nickname under emoji on the message. Adding an existing
// reaction is a no-op; changed reports whether the map was modified.
func (r *Room) AddReaction(messageID, emoji, nickname string) (msg *protocol.Message, changed bool, err error) {
	msg = r.Find(messageID)
	if msg == nil {
		return nil, false, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string][]string)
	}
	if slices.Contains(msg.Reactions[emoji], nickname) {
		return msg, false, nil
	}
	msg.Reactions[emoji] = append(msg.Reactions[emoji], nickname)
	return msg, true, nil
}

// RemoveReaction drops nickname from emoji on the message. The emoji key is
// removed once its last reactor is gone.
func (r *Room) RemoveReaction(messageID, emoji, nickname string) (msg *protocol.Message, changed bool, err error) {
	msg = r.Find(messageID)
	if msg == nil {
		return nil, false, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	reactors := msg.Reactions[emoji]
	i := slices.Index(reactors, nickname)
	if i < 0 {
		return msg, false, nil
	}
	reactors = slices.Delete(reactors, i, i+1)
	if len(reactors) == 0 {
		delete(msg.Reactions, emoji)
	} else {
		msg.Reactions[emoji] = reactors
	}
	return msg, true, nil
}

func cloneMessage(m *protocol.Message) *protocol.Message {
	c := *m
	c.Reactions = cloneReactions(m.Reactions)
	return &c
}

func cloneReactions(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for emoji, nicks := range in {
		out[emoji] = slices.Clone(nicks)
	}
	return out
}
