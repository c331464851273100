package chat

// Join places connID in roomID, visible or hidden. The connection is first
// removed from whatever room it occupied, so it is never in two places.
func (g *Registry) Join(roomID, connID string, hidden bool) bool {
	room, ok := g.rooms[roomID]
	if !ok {
		return false
	}
	if current, ok := g.memberOf[connID]; ok {
		g.Leave(current, connID)
	}
	if hidden {
		room.hidden[connID] = struct{}{}
	} else {
		room.visible[connID] = struct{}{}
	}
	g.memberOf[connID] = roomID
	return true
}

// Leave removes connID from both member sets of roomID.
func (g *Registry) Leave(roomID, connID string) {
	room, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(room.visible, connID)
	delete(room.hidden, connID)
	delete(room.typing, connID)
	if g.memberOf[connID] == roomID {
		delete(g.memberOf, connID)
	}
}

// RoomOf returns the room connID occupies.
func (g *Registry) RoomOf(connID string) (string, bool) {
	id, ok := g.memberOf[connID]
	return id, ok
}

// IsHidden reports whether connID is a hidden member of roomID.
func (g *Registry) IsHidden(roomID, connID string) bool {
	room, ok := g.rooms[roomID]
	if !ok {
		return false
	}
	_, hidden := room.hidden[connID]
	return hidden
}

// VisibleCount returns the number of visible members, the only count
// clients ever see.
func (g *Registry) VisibleCount(roomID string) int {
	room, ok := g.rooms[roomID]
	if !ok {
		return 0
	}
	return len(room.visible)
}

// TotalCount counts visible and hidden members. A room with hidden members
// is still occupied.
func (g *Registry) TotalCount(roomID string) int {
	room, ok := g.rooms[roomID]
	if !ok {
		return 0
	}
	return len(room.visible) + len(room.hidden)
}
