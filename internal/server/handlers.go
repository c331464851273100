// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the room listing API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const queryTimeout = 5 * time.Second

// Handlers serves the HTTP surface of a single hub.
type Handlers struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandlers builds handlers whose WebSocket upgrader enforces the hub's
// origin allow-list.
func NewHandlers(hub *Hub) *Handlers {
	policy := newOriginPolicy(hub.cfg.AllowedOrigins)
	return &Handlers{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
	}
}

// WebSocketHandler upgrades the HTTP connection to WebSocket, creates a new
// Client instance, and registers it with the hub, which starts its pumps.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// HealthHandler reports liveness and the number of connected clients.
func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Clients: h.hub.ClientCount()})
}

// RoomsHandler lists the rooms in the same shape as the roomsList event.
func (h *Handlers) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rooms, err := h.hub.Rooms(ctx)
	if err != nil {
		slog.Error("list rooms", "err", err)
		writeError(w, http.StatusServiceUnavailable, "rooms unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// RoomHandler returns the summary of one room.
func (h *Handlers) RoomHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rooms, err := h.hub.Rooms(ctx)
	if err != nil {
		slog.Error("get room", "room_id", id, "err", err)
		writeError(w, http.StatusServiceUnavailable, "rooms unavailable")
		return
	}
	for _, room := range rooms {
		if room.ID == id {
			writeJSON(w, http.StatusOK, room)
			return
		}
	}
	writeError(w, http.StatusNotFound, "room not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.Notice{Message: message})
}
