// Package server wires HTTP handlers into a gorilla/mux router.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all application routes:
// the WebSocket endpoint, health check and room listing.
func SetupRoutes(hub *Hub) *mux.Router {
	h := NewHandlers(hub)

	r := mux.NewRouter()
	r.HandleFunc("/ws", h.WebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", h.RoomsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{id}", h.RoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/", h.HealthHandler).Methods(http.MethodGet)
	return r
}
