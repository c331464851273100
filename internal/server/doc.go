// Package server hosts the chat relay's HTTP and WebSocket surface.
//
// A single Hub goroutine owns every connection and the chat.Router; client
// pumps, the idle reaper, REST handlers and close timers all reach room
// state by posting into the hub rather than sharing memory.
package server
