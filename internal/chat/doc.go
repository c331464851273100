// Package chat holds the in-memory room model and the event router that
// applies client events to it.
//
// Nothing in this package is safe for concurrent use. The server runs every
// Router call on a single goroutine, including deferred room deletions and
// reaper ticks, so handlers run to completion without locks.
package chat
