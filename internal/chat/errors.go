package chat

import "errors"

var (
	// ErrNotFound is returned when a room or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the caller does not own the room.
	ErrUnauthorized = errors.New("not the room owner")
	// ErrBadCredential is returned on a room password mismatch.
	ErrBadCredential = errors.New("incorrect password")
	// ErrForbidden is returned for operations never allowed on the default room.
	ErrForbidden = errors.New("operation not allowed on the public room")
)
