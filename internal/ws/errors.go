package ws

import "errors"

// Connection-related errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors.
var (
	ErrNilConnection  = errors.New("connection cannot be nil")
	ErrLessonMismatch = errors.New("connection lesson does not match target set")
)
