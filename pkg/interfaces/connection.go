// Package interfaces defines the contracts between components. Implementations
// live under internal/; keeping the contracts here lets every component depend
// on abstractions instead of each other's internals.
package interfaces

// Connection represents one live bidirectional client link scoped to a lesson.
// WriteJSON must be safe for concurrent use; implementations serialize writes
// through a single writer.
type Connection interface {
	// ID returns the server-assigned connection id.
	ID() string

	// UserID returns the authenticated principal.
	UserID() string

	// Role returns "presenter" or "viewer".
	Role() string

	// LessonID returns the lesson this connection is scoped to.
	LessonID() int64

	// WriteJSON sends a JSON event to the client.
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources.
	Close() error
}

// Broadcaster fans an event out to every live connection of a lesson. A send
// failure on one connection must not prevent delivery to others.
type Broadcaster interface {
	Broadcast(lessonID int64, event interface{})
}
