package ws

import (
	"sync"

	"lectern/internal/logger"
	"lectern/pkg/interfaces"
)

// Registry tracks the live connections of each lesson. It is the only place
// connection membership changes; broadcast failures prune the failing
// connection so membership is self-healing.
type Registry struct {
	mu      sync.RWMutex
	lessons map[int64]map[string]interfaces.Connection // lessonID -> connID -> Connection
	byID    map[string]interfaces.Connection           // connID -> Connection
	log     *logger.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		lessons: make(map[int64]map[string]interfaces.Connection),
		byID:    make(map[string]interfaces.Connection),
		log:     log.With("component", "ws.registry"),
	}
}

// Register adds a connection to its lesson's set. The connection must carry a
// lesson ID matching the target set.
func (r *Registry) Register(lessonID int64, conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if conn.LessonID() != lessonID {
		return ErrLessonMismatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lessons[lessonID] == nil {
		r.lessons[lessonID] = make(map[string]interfaces.Connection)
	}
	r.lessons[lessonID][conn.ID()] = conn
	r.byID[conn.ID()] = conn

	r.log.Debug("connection registered", "lesson_id", lessonID, "conn_id", conn.ID(), "user_id", conn.UserID(), "role", conn.Role())
	return nil
}

// Unregister removes a connection from a lesson's set. Idempotent; no error
// if the connection is already gone.
func (r *Registry) Unregister(lessonID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(lessonID, connID)
}

func (r *Registry) removeLocked(lessonID int64, connID string) {
	if conns, ok := r.lessons[lessonID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.lessons, lessonID)
		}
	}
	delete(r.byID, connID)
}

// Broadcast delivers an event to every live connection of a lesson. The
// membership set is snapshotted before iterating, so concurrent register and
// unregister calls cannot corrupt iteration or duplicate delivery. A failed
// connection is closed and removed without affecting the others.
func (r *Registry) Broadcast(lessonID int64, event interface{}) {
	r.mu.RLock()
	conns := make([]interfaces.Connection, 0, len(r.lessons[lessonID]))
	for _, conn := range r.lessons[lessonID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			r.log.Warn("broadcast delivery failed, pruning connection",
				"lesson_id", lessonID, "conn_id", conn.ID(), "error", err)
			r.prune(lessonID, conn)
		}
	}
}

// SendTo delivers an event to one connection, with the same failure-isolation
// rule as Broadcast.
func (r *Registry) SendTo(connID string, event interface{}) {
	r.mu.RLock()
	conn, ok := r.byID[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := conn.WriteJSON(event); err != nil {
		r.log.Warn("targeted delivery failed, pruning connection", "conn_id", connID, "error", err)
		r.prune(conn.LessonID(), conn)
	}
}

func (r *Registry) prune(lessonID int64, conn interfaces.Connection) {
	r.mu.Lock()
	r.removeLocked(lessonID, conn.ID())
	r.mu.Unlock()
	_ = conn.Close()
}

// CloseLesson closes and removes every connection of a lesson. Used during
// session teardown.
func (r *Registry) CloseLesson(lessonID int64) {
	r.mu.Lock()
	conns := r.lessons[lessonID]
	delete(r.lessons, lessonID)
	for id := range conns {
		delete(r.byID, id)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Count returns the number of live connections for a lesson.
func (r *Registry) Count(lessonID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lessons[lessonID])
}

// Stats returns registry totals for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"total_connections": len(r.byID),
		"active_lessons":    len(r.lessons),
	}
}
