package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lectern/internal/engine"
	"lectern/internal/logger"
	"lectern/internal/qa"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// ConnectionRegistry is the slice of the connection layer the session
// registry needs: fan-out, targeted send, and teardown.
type ConnectionRegistry interface {
	interfaces.Broadcaster
	SendTo(connID string, event interface{})
	CloseLesson(lessonID int64)
}

// Registry is the single source of truth for which lessons are live. It
// guarantees one session instance per lesson via a creation lock and owns
// session teardown.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	conns   ConnectionRegistry
	bundles interfaces.BundleSource
	lessons interfaces.LessonRepository
	qa      *qa.Coordinator
	log     *logger.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(conns ConnectionRegistry, bundles interfaces.BundleSource, lessons interfaces.LessonRepository, coordinator *qa.Coordinator, log *logger.Logger) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		conns:    conns,
		bundles:  bundles,
		lessons:  lessons,
		qa:       coordinator,
		log:      log.With("component", "session.registry"),
	}
}

// GetOrCreate returns the lesson's session, creating it if absent. Concurrent
// callers always receive the same instance. Ended lessons never get a new
// session.
func (r *Registry) GetOrCreate(ctx context.Context, lessonID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[lessonID]; ok {
		return s, nil
	}

	lesson, err := r.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Status == types.LessonStatusEnded {
		return nil, fmt.Errorf("%w: lesson %d", types.ErrSessionEnded, lessonID)
	}

	s := &Session{
		lessonID:  lessonID,
		title:     lesson.Title,
		createdAt: time.Now().UTC(),
	}
	s.engine = engine.New(lessonID, lesson.Title, r.bundles, r.conns, r.log)
	r.sessions[lessonID] = s

	r.log.Info("lesson session created", "lesson_id", lessonID, "title", lesson.Title)
	return s, nil
}

// Get returns the live session for a lesson, if any.
func (r *Registry) Get(lessonID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[lessonID]
	return s, ok
}

// Exists reports whether the lesson currently has a live session.
func (r *Registry) Exists(lessonID int64) bool {
	_, ok := r.Get(lessonID)
	return ok
}

// End tears the lesson's session down: the session is sealed so subsequent
// commands fail with a session-ended error, lesson_ended is broadcast, and
// every connection of the lesson is closed. An in-flight question is allowed
// to finish; it just won't broadcast afterward.
func (r *Registry) End(ctx context.Context, lessonID int64) error {
	r.mu.Lock()
	s, ok := r.sessions[lessonID]
	delete(r.sessions, lessonID)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: lesson %d", types.ErrSessionEnded, lessonID)
	}

	s.seal()
	r.conns.Broadcast(lessonID, protocol.NewLessonEnded(lessonID))
	r.conns.CloseLesson(lessonID)
	r.log.Info("lesson session ended", "lesson_id", lessonID)
	return nil
}

// Shutdown seals every live session and closes its connections. Used on
// application stop so no session state outlives the process.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[int64]*Session)
	r.mu.Unlock()

	for id, s := range sessions {
		s.seal()
		r.conns.CloseLesson(id)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
