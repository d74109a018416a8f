package session

import (
	"sync"
	"sync/atomic"
	"time"

	"lectern/internal/engine"
)

// Session is the live runtime state of one lesson: its presentation engine
// plus the per-lesson lock that serializes every command for the lesson.
// Exactly one Session exists per lesson at any time; the Registry enforces
// that.
type Session struct {
	lessonID  int64
	title     string
	createdAt time.Time

	// mu serializes engine transitions and question handling for this
	// lesson. Commands for different lessons proceed fully in parallel.
	mu     sync.Mutex
	engine *engine.Engine

	// sealed is set on teardown without taking mu, so an in-flight command
	// can finish while newly issued commands are already being rejected.
	sealed atomic.Bool
}

// LessonID returns the lesson this session belongs to.
func (s *Session) LessonID() int64 { return s.lessonID }

// Title returns the lesson title.
func (s *Session) Title() string { return s.title }

// Engine returns the session's presentation engine. Callers must hold the
// session lock via Dispatch; direct access is for tests.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Sealed reports whether the session has been torn down.
func (s *Session) Sealed() bool { return s.sealed.Load() }

func (s *Session) seal() { s.sealed.Store(true) }
