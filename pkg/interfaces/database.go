package interfaces

import (
	"context"
	"time"

	"lectern/pkg/types"
)

// LessonRepository is the persistence contract for lesson records and the
// scheduler's due queries.
type LessonRepository interface {
	// CreateLesson persists a new lesson and assigns its ID.
	CreateLesson(ctx context.Context, lesson *types.Lesson) error

	// GetLesson retrieves a lesson by ID, or types.ErrLessonNotFound.
	GetLesson(ctx context.Context, lessonID int64) (*types.Lesson, error)

	// ListLessons returns all lessons ordered by start time.
	ListLessons(ctx context.Context) ([]*types.Lesson, error)

	// SetLessonStatus transitions a lesson's lifecycle status.
	SetLessonStatus(ctx context.Context, lessonID int64, status string) error

	// DueForStart returns scheduled lessons whose start time has passed.
	DueForStart(ctx context.Context, now time.Time) ([]*types.Lesson, error)

	// DueForEnd returns live lessons whose end time has passed.
	DueForEnd(ctx context.Context, now time.Time) ([]*types.Lesson, error)
}

// QuestionStore persists asked-and-answered questions and serves a lesson's
// Q&A history.
type QuestionStore interface {
	StoreQuestion(ctx context.Context, q *types.Question) error
	GetLessonQuestions(ctx context.Context, lessonID int64) ([]*types.Question, error)
}

// DatabaseManager bundles all persistence operations plus lifecycle hooks.
type DatabaseManager interface {
	LessonRepository
	QuestionStore

	// HealthCheck verifies connectivity.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and closes the connection.
	Close() error
}
