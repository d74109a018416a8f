package types

import (
	"time"
)

// Lesson lifecycle statuses. A lesson moves scheduled -> live -> ended and
// never backwards; the scheduler is the only component that promotes by time.
const (
	LessonStatusScheduled = "scheduled"
	LessonStatusLive      = "live"
	LessonStatusEnded     = "ended"
)

// Connection roles. Presenters drive playback; viewers follow along and may
// ask questions.
const (
	RolePresenter = "presenter"
	RoleViewer    = "viewer"
)

// Lesson is a scheduled teaching unit, the unit of session orchestration.
type Lesson struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Status    string    `json:"status" db:"status"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
	SourceRef string    `json:"source_ref,omitempty" db:"source_ref"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Slide is one processed slide of a lesson deck. Index is zero-based; the
// wire protocol exposes one-based slide numbers.
type Slide struct {
	Index            int     `json:"index"`
	Text             string  `json:"text"`
	ImagePath        string  `json:"image_path"`
	AudioPath        string  `json:"audio_path"`
	DurationEstimate float64 `json:"duration_estimate"`
}

// SlideBundle is the fully processed, presentable form of a lesson's deck.
// A bundle is immutable once published by the bundle store; the presentation
// engine only ever sees complete bundles.
type SlideBundle struct {
	LessonID int64   `json:"lesson_id"`
	Slides   []Slide `json:"slides"`
}

// Total returns the slide count of the bundle.
func (b *SlideBundle) Total() int {
	if b == nil {
		return 0
	}
	return len(b.Slides)
}

// Question is one asked-and-answered interaction. Immutable once the answer
// has been recorded; retained as the lesson's Q&A history.
type Question struct {
	ID         string    `json:"id" db:"id"`
	LessonID   int64     `json:"lesson_id" db:"lesson_id"`
	AskerID    string    `json:"asker_id" db:"asker_id"`
	RawText    string    `json:"raw_text,omitempty" db:"raw_text"`
	AudioRef   string    `json:"audio_ref,omitempty" db:"audio_ref"`
	Transcript string    `json:"transcript" db:"transcript"`
	Answer     string    `json:"answer" db:"answer"`
	Found      bool      `json:"found" db:"found"`
	Relevance  float64   `json:"relevance" db:"relevance"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
