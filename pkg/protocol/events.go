package protocol

import (
	"errors"
	"strings"
	"time"

	"lectern/pkg/types"
)

// SlidePayload is the wire shape of one slide. Slide numbers are one-based on
// the wire; the engine's internal index is zero-based.
type SlidePayload struct {
	SlideNumber      int     `json:"slide_number"`
	Text             string  `json:"text"`
	ImagePath        string  `json:"image_path"`
	AudioPath        string  `json:"audio_path"`
	DurationEstimate float64 `json:"duration_estimate"`
}

// ProcessingStarted signals the start of a deck processing job.
type ProcessingStarted struct {
	Type      string    `json:"type"`
	LessonID  int64     `json:"lesson_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ProcessingProgress reports monotonically increasing conversion progress.
type ProcessingProgress struct {
	Type      string    `json:"type"`
	LessonID  int64     `json:"lesson_id"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// ProcessingCompleted signals a ready slide bundle.
type ProcessingCompleted struct {
	Type        string    `json:"type"`
	LessonID    int64     `json:"lesson_id"`
	TotalSlides int       `json:"total_slides"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProcessingError is the terminal event of a failed processing job.
type ProcessingError struct {
	Type      string    `json:"type"`
	LessonID  int64     `json:"lesson_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PresentationStarted carries the full slide array so clients can render
// without further round trips.
type PresentationStarted struct {
	Type               string         `json:"type"`
	LessonID           int64          `json:"lesson_id"`
	LessonTitle        string         `json:"lesson_title"`
	TotalSlides        int            `json:"total_slides"`
	CurrentSlideNumber int            `json:"current_slide_number"`
	Slides             []SlidePayload `json:"slides"`
	Timestamp          time.Time      `json:"timestamp"`
}

// SlideChanged carries the slide the presentation moved to.
type SlideChanged struct {
	Type      string       `json:"type"`
	LessonID  int64        `json:"lesson_id"`
	Slide     SlidePayload `json:"slide"`
	Timestamp time.Time    `json:"timestamp"`
}

// PresentationPaused / PresentationResumed / PresentationCompleted and the
// lesson lifecycle events share a minimal shape.
type LessonEvent struct {
	Type      string    `json:"type"`
	LessonID  int64     `json:"lesson_id"`
	Timestamp time.Time `json:"timestamp"`
}

// QuestionAsked announces a question and its transcript to the lesson.
type QuestionAsked struct {
	Type       string    `json:"type"`
	LessonID   int64     `json:"lesson_id"`
	QuestionID string    `json:"question_id"`
	Transcript string    `json:"transcript"`
	Timestamp  time.Time `json:"timestamp"`
}

// AnswerReady delivers the computed answer for a question.
type AnswerReady struct {
	Type       string    `json:"type"`
	LessonID   int64     `json:"lesson_id"`
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"answer"`
	Found      bool      `json:"found"`
	Relevance  float64   `json:"relevance"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorEvent reports a recoverable failure to the issuing connection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// KeepaliveAck acknowledges a client keepalive.
type KeepaliveAck struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSlidePayload converts an internal slide to its wire shape, normalizing
// asset paths.
func NewSlidePayload(s types.Slide) SlidePayload {
	return SlidePayload{
		SlideNumber:      s.Index + 1,
		Text:             s.Text,
		ImagePath:        NormalizePath(s.ImagePath),
		AudioPath:        NormalizePath(s.AudioPath),
		DurationEstimate: s.DurationEstimate,
	}
}

func NewProcessingStarted(lessonID int64) ProcessingStarted {
	return ProcessingStarted{Type: EventProcessingStarted, LessonID: lessonID, Timestamp: time.Now().UTC()}
}

func NewProcessingProgress(lessonID int64, current, total int) ProcessingProgress {
	return ProcessingProgress{Type: EventProcessingProgress, LessonID: lessonID, Current: current, Total: total, Timestamp: time.Now().UTC()}
}

func NewProcessingCompleted(lessonID int64, totalSlides int) ProcessingCompleted {
	return ProcessingCompleted{Type: EventProcessingCompleted, LessonID: lessonID, TotalSlides: totalSlides, Timestamp: time.Now().UTC()}
}

func NewProcessingError(lessonID int64, message string) ProcessingError {
	return ProcessingError{Type: EventProcessingError, LessonID: lessonID, Message: message, Timestamp: time.Now().UTC()}
}

func NewPresentationStarted(lessonID int64, title string, bundle *types.SlideBundle, index int) PresentationStarted {
	slides := make([]SlidePayload, 0, bundle.Total())
	for _, s := range bundle.Slides {
		slides = append(slides, NewSlidePayload(s))
	}
	return PresentationStarted{
		Type:               EventPresentationStarted,
		LessonID:           lessonID,
		LessonTitle:        title,
		TotalSlides:        bundle.Total(),
		CurrentSlideNumber: index + 1,
		Slides:             slides,
		Timestamp:          time.Now().UTC(),
	}
}

func NewSlideChanged(lessonID int64, slide types.Slide) SlideChanged {
	return SlideChanged{Type: EventSlideChanged, LessonID: lessonID, Slide: NewSlidePayload(slide), Timestamp: time.Now().UTC()}
}

func NewPresentationPaused(lessonID int64) LessonEvent {
	return LessonEvent{Type: EventPresentationPaused, LessonID: lessonID, Timestamp: time.Now().UTC()}
}

func NewPresentationResumed(lessonID int64) LessonEvent {
	return LessonEvent{Type: EventPresentationResumed, LessonID: lessonID, Timestamp: time.Now().UTC()}
}

func NewPresentationCompleted(lessonID int64) LessonEvent {
	return LessonEvent{Type: EventPresentationCompleted, LessonID: lessonID, Timestamp: time.Now().UTC()}
}

func NewLessonStarted(lessonID int64) LessonEvent {
	return LessonEvent{Type: EventLessonStarted, LessonID: lessonID, Timestamp: time.Now().UTC()}
}

func NewLessonEnded(lessonID int64) LessonEvent {
	return LessonEvent{Type: EventLessonEnded, LessonID: lessonID, Timestamp: time.Now().UTC()}
}

func NewQuestionAsked(q *types.Question) QuestionAsked {
	return QuestionAsked{Type: EventQuestionAsked, LessonID: q.LessonID, QuestionID: q.ID, Transcript: q.Transcript, Timestamp: time.Now().UTC()}
}

func NewAnswerReady(q *types.Question) AnswerReady {
	return AnswerReady{
		Type:       EventAnswerReady,
		LessonID:   q.LessonID,
		QuestionID: q.ID,
		Answer:     q.Answer,
		Found:      q.Found,
		Relevance:  q.Relevance,
		Timestamp:  time.Now().UTC(),
	}
}

func NewKeepaliveAck() KeepaliveAck {
	return KeepaliveAck{Type: EventKeepaliveAck, Timestamp: time.Now().UTC()}
}

// NewErrorEvent maps a taxonomy error to its wire code.
func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: CodeFor(err), Message: err.Error()}
}

// CodeFor returns the wire error code for a taxonomy error. Unrecognized
// errors map to INTERNAL.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, types.ErrNotReady):
		return "NOT_READY"
	case errors.Is(err, types.ErrProcessing):
		return "PROCESSING_FAILED"
	case errors.Is(err, types.ErrCompleted):
		return "COMPLETED"
	case errors.Is(err, types.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, types.ErrTranscription):
		return "TRANSCRIPTION_FAILED"
	case errors.Is(err, types.ErrRetrieval):
		return "RETRIEVAL_FAILED"
	case errors.Is(err, types.ErrSessionEnded):
		return "SESSION_ENDED"
	case errors.Is(err, types.ErrUnknownCommand):
		return "UNKNOWN_COMMAND"
	case errors.Is(err, types.ErrUnauthorizedCommand):
		return "UNAUTHORIZED"
	case errors.Is(err, types.ErrLessonNotFound):
		return "LESSON_NOT_FOUND"
	case errors.Is(err, types.ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}

// NormalizePath rewrites an asset path to forward slashes with exactly one
// leading slash, so clients can concatenate it with a base URL regardless of
// the host filesystem.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(p, "/")
	}
	return "/" + p
}
