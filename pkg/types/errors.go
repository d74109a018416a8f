package types

import "errors"

// Core error taxonomy shared across components. Each error maps to a wire
// error code in pkg/protocol; all of them are recoverable conditions that are
// reported to the issuing connection only.
var (
	// ErrNotReady is returned when presentation start is requested before a
	// slide bundle exists for the lesson.
	ErrNotReady = errors.New("presentation not processed yet")

	// ErrProcessing is returned when the rendering collaborator fails during
	// bundle creation. The job is marked failed and is never auto-retried.
	ErrProcessing = errors.New("presentation processing failed")

	// ErrInvalidTransition is returned for a command that is not valid in the
	// presentation engine's current mode.
	ErrInvalidTransition = errors.New("command not valid in current presentation mode")

	// ErrCompleted is returned for navigation commands after the presentation
	// has completed.
	ErrCompleted = errors.New("presentation already completed")

	// ErrTranscription is returned when the transcription collaborator fails
	// while handling an audio question.
	ErrTranscription = errors.New("question transcription failed")

	// ErrRetrieval is returned when the retrieval/answer collaborator fails.
	ErrRetrieval = errors.New("answer retrieval failed")

	// ErrSessionEnded is returned for commands issued after the lesson session
	// was torn down.
	ErrSessionEnded = errors.New("lesson session has ended")

	// ErrUnknownCommand is returned when an inbound message carries an
	// unrecognized type discriminant.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrUnauthorizedCommand is returned when a connection's role does not
	// permit the issued command.
	ErrUnauthorizedCommand = errors.New("role not authorized for this command")

	// ErrLessonNotFound is returned by lesson lookups for unknown lesson IDs.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrRateLimited is returned when a connection sends commands faster
	// than the per-connection limit allows.
	ErrRateLimited = errors.New("command rate limit exceeded")
)

// Validation errors for lesson records.
var (
	ErrInvalidLessonTitle  = errors.New("lesson title must be 1-200 characters")
	ErrInvalidLessonWindow = errors.New("lesson end time must be after start time")
	ErrInvalidLessonStatus = errors.New("invalid lesson status")
)
