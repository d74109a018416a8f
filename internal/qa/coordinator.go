// Package qa bridges an inbound question through the transcription and
// retrieval collaborators and back into the presentation engine.
package qa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lectern/internal/engine"
	"lectern/internal/logger"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// Input is one inbound question: inline text or a reference to uploaded
// audio.
type Input struct {
	AskerID  string
	Text     string
	AudioRef string
}

// Coordinator orchestrates question handling. Callers must hold the lesson's
// session lock for the full HandleQuestion call; that is what guarantees
// answer_ready reaches all connections before any further navigation command
// is accepted for the lesson.
type Coordinator struct {
	transcriber interfaces.Transcriber
	answerer    interfaces.Answerer
	questions   interfaces.QuestionStore
	conns       interfaces.Broadcaster
	log         *logger.Logger
}

// NewCoordinator creates a question coordinator.
func NewCoordinator(transcriber interfaces.Transcriber, answerer interfaces.Answerer, questions interfaces.QuestionStore, conns interfaces.Broadcaster, log *logger.Logger) *Coordinator {
	return &Coordinator{
		transcriber: transcriber,
		answerer:    answerer,
		questions:   questions,
		conns:       conns,
		log:         log.With("component", "qa.coordinator"),
	}
}

// HandleQuestion drives one question through transcription, retrieval,
// persistence and the engine's answering -> paused transition. sealed is
// consulted before each broadcast: a session torn down mid-flight still gets
// its answer computed and persisted, but no events go out afterward.
func (c *Coordinator) HandleQuestion(ctx context.Context, eng *engine.Engine, lessonID int64, in Input, sealed func() bool) (*types.Question, error) {
	prior, err := eng.BeginQuestion()
	if err != nil {
		return nil, err
	}

	transcript := in.Text
	if in.AudioRef != "" {
		transcript, err = c.transcriber.Transcribe(ctx, in.AudioRef)
		if err != nil {
			eng.AbortQuestion(prior)
			return nil, fmt.Errorf("%w: %v", types.ErrTranscription, err)
		}
	}

	q := &types.Question{
		ID:         uuid.New().String(),
		LessonID:   lessonID,
		AskerID:    in.AskerID,
		RawText:    in.Text,
		AudioRef:   in.AudioRef,
		Transcript: transcript,
		CreatedAt:  time.Now().UTC(),
	}

	if !sealed() {
		c.conns.Broadcast(lessonID, protocol.NewQuestionAsked(q))
	}

	answer, found, relevance, err := c.answerer.Answer(ctx, lessonID, transcript)
	if err != nil {
		eng.AbortQuestion(prior)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrieval, err)
	}
	q.Answer = answer
	q.Found = found
	q.Relevance = relevance

	// The answer is recorded even when the session was ended mid-flight, so
	// the Q&A history stays complete.
	if err := c.questions.StoreQuestion(ctx, q); err != nil {
		c.log.Error("failed to persist question", "lesson_id", lessonID, "question_id", q.ID, "error", err)
	}

	eng.FinishQuestion()

	if !sealed() {
		c.conns.Broadcast(lessonID, protocol.NewAnswerReady(q))
	} else {
		c.log.Info("session sealed mid-question, answer persisted without broadcast",
			"lesson_id", lessonID, "question_id", q.ID)
	}

	return q, nil
}
