// Package protocol defines the wire vocabulary of the lesson session
// orchestrator: the closed set of client commands, the closed set of server
// events, and the rules for decoding and shaping both. The package carries no
// state; every other component consumes it.
package protocol

import (
	"encoding/json"
	"fmt"

	"lectern/pkg/types"
)

// Command type discriminants (client -> server).
const (
	CmdStartPresentation  = "start_presentation"
	CmdNextSlide          = "next_slide"
	CmdPreviousSlide      = "previous_slide"
	CmdPausePresentation  = "pause_presentation"
	CmdResumePresentation = "resume_presentation"
	CmdAskQuestion        = "ask_question"
	CmdKeepalive          = "keepalive"
)

// Event type discriminants (server -> client).
const (
	EventProcessingStarted     = "presentation_processing_started"
	EventProcessingProgress    = "presentation_processing_progress"
	EventProcessingCompleted   = "presentation_processing_completed"
	EventProcessingError       = "presentation_processing_error"
	EventPresentationStarted   = "presentation_started"
	EventSlideChanged          = "slide_changed"
	EventPresentationPaused    = "presentation_paused"
	EventPresentationResumed   = "presentation_resumed"
	EventQuestionAsked         = "question_asked"
	EventAnswerReady           = "answer_ready"
	EventPresentationCompleted = "presentation_completed"
	EventLessonStarted         = "lesson_started"
	EventLessonEnded           = "lesson_ended"
	EventError                 = "error"
	EventKeepaliveAck          = "keepalive_ack"
)

// Command is a decoded client command. The set of implementations is closed;
// DecodeCommand rejects any discriminant outside it.
type Command interface {
	CommandType() string
}

type StartPresentation struct{}

type NextSlide struct{}

type PreviousSlide struct{}

type PausePresentation struct{}

type ResumePresentation struct{}

// AskQuestion carries either inline question text or a reference to an
// uploaded audio recording, never both.
type AskQuestion struct {
	Text     string `json:"text,omitempty"`
	AudioRef string `json:"audio_ref,omitempty"`
}

type Keepalive struct{}

func (StartPresentation) CommandType() string  { return CmdStartPresentation }
func (NextSlide) CommandType() string          { return CmdNextSlide }
func (PreviousSlide) CommandType() string      { return CmdPreviousSlide }
func (PausePresentation) CommandType() string  { return CmdPausePresentation }
func (ResumePresentation) CommandType() string { return CmdResumePresentation }
func (AskQuestion) CommandType() string        { return CmdAskQuestion }
func (Keepalive) CommandType() string          { return CmdKeepalive }

// envelope extracts the discriminant before full decoding.
type envelope struct {
	Type string `json:"type"`
}

// DecodeCommand decodes one inbound message into its command variant.
// Unknown discriminants are a decode error, never a silent no-op.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", types.ErrUnknownCommand)
	}

	switch env.Type {
	case CmdStartPresentation:
		return StartPresentation{}, nil
	case CmdNextSlide:
		return NextSlide{}, nil
	case CmdPreviousSlide:
		return PreviousSlide{}, nil
	case CmdPausePresentation:
		return PausePresentation{}, nil
	case CmdResumePresentation:
		return ResumePresentation{}, nil
	case CmdAskQuestion:
		var cmd AskQuestion
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: malformed ask_question payload", types.ErrUnknownCommand)
		}
		if cmd.Text == "" && cmd.AudioRef == "" {
			return nil, fmt.Errorf("%w: ask_question requires text or audio_ref", types.ErrUnknownCommand)
		}
		return cmd, nil
	case CmdKeepalive:
		return Keepalive{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownCommand, env.Type)
	}
}
