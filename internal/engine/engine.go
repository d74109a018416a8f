// Package engine implements the per-lesson presentation playback state
// machine: play, pause, navigate, interrupt for a question, complete.
package engine

import (
	"fmt"

	"lectern/internal/logger"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// Mode is the playback mode of a live lesson.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModePlaying   Mode = "playing"
	ModePaused    Mode = "paused"
	ModeAnswering Mode = "answering"
	ModeCompleted Mode = "completed"
)

// Engine is the playback cursor and mode for one lesson. It is not
// internally synchronized: the owning lesson session serializes all access
// through its per-lesson lock, which is what guarantees commands for the same
// lesson never interleave.
type Engine struct {
	lessonID int64
	title    string
	bundles  interfaces.BundleSource
	conns    interfaces.Broadcaster
	log      *logger.Logger

	mode   Mode
	index  int
	bundle *types.SlideBundle // pinned at start so navigation stays stable
}

// New creates an engine in idle mode for a lesson.
func New(lessonID int64, title string, bundles interfaces.BundleSource, conns interfaces.Broadcaster, log *logger.Logger) *Engine {
	return &Engine{
		lessonID: lessonID,
		title:    title,
		bundles:  bundles,
		conns:    conns,
		log:      log.With("component", "engine", "lesson_id", lessonID),
		mode:     ModeIdle,
	}
}

// Mode returns the current playback mode.
func (e *Engine) Mode() Mode { return e.mode }

// Index returns the current zero-based slide index.
func (e *Engine) Index() int { return e.index }

// Start begins playback at the first slide. Fails with types.ErrNotReady
// while no bundle exists; no partial presentation_started is ever emitted.
func (e *Engine) Start() error {
	if e.mode != ModeIdle {
		return e.reject(protocol.CmdStartPresentation)
	}
	b, err := e.bundles.Bundle(e.lessonID)
	if err != nil {
		return err
	}
	if b.Total() == 0 {
		return fmt.Errorf("%w: bundle has no slides", types.ErrNotReady)
	}

	e.bundle = b
	e.index = 0
	e.mode = ModePlaying
	e.log.Info("presentation started", "total_slides", b.Total())
	e.conns.Broadcast(e.lessonID, protocol.NewPresentationStarted(e.lessonID, e.title, b, e.index))
	return nil
}

// Next advances to the next slide. Advancing past the last slide completes
// the presentation (documented policy; completion does not require an
// explicit presenter action).
func (e *Engine) Next() error {
	if err := e.requirePlaying(protocol.CmdNextSlide); err != nil {
		return err
	}
	if e.index+1 >= e.bundle.Total() {
		e.mode = ModeCompleted
		e.log.Info("presentation completed")
		e.conns.Broadcast(e.lessonID, protocol.NewPresentationCompleted(e.lessonID))
		return nil
	}
	e.index++
	e.conns.Broadcast(e.lessonID, protocol.NewSlideChanged(e.lessonID, e.bundle.Slides[e.index]))
	return nil
}

// Prev moves to the previous slide, clamping at the first.
func (e *Engine) Prev() error {
	if err := e.requirePlaying(protocol.CmdPreviousSlide); err != nil {
		return err
	}
	if e.index > 0 {
		e.index--
	}
	e.conns.Broadcast(e.lessonID, protocol.NewSlideChanged(e.lessonID, e.bundle.Slides[e.index]))
	return nil
}

// Pause suspends playback at the current slide.
func (e *Engine) Pause() error {
	if e.mode != ModePlaying {
		return e.reject(protocol.CmdPausePresentation)
	}
	e.mode = ModePaused
	e.conns.Broadcast(e.lessonID, protocol.NewPresentationPaused(e.lessonID))
	return nil
}

// Resume continues playback from the paused slide.
func (e *Engine) Resume() error {
	if e.mode != ModePaused {
		return e.reject(protocol.CmdResumePresentation)
	}
	e.mode = ModePlaying
	e.conns.Broadcast(e.lessonID, protocol.NewPresentationResumed(e.lessonID))
	return nil
}

// BeginQuestion interrupts playback for a question and returns the mode to
// restore if question handling fails.
func (e *Engine) BeginQuestion() (Mode, error) {
	if e.mode != ModePlaying && e.mode != ModePaused {
		return "", e.reject(protocol.CmdAskQuestion)
	}
	prior := e.mode
	e.mode = ModeAnswering
	return prior, nil
}

// FinishQuestion leaves answering mode. Playback stays paused until an
// explicit resume.
func (e *Engine) FinishQuestion() {
	if e.mode == ModeAnswering {
		e.mode = ModePaused
	}
}

// AbortQuestion restores the pre-question mode after a collaborator failure,
// so the engine never sticks in answering.
func (e *Engine) AbortQuestion(prior Mode) {
	if e.mode == ModeAnswering {
		e.mode = prior
	}
}

// CurrentSlide returns the slide under the cursor.
func (e *Engine) CurrentSlide() (types.Slide, bool) {
	if e.bundle == nil || e.index < 0 || e.index >= e.bundle.Total() {
		return types.Slide{}, false
	}
	return e.bundle.Slides[e.index], true
}

func (e *Engine) requirePlaying(cmd string) error {
	if e.mode == ModeCompleted {
		return fmt.Errorf("%w: %s rejected", types.ErrCompleted, cmd)
	}
	if e.mode != ModePlaying {
		return e.reject(cmd)
	}
	return nil
}

func (e *Engine) reject(cmd string) error {
	return fmt.Errorf("%w: %s in mode %s", types.ErrInvalidTransition, cmd, e.mode)
}
