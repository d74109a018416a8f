package session

import (
	"context"
	"fmt"

	"lectern/internal/qa"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// Join ensures the lesson has a live session, creating one if needed. Called
// by the connection layer when a client attaches to a lesson.
func (r *Registry) Join(ctx context.Context, lessonID int64) error {
	_, err := r.GetOrCreate(ctx, lessonID)
	return err
}

// Dispatch executes one decoded command for the connection's lesson under the
// lesson's session lock. Rejections are returned to the caller, which surfaces
// them to the issuing connection only; they are never broadcast.
func (r *Registry) Dispatch(ctx context.Context, conn interfaces.Connection, cmd protocol.Command) error {
	lessonID := conn.LessonID()

	s, ok := r.Get(lessonID)
	if !ok {
		return fmt.Errorf("%w: lesson %d", types.ErrSessionEnded, lessonID)
	}
	if s.Sealed() {
		return fmt.Errorf("%w: lesson %d", types.ErrSessionEnded, lessonID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Teardown may have happened while waiting for the lock; an already
	// accepted command finished under the lock, this one is newly issued.
	if s.Sealed() {
		return fmt.Errorf("%w: lesson %d", types.ErrSessionEnded, lessonID)
	}

	switch c := cmd.(type) {
	case protocol.StartPresentation:
		if err := requirePresenter(conn); err != nil {
			return err
		}
		return s.engine.Start()

	case protocol.NextSlide:
		if err := requirePresenter(conn); err != nil {
			return err
		}
		return s.engine.Next()

	case protocol.PreviousSlide:
		if err := requirePresenter(conn); err != nil {
			return err
		}
		return s.engine.Prev()

	case protocol.PausePresentation:
		if err := requirePresenter(conn); err != nil {
			return err
		}
		return s.engine.Pause()

	case protocol.ResumePresentation:
		if err := requirePresenter(conn); err != nil {
			return err
		}
		return s.engine.Resume()

	case protocol.AskQuestion:
		_, err := r.qa.HandleQuestion(ctx, s.engine, lessonID, qa.Input{
			AskerID:  conn.UserID(),
			Text:     c.Text,
			AudioRef: c.AudioRef,
		}, s.Sealed)
		return err

	case protocol.Keepalive:
		r.conns.SendTo(conn.ID(), protocol.NewKeepaliveAck())
		return nil

	default:
		return fmt.Errorf("%w: %T", types.ErrUnknownCommand, cmd)
	}
}

func requirePresenter(conn interfaces.Connection) error {
	if conn.Role() != types.RolePresenter {
		return fmt.Errorf("%w: %s", types.ErrUnauthorizedCommand, conn.Role())
	}
	return nil
}
