// Package scheduler promotes lessons between lifecycle states by wall-clock
// time: scheduled lessons past their start time go live, live lessons past
// their end time are force-ended. The clock and lesson repository are
// injected so the loop is testable without sleeping.
package scheduler

import (
	"context"
	"time"

	"lectern/internal/logger"
	"lectern/internal/session"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// Clock supplies the current time.
type Clock func() time.Time

// Scheduler is the recurring lifecycle poll.
type Scheduler struct {
	interval time.Duration
	clock    Clock
	lessons  interfaces.LessonRepository
	sessions *session.Registry
	conns    interfaces.Broadcaster
	log      *logger.Logger
}

// New creates a scheduler. A nil clock defaults to time.Now.
func New(interval time.Duration, clock Clock, lessons interfaces.LessonRepository, sessions *session.Registry, conns interfaces.Broadcaster, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		interval: interval,
		clock:    clock,
		lessons:  lessons,
		sessions: sessions,
		conns:    conns,
		log:      log.With("component", "scheduler"),
	}
}

// Run polls at the configured interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ticker.C:
			s.Poll(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		}
	}
}

// Poll runs one lifecycle pass. Each lesson's transition is evaluated and
// applied independently; a failure on one lesson is logged and never aborts
// the cycle for the others.
func (s *Scheduler) Poll(ctx context.Context) {
	now := s.clock()

	due, err := s.lessons.DueForStart(ctx, now)
	if err != nil {
		s.log.Error("due-for-start query failed", "error", err)
	} else {
		for _, lesson := range due {
			if err := s.promote(ctx, lesson); err != nil {
				s.log.Error("lesson promotion failed", "lesson_id", lesson.ID, "error", err)
			}
		}
	}

	overrun, err := s.lessons.DueForEnd(ctx, now)
	if err != nil {
		s.log.Error("due-for-end query failed", "error", err)
		return
	}
	for _, lesson := range overrun {
		if err := s.forceEnd(ctx, lesson); err != nil {
			s.log.Error("lesson force-end failed", "lesson_id", lesson.ID, "error", err)
		}
	}
}

// promote moves a scheduled lesson live, creates its session, and announces
// lesson_started (even with zero connected clients).
func (s *Scheduler) promote(ctx context.Context, lesson *types.Lesson) error {
	if err := s.lessons.SetLessonStatus(ctx, lesson.ID, types.LessonStatusLive); err != nil {
		return err
	}
	if _, err := s.sessions.GetOrCreate(ctx, lesson.ID); err != nil {
		return err
	}
	s.conns.Broadcast(lesson.ID, protocol.NewLessonStarted(lesson.ID))
	s.log.Info("lesson promoted to live", "lesson_id", lesson.ID, "title", lesson.Title)
	return nil
}

// forceEnd tears down an overrun lesson's session and records the ended
// status.
func (s *Scheduler) forceEnd(ctx context.Context, lesson *types.Lesson) error {
	if err := s.lessons.SetLessonStatus(ctx, lesson.ID, types.LessonStatusEnded); err != nil {
		return err
	}
	if err := s.sessions.End(ctx, lesson.ID); err != nil {
		// The lesson may have been ended explicitly between the query and
		// now; that is not a failure of the poll.
		s.log.Debug("session already gone during force-end", "lesson_id", lesson.ID, "error", err)
	}
	s.log.Info("lesson force-ended on overrun", "lesson_id", lesson.ID)
	return nil
}
