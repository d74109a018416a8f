// Package bundle holds each lesson's processed slide bundle and the state of
// its processing job. Processing is single-flight per lesson: a bundle is
// rendered at most once, re-requests on a ready bundle are no-ops, and a
// failed job requires an explicit new request.
package bundle

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"lectern/internal/logger"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// Job statuses.
const (
	StatusRunning = "running"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Result of a processing request.
type Result string

const (
	Started        Result = "started"
	AlreadyRunning Result = "already_running"
	AlreadyReady   Result = "already_ready"
)

type job struct {
	status  string
	bundle  *types.SlideBundle
	reason  string
	current int
	total   int
}

// Store is the presentation bundle store. It implements
// interfaces.BundleSource for the presentation engine.
type Store struct {
	mu       sync.Mutex
	jobs     map[int64]*job
	group    singleflight.Group
	renderer interfaces.DeckRenderer
	conns    interfaces.Broadcaster
	log      *logger.Logger
}

// NewStore creates a bundle store backed by the given renderer.
func NewStore(renderer interfaces.DeckRenderer, conns interfaces.Broadcaster, log *logger.Logger) *Store {
	return &Store{
		jobs:     make(map[int64]*job),
		renderer: renderer,
		conns:    conns,
		log:      log.With("component", "bundle.store"),
	}
}

// RequestProcessing starts a processing job unless one is already running or
// a ready bundle exists. Re-invoking on a processed lesson returns
// AlreadyReady without re-running the expensive conversion.
func (s *Store) RequestProcessing(ctx context.Context, lessonID int64, sourceRef string) (Result, error) {
	if sourceRef == "" {
		return "", ErrSourceRequired
	}

	s.mu.Lock()
	if j, ok := s.jobs[lessonID]; ok {
		switch j.status {
		case StatusReady:
			s.mu.Unlock()
			return AlreadyReady, nil
		case StatusRunning:
			s.mu.Unlock()
			return AlreadyRunning, nil
		}
		// A failed job falls through: an explicit new request restarts it.
	}
	s.jobs[lessonID] = &job{status: StatusRunning}
	s.mu.Unlock()

	s.conns.Broadcast(lessonID, protocol.NewProcessingStarted(lessonID))
	go s.run(ctx, lessonID, sourceRef)
	return Started, nil
}

// run executes the render through singleflight so overlapping requests for
// the same lesson share one renderer invocation.
func (s *Store) run(ctx context.Context, lessonID int64, sourceRef string) {
	key := strconv.FormatInt(lessonID, 10)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		b, err := s.renderer.Render(ctx, lessonID, sourceRef, func(current, total int) {
			s.ReportProgress(lessonID, current, total)
		})
		if err != nil {
			return nil, err
		}
		s.MarkReady(lessonID, b)
		return b, nil
	})
	if err != nil {
		s.log.Error("deck processing failed", "lesson_id", lessonID, "error", err)
		s.MarkFailed(lessonID, err.Error())
	}
}

// ReportProgress records job progress and forwards it to connected clients.
func (s *Store) ReportProgress(lessonID int64, current, total int) {
	s.mu.Lock()
	if j, ok := s.jobs[lessonID]; ok && j.status == StatusRunning {
		j.current = current
		j.total = total
	}
	s.mu.Unlock()

	s.conns.Broadcast(lessonID, protocol.NewProcessingProgress(lessonID, current, total))
}

// MarkReady publishes a complete bundle. Ready is terminal and immutable; a
// second call on a ready lesson is ignored.
func (s *Store) MarkReady(lessonID int64, b *types.SlideBundle) {
	s.mu.Lock()
	j, ok := s.jobs[lessonID]
	if !ok {
		j = &job{}
		s.jobs[lessonID] = j
	}
	if j.status == StatusReady {
		s.mu.Unlock()
		return
	}
	j.status = StatusReady
	j.bundle = b
	s.mu.Unlock()

	s.log.Info("slide bundle ready", "lesson_id", lessonID, "total_slides", b.Total())
	s.conns.Broadcast(lessonID, protocol.NewProcessingCompleted(lessonID, b.Total()))
}

// MarkFailed records a terminal processing failure and emits the terminal
// error event. The job is never auto-retried.
func (s *Store) MarkFailed(lessonID int64, reason string) {
	s.mu.Lock()
	j, ok := s.jobs[lessonID]
	if !ok || j.status == StatusReady {
		s.mu.Unlock()
		return
	}
	j.status = StatusFailed
	j.reason = reason
	s.mu.Unlock()

	s.conns.Broadcast(lessonID, protocol.NewProcessingError(lessonID, reason))
}

// Bundle returns the ready bundle for a lesson, or types.ErrNotReady. The
// engine never sees a partially populated bundle.
func (s *Store) Bundle(lessonID int64) (*types.SlideBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[lessonID]
	if !ok || j.status != StatusReady {
		return nil, types.ErrNotReady
	}
	return j.bundle, nil
}

// Status returns the processing status for a lesson with its progress
// counters, or false if no job exists.
func (s *Store) Status(lessonID int64) (status string, current, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, found := s.jobs[lessonID]
	if !found {
		return "", 0, 0, false
	}
	return j.status, j.current, j.total, true
}

// FailureReason returns the recorded failure reason for a failed job.
func (s *Store) FailureReason(lessonID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[lessonID]
	if !ok || j.status != StatusFailed {
		return "", fmt.Errorf("no failed job for lesson %d", lessonID)
	}
	return j.reason, nil
}
