package bundle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/logger"
	"lectern/internal/render"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

type recorder struct {
	mu     sync.Mutex
	events []interface{}
}

func (r *recorder) Broadcast(_ int64, event interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.events...)
}

func waitForStatus(t *testing.T, s *Store, lessonID int64, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, _, _, ok := s.Status(lessonID); ok && status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _, _, _ := s.Status(lessonID)
	t.Fatalf("lesson %d never reached status %q (last %q)", lessonID, want, status)
}

func TestRequestProcessingRequiresSource(t *testing.T) {
	s := NewStore(&render.Fake{}, &recorder{}, logger.NewNop())
	_, err := s.RequestProcessing(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestProcessingHappyPath(t *testing.T) {
	rec := &recorder{}
	s := NewStore(&render.Fake{SlideCount: 4}, rec, logger.NewNop())

	result, err := s.RequestProcessing(context.Background(), 1, "uploads/deck.pdf")
	require.NoError(t, err)
	assert.Equal(t, Started, result)

	waitForStatus(t, s, 1, StatusReady)

	b, err := s.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Total())

	var completed protocol.ProcessingCompleted
	require.Eventually(t, func() bool {
		for _, e := range rec.snapshot() {
			if ev, ok := e.(protocol.ProcessingCompleted); ok {
				completed = ev
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, completed.TotalSlides)

	events := rec.snapshot()
	require.NotEmpty(t, events)
	_, ok := events[0].(protocol.ProcessingStarted)
	assert.True(t, ok, "first event is processing_started")

	// Progress events arrive in order and never decrease.
	prev := 0
	for _, e := range events {
		if p, ok := e.(protocol.ProcessingProgress); ok {
			assert.GreaterOrEqual(t, p.Current, prev)
			prev = p.Current
		}
	}
	assert.Equal(t, 4, prev)
}

func TestBundleBeforeReady(t *testing.T) {
	s := NewStore(&render.Fake{}, &recorder{}, logger.NewNop())
	_, err := s.Bundle(1)
	assert.ErrorIs(t, err, types.ErrNotReady)
}

func TestConcurrentRequestsRenderOnce(t *testing.T) {
	fake := &render.Fake{SlideCount: 2, Delay: make(chan struct{})}
	s := NewStore(fake, &recorder{}, logger.NewNop())

	first, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	assert.Equal(t, Started, first)

	var wg sync.WaitGroup
	results := make(chan Result, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
			require.NoError(t, err)
			results <- r
		}()
	}
	wg.Wait()
	close(results)
	for r := range results {
		assert.Equal(t, AlreadyRunning, r)
	}

	close(fake.Delay)
	waitForStatus(t, s, 1, StatusReady)
	assert.Equal(t, int32(1), fake.Calls.Load(), "renderer runs exactly once")
}

func TestRequestAfterReadyIsIdempotent(t *testing.T) {
	fake := &render.Fake{SlideCount: 2}
	s := NewStore(fake, &recorder{}, logger.NewNop())

	_, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	waitForStatus(t, s, 1, StatusReady)

	result, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	assert.Equal(t, AlreadyReady, result)
	assert.Equal(t, int32(1), fake.Calls.Load())
}

func TestFailedProcessingIsTerminal(t *testing.T) {
	rec := &recorder{}
	fake := &render.Fake{Err: errors.New("conversion crashed")}
	s := NewStore(fake, rec, logger.NewNop())

	_, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	waitForStatus(t, s, 1, StatusFailed)

	_, err = s.Bundle(1)
	assert.ErrorIs(t, err, types.ErrNotReady)

	reason, err := s.FailureReason(1)
	require.NoError(t, err)
	assert.Equal(t, "conversion crashed", reason)

	var errEvent protocol.ProcessingError
	require.Eventually(t, func() bool {
		for _, e := range rec.snapshot() {
			if ev, ok := e.(protocol.ProcessingError); ok {
				errEvent = ev
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "conversion crashed", errEvent.Message)

	// The store never retries on its own; Calls stays at one until an
	// explicit new request arrives.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fake.Calls.Load())
}

func TestExplicitRetryAfterFailure(t *testing.T) {
	fake := &render.Fake{Err: errors.New("boom")}
	s := NewStore(fake, &recorder{}, logger.NewNop())

	_, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	waitForStatus(t, s, 1, StatusFailed)

	fake.Err = nil
	fake.SlideCount = 2
	result, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	assert.Equal(t, Started, result)
	waitForStatus(t, s, 1, StatusReady)

	b, err := s.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Total())
}

func TestReadyBundleIsStable(t *testing.T) {
	fake := &render.Fake{SlideCount: 3}
	s := NewStore(fake, &recorder{}, logger.NewNop())

	_, err := s.RequestProcessing(context.Background(), 1, "deck.pdf")
	require.NoError(t, err)
	waitForStatus(t, s, 1, StatusReady)

	first, err := s.Bundle(1)
	require.NoError(t, err)

	// A late MarkReady cannot replace a published bundle.
	s.MarkReady(1, &types.SlideBundle{LessonID: 1, Slides: []types.Slide{{Index: 0}}})

	again, err := s.Bundle(1)
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestLessonsProcessIndependently(t *testing.T) {
	fake := &render.Fake{SlideCount: 2}
	s := NewStore(fake, &recorder{}, logger.NewNop())

	_, err := s.RequestProcessing(context.Background(), 1, "a.pdf")
	require.NoError(t, err)
	_, err = s.RequestProcessing(context.Background(), 2, "b.pdf")
	require.NoError(t, err)

	waitForStatus(t, s, 1, StatusReady)
	waitForStatus(t, s, 2, StatusReady)
	assert.Equal(t, int32(2), fake.Calls.Load())
}
