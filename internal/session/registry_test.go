package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/answer"
	"lectern/internal/logger"
	"lectern/internal/qa"
	"lectern/internal/transcribe"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

// fakeConns records fan-out traffic for assertions.
type fakeConns struct {
	mu            sync.Mutex
	events        []interface{}
	sent          map[string][]interface{}
	closedLessons []int64
}

func newFakeConns() *fakeConns {
	return &fakeConns{sent: make(map[string][]interface{})}
}

func (f *fakeConns) Broadcast(_ int64, event interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeConns) SendTo(connID string, event interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connID] = append(f.sent[connID], event)
}

func (f *fakeConns) CloseLesson(lessonID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedLessons = append(f.closedLessons, lessonID)
}

func (f *fakeConns) broadcasts() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.events...)
}

type fakeLessons struct {
	mu      sync.Mutex
	lessons map[int64]*types.Lesson
}

func (f *fakeLessons) CreateLesson(_ context.Context, l *types.Lesson) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lessons[l.ID] = l
	return nil
}

func (f *fakeLessons) GetLesson(_ context.Context, id int64) (*types.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lessons[id]
	if !ok {
		return nil, types.ErrLessonNotFound
	}
	return l, nil
}

func (f *fakeLessons) ListLessons(context.Context) ([]*types.Lesson, error) { return nil, nil }

func (f *fakeLessons) SetLessonStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.lessons[id]; ok {
		l.Status = status
		return nil
	}
	return types.ErrLessonNotFound
}

func (f *fakeLessons) DueForStart(context.Context, time.Time) ([]*types.Lesson, error) {
	return nil, nil
}

func (f *fakeLessons) DueForEnd(context.Context, time.Time) ([]*types.Lesson, error) {
	return nil, nil
}

type fakeBundles struct{ bundle *types.SlideBundle }

func (f *fakeBundles) Bundle(int64) (*types.SlideBundle, error) {
	if f.bundle == nil {
		return nil, types.ErrNotReady
	}
	return f.bundle, nil
}

type fakeQuestions struct {
	mu     sync.Mutex
	stored []*types.Question
}

func (f *fakeQuestions) StoreQuestion(_ context.Context, q *types.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, q)
	return nil
}

func (f *fakeQuestions) GetLessonQuestions(context.Context, int64) ([]*types.Question, error) {
	return nil, nil
}

type testEnv struct {
	registry  *Registry
	conns     *fakeConns
	lessons   *fakeLessons
	bundles   *fakeBundles
	questions *fakeQuestions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conns := newFakeConns()
	lessons := &fakeLessons{lessons: map[int64]*types.Lesson{
		1: {ID: 1, Title: "Intro to Go", Status: types.LessonStatusLive, StartTime: time.Now()},
		2: {ID: 2, Title: "Done Deal", Status: types.LessonStatusEnded, StartTime: time.Now()},
	}}
	bundles := &fakeBundles{bundle: &types.SlideBundle{
		LessonID: 1,
		Slides:   []types.Slide{{Index: 0}, {Index: 1}, {Index: 2}},
	}}
	questions := &fakeQuestions{}
	coordinator := qa.NewCoordinator(&transcribe.Fake{}, answer.NewFake(), questions, conns, logger.NewNop())
	registry := NewRegistry(conns, bundles, lessons, coordinator, logger.NewNop())
	return &testEnv{registry: registry, conns: conns, lessons: lessons, bundles: bundles, questions: questions}
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	env := newTestEnv(t)

	s1, err := env.registry.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	s2, err := env.registry.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, env.registry.Count())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	sessions := make([]*Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := env.registry.GetOrCreate(context.Background(), 1)
			require.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s, "all concurrent callers get the one instance")
	}
	assert.Equal(t, 1, env.registry.Count())
}

func TestGetOrCreateUnknownLesson(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.registry.GetOrCreate(context.Background(), 99)
	assert.ErrorIs(t, err, types.ErrLessonNotFound)
}

func TestGetOrCreateEndedLesson(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.registry.GetOrCreate(context.Background(), 2)
	assert.ErrorIs(t, err, types.ErrSessionEnded)
}

func TestEndSealsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.registry.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, env.registry.End(context.Background(), 1))

	assert.True(t, s.Sealed())
	assert.False(t, env.registry.Exists(1))
	assert.Contains(t, env.conns.closedLessons, int64(1))

	sawEnded := false
	for _, ev := range env.conns.broadcasts() {
		if le, ok := ev.(protocol.LessonEvent); ok && le.Type == protocol.EventLessonEnded {
			sawEnded = true
		}
	}
	assert.True(t, sawEnded)
}

func TestEndWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	err := env.registry.End(context.Background(), 1)
	assert.ErrorIs(t, err, types.ErrSessionEnded)
}

func TestShutdownSealsAllSessions(t *testing.T) {
	env := newTestEnv(t)
	s1, err := env.registry.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	env.registry.Shutdown()
	assert.True(t, s1.Sealed())
	assert.Equal(t, 0, env.registry.Count())
	assert.Contains(t, env.conns.closedLessons, int64(1))
}
