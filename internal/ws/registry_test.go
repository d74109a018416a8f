package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/logger"
)

// fakeConn implements interfaces.Connection with scripted write behavior.
type fakeConn struct {
	mu       sync.Mutex
	id       string
	userID   string
	role     string
	lessonID int64
	writeErr error
	events   []interface{}
	closed   bool
}

func (f *fakeConn) ID() string      { return f.id }
func (f *fakeConn) UserID() string  { return f.userID }
func (f *fakeConn) Role() string    { return f.role }
func (f *fakeConn) LessonID() int64 { return f.lessonID }

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.events = append(f.events, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newFakeConn(id string, lessonID int64) *fakeConn {
	return &fakeConn{id: id, userID: "user-" + id, role: "viewer", lessonID: lessonID}
}

func TestRegisterAndCount(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	require.NoError(t, r.Register(1, newFakeConn("a", 1)))
	require.NoError(t, r.Register(1, newFakeConn("b", 1)))
	require.NoError(t, r.Register(2, newFakeConn("c", 2)))

	assert.Equal(t, 2, r.Count(1))
	assert.Equal(t, 1, r.Count(2))
	assert.Equal(t, 0, r.Count(99))
}

func TestRegisterRejectsMismatchedLesson(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	err := r.Register(2, newFakeConn("a", 1))
	assert.ErrorIs(t, err, ErrLessonMismatch)

	assert.ErrorIs(t, r.Register(1, nil), ErrNilConnection)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	conn := newFakeConn("a", 1)
	require.NoError(t, r.Register(1, conn))

	r.Unregister(1, "a")
	r.Unregister(1, "a")
	assert.Equal(t, 0, r.Count(1))
}

func TestBroadcastReachesAllLessonConnections(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	a := newFakeConn("a", 1)
	b := newFakeConn("b", 1)
	other := newFakeConn("c", 2)
	require.NoError(t, r.Register(1, a))
	require.NoError(t, r.Register(1, b))
	require.NoError(t, r.Register(2, other))

	r.Broadcast(1, map[string]string{"type": "slide_changed"})

	assert.Equal(t, 1, a.eventCount())
	assert.Equal(t, 1, b.eventCount())
	assert.Equal(t, 0, other.eventCount(), "other lessons must not receive the event")
}

func TestBroadcastPrunesFailedConnection(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	healthy1 := newFakeConn("a", 1)
	broken := newFakeConn("b", 1)
	broken.writeErr = ErrWriteTimeout
	healthy2 := newFakeConn("c", 1)
	require.NoError(t, r.Register(1, healthy1))
	require.NoError(t, r.Register(1, broken))
	require.NoError(t, r.Register(1, healthy2))

	r.Broadcast(1, map[string]string{"type": "slide_changed"})

	assert.Equal(t, 1, healthy1.eventCount())
	assert.Equal(t, 1, healthy2.eventCount())
	assert.True(t, broken.isClosed())
	assert.Equal(t, 2, r.Count(1), "failed connection is removed from the set")

	// The pruned connection stays gone on the next broadcast.
	r.Broadcast(1, map[string]string{"type": "slide_changed"})
	assert.Equal(t, 2, healthy1.eventCount())
}

func TestSendTo(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	a := newFakeConn("a", 1)
	b := newFakeConn("b", 1)
	require.NoError(t, r.Register(1, a))
	require.NoError(t, r.Register(1, b))

	r.SendTo("a", map[string]string{"type": "keepalive_ack"})
	assert.Equal(t, 1, a.eventCount())
	assert.Equal(t, 0, b.eventCount())

	// Unknown target is a no-op.
	r.SendTo("zzz", map[string]string{"type": "keepalive_ack"})
}

func TestSendToPrunesFailedConnection(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	broken := newFakeConn("a", 1)
	broken.writeErr = ErrConnectionClosed
	require.NoError(t, r.Register(1, broken))

	r.SendTo("a", map[string]string{"type": "keepalive_ack"})
	assert.True(t, broken.isClosed())
	assert.Equal(t, 0, r.Count(1))
}

func TestCloseLesson(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	a := newFakeConn("a", 1)
	b := newFakeConn("b", 1)
	other := newFakeConn("c", 2)
	require.NoError(t, r.Register(1, a))
	require.NoError(t, r.Register(1, b))
	require.NoError(t, r.Register(2, other))

	r.CloseLesson(1)

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.False(t, other.isClosed())
	assert.Equal(t, 0, r.Count(1))
	assert.Equal(t, 1, r.Count(2))
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		conn := newFakeConn(string(rune('a'+i)), 1)
		go func() {
			defer wg.Done()
			_ = r.Register(1, conn)
		}()
		go func() {
			defer wg.Done()
			r.Broadcast(1, map[string]string{"type": "slide_changed"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, r.Count(1))
}

func TestStats(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.Register(1, newFakeConn("a", 1)))
	require.NoError(t, r.Register(2, newFakeConn("b", 2)))

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_connections"])
	assert.Equal(t, 2, stats["active_lessons"])
}
