// Package database implements lesson and question persistence on SQLite.
// Writes are funneled through a single writer goroutine; SQLite handles
// concurrent reads well but write contention poorly.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lectern/internal/logger"
	"lectern/pkg/types"
)

// Config holds connection settings for the SQLite database.
type Config struct {
	Path            string
	MaxConnections  int
	ConnMaxLifetime time.Duration
}

// Manager implements interfaces.DatabaseManager.
type Manager struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
	log      *logger.Logger
}

type writeOp struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies the schema, and starts the writer
// goroutine.
func NewManager(cfg *Config, log *logger.Logger) (*Manager, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := &Manager{
		db:       db,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
		log:      log.With("component", "database"),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

// writeLoop processes all writes in one goroutine, retrying once after a
// short delay on failure.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeCh:
			err := op.operation(m.db)
			if err != nil {
				m.log.Warn("database write failed, retrying", "error", err)
				time.Sleep(time.Second)
				err = op.operation(m.db)
				if err != nil {
					m.log.Error("database write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case m.writeCh <- writeOp{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateLesson persists a new lesson and assigns its generated ID.
func (m *Manager) CreateLesson(ctx context.Context, lesson *types.Lesson) error {
	if lesson.Status == "" {
		lesson.Status = types.LessonStatusScheduled
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}
	if err := lesson.Validate(); err != nil {
		return err
	}

	return m.executeWrite(func(db *sql.DB) error {
		var endTime interface{}
		if !lesson.EndTime.IsZero() {
			endTime = lesson.EndTime
		}
		res, err := db.Exec(
			`INSERT INTO lessons (title, status, start_time, end_time, source_ref, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			lesson.Title, lesson.Status, lesson.StartTime, endTime, lesson.SourceRef, lesson.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("lesson id: %w", err)
		}
		lesson.ID = id
		return nil
	})
}

// GetLesson retrieves a lesson by ID.
func (m *Manager) GetLesson(ctx context.Context, lessonID int64) (*types.Lesson, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, title, status, start_time, end_time, source_ref, created_at FROM lessons WHERE id = ?`,
		lessonID,
	)
	lesson, err := scanLesson(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson %d: %w", lessonID, err)
	}
	return lesson, nil
}

// ListLessons returns all lessons ordered by start time.
func (m *Manager) ListLessons(ctx context.Context) ([]*types.Lesson, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, title, status, start_time, end_time, source_ref, created_at FROM lessons ORDER BY start_time`,
	)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

// SetLessonStatus transitions a lesson's lifecycle status.
func (m *Manager) SetLessonStatus(ctx context.Context, lessonID int64, status string) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.Exec(`UPDATE lessons SET status = ? WHERE id = ?`, status, lessonID)
		if err != nil {
			return fmt.Errorf("update lesson status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return types.ErrLessonNotFound
		}
		return nil
	})
}

// DueForStart returns scheduled lessons whose start time has passed.
func (m *Manager) DueForStart(ctx context.Context, now time.Time) ([]*types.Lesson, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, title, status, start_time, end_time, source_ref, created_at
		 FROM lessons WHERE status = ? AND start_time <= ? ORDER BY start_time`,
		types.LessonStatusScheduled, now,
	)
	if err != nil {
		return nil, fmt.Errorf("due for start: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

// DueForEnd returns live lessons whose end time has passed.
func (m *Manager) DueForEnd(ctx context.Context, now time.Time) ([]*types.Lesson, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, title, status, start_time, end_time, source_ref, created_at
		 FROM lessons WHERE status = ? AND end_time IS NOT NULL AND end_time <= ? ORDER BY end_time`,
		types.LessonStatusLive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("due for end: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

// StoreQuestion persists one asked-and-answered question.
func (m *Manager) StoreQuestion(ctx context.Context, q *types.Question) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO questions (id, lesson_id, asker_id, raw_text, audio_ref, transcript, answer, found, relevance, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.LessonID, q.AskerID, q.RawText, q.AudioRef, q.Transcript, q.Answer, q.Found, q.Relevance, q.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		return nil
	})
}

// GetLessonQuestions returns a lesson's Q&A history ordered by time.
func (m *Manager) GetLessonQuestions(ctx context.Context, lessonID int64) ([]*types.Question, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, lesson_id, asker_id, raw_text, audio_ref, transcript, answer, found, relevance, created_at
		 FROM questions WHERE lesson_id = ? ORDER BY created_at`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("lesson questions: %w", err)
	}
	defer rows.Close()

	var questions []*types.Question
	for rows.Next() {
		q := &types.Question{}
		if err := rows.Scan(&q.ID, &q.LessonID, &q.AskerID, &q.RawText, &q.AudioRef, &q.Transcript, &q.Answer, &q.Found, &q.Relevance, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// HealthCheck verifies connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close stops the writer goroutine and closes the connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()
	return m.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLesson(row rowScanner) (*types.Lesson, error) {
	lesson := &types.Lesson{}
	var endTime sql.NullTime
	if err := row.Scan(&lesson.ID, &lesson.Title, &lesson.Status, &lesson.StartTime, &endTime, &lesson.SourceRef, &lesson.CreatedAt); err != nil {
		return nil, err
	}
	if endTime.Valid {
		lesson.EndTime = endTime.Time
	}
	return lesson, nil
}

func scanLessons(rows *sql.Rows) ([]*types.Lesson, error) {
	var lessons []*types.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}
