package database

import (
	"database/sql"
	"fmt"
)

const createLessonsTable = `
CREATE TABLE IF NOT EXISTS lessons (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'scheduled',
	start_time  DATETIME NOT NULL,
	end_time    DATETIME,
	source_ref  TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);`

const createQuestionsTable = `
CREATE TABLE IF NOT EXISTS questions (
	id          TEXT PRIMARY KEY,
	lesson_id   INTEGER NOT NULL,
	asker_id    TEXT NOT NULL DEFAULT '',
	raw_text    TEXT NOT NULL DEFAULT '',
	audio_ref   TEXT NOT NULL DEFAULT '',
	transcript  TEXT NOT NULL DEFAULT '',
	answer      TEXT NOT NULL DEFAULT '',
	found       INTEGER NOT NULL DEFAULT 0,
	relevance   REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	FOREIGN KEY (lesson_id) REFERENCES lessons(id)
);`

const createQuestionIndex = `
CREATE INDEX IF NOT EXISTS idx_questions_lesson ON questions(lesson_id, created_at);`

const createLessonStatusIndex = `
CREATE INDEX IF NOT EXISTS idx_lessons_status ON lessons(status, start_time);`

// ensureSchema creates the tables and indexes if they do not exist yet.
func ensureSchema(db *sql.DB) error {
	for _, stmt := range []string{
		createLessonsTable,
		createQuestionsTable,
		createQuestionIndex,
		createLessonStatusIndex,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
