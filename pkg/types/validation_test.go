package types

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUserID(t *testing.T) {
	assert.True(t, IsValidUserID("alice"))
	assert.True(t, IsValidUserID("user_42"))
	assert.True(t, IsValidUserID("a-b-c"))

	assert.False(t, IsValidUserID(""))
	assert.False(t, IsValidUserID("has space"))
	assert.False(t, IsValidUserID("semi;colon"))
	assert.False(t, IsValidUserID(strings.Repeat("x", 51)))
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RolePresenter))
	assert.True(t, IsValidRole(RoleViewer))
	assert.False(t, IsValidRole("instructor"))
	assert.False(t, IsValidRole(""))
}

func TestLessonValidate(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	valid := Lesson{
		Title:     "Concurrency Patterns",
		Status:    LessonStatusScheduled,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
	assert.NoError(t, valid.Validate())

	noEnd := valid
	noEnd.EndTime = time.Time{}
	assert.NoError(t, noEnd.Validate(), "open-ended lessons are allowed")

	tests := []struct {
		name   string
		mutate func(*Lesson)
		want   error
	}{
		{"empty title", func(l *Lesson) { l.Title = "" }, ErrInvalidLessonTitle},
		{"title too long", func(l *Lesson) { l.Title = strings.Repeat("t", 201) }, ErrInvalidLessonTitle},
		{"zero start", func(l *Lesson) { l.StartTime = time.Time{} }, ErrInvalidLessonWindow},
		{"end before start", func(l *Lesson) { l.EndTime = start.Add(-time.Minute) }, ErrInvalidLessonWindow},
		{"end equals start", func(l *Lesson) { l.EndTime = start }, ErrInvalidLessonWindow},
		{"bad status", func(l *Lesson) { l.Status = "cancelled" }, ErrInvalidLessonStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.mutate(&l)
			assert.ErrorIs(t, l.Validate(), tt.want)
		})
	}
}

func TestLessonOverrun(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	l := Lesson{Status: LessonStatusLive, StartTime: start, EndTime: start.Add(time.Hour)}

	assert.False(t, l.Overrun(start.Add(30*time.Minute)))
	assert.True(t, l.Overrun(start.Add(2*time.Hour)))

	l.Status = LessonStatusScheduled
	assert.False(t, l.Overrun(start.Add(2*time.Hour)))

	openEnded := Lesson{Status: LessonStatusLive, StartTime: start}
	assert.False(t, openEnded.Overrun(start.Add(100*time.Hour)))
}
