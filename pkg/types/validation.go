package types

import (
	"regexp"
	"time"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements.
// 1-50 character limit keeps IDs database- and display-friendly.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRole checks if the role is one of the allowed connection roles.
func IsValidRole(role string) bool {
	return role == RolePresenter || role == RoleViewer
}

// Validate ensures the lesson meets all requirements before persistence.
func (l *Lesson) Validate() error {
	if len(l.Title) < 1 || len(l.Title) > 200 {
		return ErrInvalidLessonTitle
	}
	if l.StartTime.IsZero() {
		return ErrInvalidLessonWindow
	}
	if !l.EndTime.IsZero() && !l.EndTime.After(l.StartTime) {
		return ErrInvalidLessonWindow
	}
	switch l.Status {
	case LessonStatusScheduled, LessonStatusLive, LessonStatusEnded:
	default:
		return ErrInvalidLessonStatus
	}
	return nil
}

// Overrun reports whether a live lesson has run past its end time.
func (l *Lesson) Overrun(now time.Time) bool {
	return l.Status == LessonStatusLive && !l.EndTime.IsZero() && now.After(l.EndTime)
}
