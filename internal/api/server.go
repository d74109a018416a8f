// Package api exposes the REST management surface: lesson CRUD, deck
// processing triggers, and the Q&A history. Real-time traffic goes over the
// WebSocket layer; this package only handles HTTP and JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lectern/internal/bundle"
	"lectern/internal/logger"
	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// SessionController is the slice of the session layer the API needs.
type SessionController interface {
	End(ctx context.Context, lessonID int64) error
	Exists(lessonID int64) bool
	Count() int
}

// ConnectionStats exposes connection counts for lesson detail and health
// responses.
type ConnectionStats interface {
	Count(lessonID int64) int
	Stats() map[string]int
}

type Server struct {
	db       interfaces.DatabaseManager
	bundles  *bundle.Store
	sessions SessionController
	conns    ConnectionStats
	router   *http.ServeMux
	log      *logger.Logger
}

// NewServer builds the HTTP API with all routes registered.
func NewServer(db interfaces.DatabaseManager, bundles *bundle.Store, sessions SessionController, conns ConnectionStats, log *logger.Logger) *Server {
	s := &Server{
		db:       db,
		bundles:  bundles,
		sessions: sessions,
		conns:    conns,
		router:   http.NewServeMux(),
		log:      log.With("component", "api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/lessons", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleLessons))))
	s.router.Handle("/api/lessons/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleLessonByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createLesson(w, r)
	case http.MethodGet:
		s.listLessons(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLessonByID routes /api/lessons/{id} and its subresources
// (/process, /questions).
func (s *Server) handleLessonByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/lessons/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		s.sendError(w, "Lesson ID required", http.StatusBadRequest)
		return
	}
	lessonID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || lessonID <= 0 {
		s.sendError(w, "Invalid lesson ID", http.StatusBadRequest)
		return
	}

	if len(parts) > 1 && parts[1] != "" {
		switch parts[1] {
		case "process":
			if r.Method == http.MethodPost {
				s.processLesson(w, r, lessonID)
				return
			}
		case "questions":
			if r.Method == http.MethodGet {
				s.lessonQuestions(w, r, lessonID)
				return
			}
		case "status":
			if r.Method == http.MethodGet {
				s.processingStatus(w, r, lessonID)
				return
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getLesson(w, r, lessonID)
	case http.MethodDelete:
		s.endLesson(w, r, lessonID)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type CreateLessonRequest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	SourceRef string    `json:"source_ref,omitempty"`
}

type LessonResponse struct {
	Lesson          *types.Lesson `json:"lesson"`
	ConnectionCount int           `json:"connection_count"`
	SessionLive     bool          `json:"session_live"`
}

type ListLessonsResponse struct {
	Lessons []LessonResponse `json:"lessons"`
}

type ProcessResponse struct {
	LessonID int64  `json:"lesson_id"`
	Result   string `json:"result"`
}

type StatusResponse struct {
	LessonID int64  `json:"lesson_id"`
	Status   string `json:"status"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Reason   string `json:"reason,omitempty"`
}

type QuestionsResponse struct {
	LessonID  int64             `json:"lesson_id"`
	Questions []*types.Question `json:"questions"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Sessions    int            `json:"sessions"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// createLesson handles POST /api/lessons.
func (s *Server) createLesson(w http.ResponseWriter, r *http.Request) {
	var req CreateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.StartTime.IsZero() {
		s.sendError(w, "start_time is required", http.StatusBadRequest)
		return
	}

	lesson := &types.Lesson{
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SourceRef: req.SourceRef,
	}
	if err := s.db.CreateLesson(r.Context(), lesson); err != nil {
		if errors.Is(err, types.ErrInvalidLessonTitle) || errors.Is(err, types.ErrInvalidLessonWindow) {
			s.sendError(w, err.Error(), http.StatusBadRequest)
		} else {
			s.log.Error("lesson creation failed", "error", err)
			s.sendError(w, "Failed to create lesson", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(LessonResponse{Lesson: lesson})
}

// listLessons handles GET /api/lessons.
func (s *Server) listLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.db.ListLessons(r.Context())
	if err != nil {
		s.log.Error("lesson list failed", "error", err)
		s.sendError(w, "Failed to list lessons", http.StatusInternalServerError)
		return
	}

	resp := ListLessonsResponse{Lessons: make([]LessonResponse, len(lessons))}
	for i, lesson := range lessons {
		resp.Lessons[i] = LessonResponse{
			Lesson:          lesson,
			ConnectionCount: s.conns.Count(lesson.ID),
			SessionLive:     s.sessions.Exists(lesson.ID),
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// getLesson handles GET /api/lessons/{id}.
func (s *Server) getLesson(w http.ResponseWriter, r *http.Request, lessonID int64) {
	lesson, err := s.db.GetLesson(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, types.ErrLessonNotFound) {
			s.sendError(w, "Lesson not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get lesson", http.StatusInternalServerError)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(LessonResponse{
		Lesson:          lesson,
		ConnectionCount: s.conns.Count(lessonID),
		SessionLive:     s.sessions.Exists(lessonID),
	})
}

// endLesson handles DELETE /api/lessons/{id}: the explicit end used when a
// presenter finishes early. The session is torn down first so connected
// clients get lesson_ended, then the status is persisted.
func (s *Server) endLesson(w http.ResponseWriter, r *http.Request, lessonID int64) {
	lesson, err := s.db.GetLesson(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, types.ErrLessonNotFound) {
			s.sendError(w, "Lesson not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get lesson", http.StatusInternalServerError)
		}
		return
	}
	if lesson.Status == types.LessonStatusEnded {
		s.sendError(w, "Lesson already ended", http.StatusBadRequest)
		return
	}

	if err := s.sessions.End(r.Context(), lessonID); err != nil && !errors.Is(err, types.ErrSessionEnded) {
		s.log.Error("session teardown failed", "lesson_id", lessonID, "error", err)
	}
	if err := s.db.SetLessonStatus(r.Context(), lessonID, types.LessonStatusEnded); err != nil {
		s.log.Error("lesson status update failed", "lesson_id", lessonID, "error", err)
		s.sendError(w, "Failed to end lesson", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Lesson ended"})
}

// processLesson handles POST /api/lessons/{id}/process, kicking off deck
// conversion. Repeat requests while a job runs or after success are
// idempotent.
func (s *Server) processLesson(w http.ResponseWriter, r *http.Request, lessonID int64) {
	lesson, err := s.db.GetLesson(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, types.ErrLessonNotFound) {
			s.sendError(w, "Lesson not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get lesson", http.StatusInternalServerError)
		}
		return
	}

	result, err := s.bundles.RequestProcessing(context.Background(), lessonID, lesson.SourceRef)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ProcessResponse{LessonID: lessonID, Result: string(result)})
}

// processingStatus handles GET /api/lessons/{id}/status.
func (s *Server) processingStatus(w http.ResponseWriter, _ *http.Request, lessonID int64) {
	status, current, total, ok := s.bundles.Status(lessonID)
	if !ok {
		s.sendError(w, "No processing job for lesson", http.StatusNotFound)
		return
	}
	resp := StatusResponse{LessonID: lessonID, Status: status, Current: current, Total: total}
	if reason, err := s.bundles.FailureReason(lessonID); err == nil {
		resp.Reason = reason
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// lessonQuestions handles GET /api/lessons/{id}/questions.
func (s *Server) lessonQuestions(w http.ResponseWriter, r *http.Request, lessonID int64) {
	questions, err := s.db.GetLessonQuestions(r.Context(), lessonID)
	if err != nil {
		s.log.Error("question history fetch failed", "lesson_id", lessonID, "error", err)
		s.sendError(w, "Failed to get questions", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(QuestionsResponse{LessonID: lessonID, Questions: questions})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.db.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Database:    dbStatus,
		Sessions:    s.sessions.Count(),
		Connections: s.conns.Stats(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
