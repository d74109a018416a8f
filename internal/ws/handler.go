package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"lectern/internal/config"
	"lectern/internal/logger"
	"lectern/pkg/interfaces"
	"lectern/pkg/protocol"
	"lectern/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the client origin list is known.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Dispatcher is the slice of the session layer the connection handler needs:
// attaching a client to a lesson and executing its decoded commands.
type Dispatcher interface {
	Join(ctx context.Context, lessonID int64) error
	Dispatch(ctx context.Context, conn interfaces.Connection, cmd protocol.Command) error
}

// Handler upgrades HTTP requests to WebSocket connections, authenticates the
// query parameters, and runs the per-connection read loop.
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	questions  interfaces.QuestionStore
	limiter    *RateLimiter
	cfg        config.WebSocketConfig
	log        *logger.Logger
}

// NewHandler creates a WebSocket handler with its collaborators injected.
func NewHandler(registry *Registry, dispatcher Dispatcher, questions interfaces.QuestionStore, cfg config.WebSocketConfig, log *logger.Logger) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		questions:  questions,
		limiter:    NewRateLimiter(100),
		cfg:        cfg,
		log:        log.With("component", "ws.handler"),
	}
}

// ServeHTTP validates the handshake parameters, joins the lesson's session,
// and hands the socket to the read loop. Validation happens before the
// upgrade so rejected requests get proper HTTP status codes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	role := r.URL.Query().Get("role")
	lessonIDStr := r.URL.Query().Get("lesson_id")

	if userID == "" || role == "" || lessonIDStr == "" {
		http.Error(w, "missing required query parameters: user_id, role, lesson_id", http.StatusBadRequest)
		return
	}
	if !types.IsValidUserID(userID) {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}
	if !types.IsValidRole(role) {
		http.Error(w, "invalid role: must be 'presenter' or 'viewer'", http.StatusBadRequest)
		return
	}
	lessonID, err := parseLessonID(lessonIDStr)
	if err != nil {
		http.Error(w, "invalid lesson_id", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.Join(r.Context(), lessonID); err != nil {
		switch protocol.CodeFor(err) {
		case "LESSON_NOT_FOUND":
			http.Error(w, "lesson not found", http.StatusNotFound)
		case "SESSION_ENDED":
			http.Error(w, "lesson has ended", http.StatusGone)
		default:
			http.Error(w, "failed to join lesson", http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	wsConn := NewConnection(conn, userID, role, lessonID, h.cfg.BufferSize, h.cfg.WriteTimeout)
	if err := h.registry.Register(lessonID, wsConn); err != nil {
		h.log.Error("connection registration failed", "error", err)
		_ = wsConn.Close()
		return
	}

	h.log.Info("client connected", "lesson_id", lessonID, "user_id", userID, "role", role, "conn_id", wsConn.ID())

	go h.replayQuestionHistory(wsConn)
	go h.readLoop(wsConn)
}

// replayQuestionHistory sends the lesson's stored Q&A exchanges to a newly
// attached client so late joiners see earlier questions.
func (h *Handler) replayQuestionHistory(conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	questions, err := h.questions.GetLessonQuestions(ctx, conn.LessonID())
	if err != nil {
		h.log.Warn("question history unavailable", "lesson_id", conn.LessonID(), "error", err)
		return
	}
	for _, q := range questions {
		if err := conn.WriteJSON(protocol.NewQuestionAsked(q)); err != nil {
			return
		}
		if err := conn.WriteJSON(protocol.NewAnswerReady(q)); err != nil {
			return
		}
	}
}

// readLoop reads client frames until the connection drops, decoding each into
// a command and dispatching it. Rejections go back to the issuing connection
// as error events; they never tear the connection down.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn.LessonID(), conn.ID())
		h.limiter.Forget(conn.ID())
		_ = conn.Close()
		h.log.Info("client disconnected", "lesson_id", conn.LessonID(), "conn_id", conn.ID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if !h.limiter.Allow(conn.ID()) {
			h.sendError(conn, types.ErrRateLimited)
			continue
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			h.sendError(conn, err)
			continue
		}

		if err := h.dispatcher.Dispatch(context.Background(), conn, cmd); err != nil {
			h.sendError(conn, err)
		}
	}
}

func (h *Handler) sendError(conn *Connection, err error) {
	h.log.Debug("command rejected", "conn_id", conn.ID(), "code", protocol.CodeFor(err), "error", err)
	if werr := conn.WriteJSON(protocol.NewErrorEvent(err)); werr != nil {
		h.log.Warn("error event delivery failed", "conn_id", conn.ID(), "error", werr)
	}
}

func parseLessonID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("lesson id must be positive")
	}
	return id, nil
}
