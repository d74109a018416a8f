package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one WebSocket client link. All writes go through a single
// writer goroutine so concurrent broadcasts never race on the socket.
type Connection struct {
	id        string
	userID    string
	role      string
	lessonID  int64
	conn      *websocket.Conn
	writeCh   chan []byte
	writeWait time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket for an authenticated principal and
// starts the writer goroutine.
func NewConnection(conn *websocket.Conn, userID, role string, lessonID int64, bufferSize int, writeWait time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if writeWait <= 0 {
		writeWait = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:        uuid.New().String(),
		userID:    userID,
		role:      role,
		lessonID:  lessonID,
		conn:      conn,
		writeCh:   make(chan []byte, bufferSize),
		writeWait: writeWait,
		ctx:       ctx,
		cancel:    cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues an event for delivery. Returns ErrConnectionClosed after
// Close, and ErrWriteTimeout when the client cannot drain its buffer in time.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeWait):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the writer goroutine and the underlying socket. Safe to
// call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) ID() string      { return c.id }
func (c *Connection) UserID() string  { return c.userID }
func (c *Connection) Role() string    { return c.role }
func (c *Connection) LessonID() int64 { return c.lessonID }
