package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connPair upgrades a loopback socket and returns the server-side wrapper and
// the raw client side.
func connPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *Connection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverSide <- NewConnection(raw, "alice", "viewer", 1, 8, time.Second)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := <-serverSide
	t.Cleanup(func() { _ = conn.Close() })
	return conn, client
}

func TestConnectionIdentity(t *testing.T) {
	conn, _ := connPair(t)
	assert.NotEmpty(t, conn.ID())
	assert.Equal(t, "alice", conn.UserID())
	assert.Equal(t, "viewer", conn.Role())
	assert.Equal(t, int64(1), conn.LessonID())
}

func TestWriteJSONDelivers(t *testing.T) {
	conn, client := connPair(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "keepalive_ack"}))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var ev map[string]string
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "keepalive_ack", ev["type"])
}

func TestWriteJSONAfterClose(t *testing.T) {
	conn, _ := connPair(t)
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.WriteJSON(map[string]string{"type": "x"}), ErrConnectionClosed)
}

func TestWriteJSONUnmarshalable(t *testing.T) {
	conn, _ := connPair(t)
	assert.ErrorIs(t, conn.WriteJSON(make(chan int)), ErrInvalidJSON)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, _ := connPair(t)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestUniqueConnectionIDs(t *testing.T) {
	a, _ := connPair(t)
	b, _ := connPair(t)
	assert.NotEqual(t, a.ID(), b.ID())
}
