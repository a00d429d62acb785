// ABOUTME: Tests for the websocket status feed
// ABOUTME: Connects real websocket clients to an httptest server
package statusfeed

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
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/transport"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestClientReceivesHelloAndStatuses(t *testing.T) {
	f := New(Config{Logger: zap.NewNop()})
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	msg := readJSON(t, conn)
	assert.Equal(t, "hello", msg["kind"])
	assert.NotEmpty(t, msg["client_id"])

	require.Eventually(t, func() bool { return f.Clients() == 1 }, time.Second, 10*time.Millisecond)

	f.Publish(*transport.Listening(55555))
	msg = readJSON(t, conn)
	assert.Equal(t, "listening", msg["kind"])
	assert.Equal(t, float64(55555), msg["port"])
}

func TestLateClientGetsLastStatus(t *testing.T) {
	f := New(Config{})
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	f.Publish(*transport.Connected())
	f.Publish(*transport.PreviewSample([]byte{0, 0, 0, 0}))

	conn := dial(t, srv)
	readJSON(t, conn)

	msg := readJSON(t, conn)
	assert.Equal(t, "connected", msg["kind"])
}

func TestRequestsAreForwarded(t *testing.T) {
	f := New(Config{})
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"command":"connect","transport":"udp"}`)))

	select {
	case req := <-f.Requests():
		assert.Equal(t, "connect", req.Command)
		assert.Equal(t, "udp", req.Transport)
		assert.NotEmpty(t, req.ClientID)
	case <-time.After(2 * time.Second):
		t.Fatal("no request forwarded")
	}
}

func TestOutputRequestFields(t *testing.T) {
	f := New(Config{})
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"command":"output","format":"f32","channels":2,"sample_rate":44100,"device":"Speakers"}`)))

	select {
	case req := <-f.Requests():
		assert.Equal(t, "output", req.Command)
		assert.Equal(t, "f32", req.Format)
		assert.Equal(t, 2, req.Channels)
		assert.Equal(t, 44100, req.SampleRate)
		assert.Equal(t, "Speakers", req.Device)
	case <-time.After(2 * time.Second):
		t.Fatal("no request forwarded")
	}
}

func TestMetricsRoute(t *testing.T) {
	f := New(Config{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})})

	rec := httptest.NewRecorder()
	f.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "ok", rec.Body.String())
}
