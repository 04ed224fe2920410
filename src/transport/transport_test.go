package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/wstransceiver/src/queue"
	"github.com/square-key-labs/wstransceiver/src/reconnect"
)

func testReconnect() *reconnect.Controller {
	return reconnect.New(reconnect.Config{
		Enabled:        true,
		InitialDelayMs: 50,
		MaxBackoffMs:   200,
		MaxReconnects:  0,
	})
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// TestWorker_ConnectAndReceiveBinary covers the inbound binary path:
// bytes arrive on the websocket and land in the receive queue.
func TestWorker_ConnectAndReceiveBinary(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.WriteMessage(websocket.BinaryMessage, []byte("hello"))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	q := queue.New(10)
	w := New(wsURL(srv), q, testReconnect())
	w.Start()
	defer w.Stop()

	require.True(t, w.WaitConnected(2*time.Second))

	require.Eventually(t, func() bool { return q.Len() > 0 }, time.Second, 5*time.Millisecond)
	f, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "hello", string(f.Data))
}

// TestWorker_ClearControlMessage covers the text control path. OnClear
// also fires once on connect, so the clear message is the second call;
// reconnect is disabled so no later connect can supply that call.
func TestWorker_ClearControlMessage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"clear"}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	q := queue.New(10)
	w := New(wsURL(srv), q, reconnect.New(reconnect.Config{Enabled: false}))

	var mu sync.Mutex
	clears := 0
	w.OnClear = func() {
		mu.Lock()
		clears++
		mu.Unlock()
	}

	w.Start()
	defer w.Stop()

	require.True(t, w.WaitConnected(2*time.Second))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return clears == 2
	}, time.Second, 5*time.Millisecond)
}

// TestWorker_UnknownControlTypeIgnored ensures a non-"clear" control
// message does not invoke OnClear: the only call is the one made on
// connect.
func TestWorker_UnknownControlTypeIgnored(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		time.Sleep(150 * time.Millisecond)
	}))
	defer srv.Close()

	q := queue.New(10)
	w := New(wsURL(srv), q, testReconnect())

	var mu sync.Mutex
	clears := 0
	w.OnClear = func() {
		mu.Lock()
		clears++
		mu.Unlock()
	}

	w.Start()
	defer w.Stop()

	require.True(t, w.WaitConnected(2*time.Second))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, clears, "unknown control type must not trigger clear beyond the connect-time call")
}

// TestWorker_SendDropsWhenDisconnected covers the sink-chain contract of
// §4.3.1: Send is a benign success when there is no live connection.
func TestWorker_SendDropsWhenDisconnected(t *testing.T) {
	q := queue.New(10)
	w := New("ws://127.0.0.1:1/unreachable", q, testReconnect())
	err := w.Send([]byte("audio"))
	assert.NoError(t, err)
}

// TestWorker_OutboundEcho exercises the outbound Send path end-to-end
// against a server that echoes what it receives.
func TestWorker_OutboundEcho(t *testing.T) {
	received := make(chan []byte, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	q := queue.New(10)
	w := New(wsURL(srv), q, testReconnect())
	w.Start()
	defer w.Stop()

	require.True(t, w.WaitConnected(2*time.Second))
	require.NoError(t, w.Send([]byte("ping")))

	select {
	case data := <-received:
		assert.Equal(t, "ping", string(data))
	case <-time.After(time.Second):
		t.Fatal("server never received outbound frame")
	}
}

// TestWorker_StopInterruptsBackoff covers spec.md §5: Stop() must not
// block for the full reconnect backoff while the worker is sleeping
// between dial attempts against an unreachable server.
func TestWorker_StopInterruptsBackoff(t *testing.T) {
	q := queue.New(10)
	rc := reconnect.New(reconnect.Config{
		Enabled:        true,
		InitialDelayMs: 30000,
		MaxBackoffMs:   30000,
		MaxReconnects:  0,
	})
	w := New("ws://127.0.0.1:1/unreachable", q, rc)
	w.Start()

	require.Eventually(t, func() bool { return rc.AttemptsMade() > 0 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked for the full backoff duration")
	}
}
