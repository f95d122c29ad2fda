package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// eventRecorder drains a manager's events so the buffer never fills
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func record(m *Manager) *eventRecorder {
	r := &eventRecorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for ev := range m.Events() {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *eventRecorder) states() []models.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ConnectionState
	for _, ev := range r.events {
		if ev.Kind == EventState {
			out = append(out, ev.State)
		}
	}
	return out
}

func (r *eventRecorder) messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, ev := range r.events {
		if ev.Kind == EventMessage {
			out = append(out, ev.Data)
		}
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.RetryInterval = 5 * time.Millisecond
	cfg.PingInterval = 0
	cfg.HandshakeTimeout = time.Second
	return cfg
}

func TestManager_OpenRequestsStatusSnapshot(t *testing.T) {
	received := make(chan models.Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		received <- msg

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fleet_status","payload":[]}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewManager(testConfig(wsURL(srv)), logger.NewNopLogger())
	rec := record(m)
	require.NoError(t, m.Start(context.Background()))

	select {
	case msg := <-received:
		assert.Equal(t, constants.EventRequestStatus, msg.Type)
		assert.Empty(t, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("request_status was not sent on open")
	}

	require.Eventually(t, func() bool { return len(rec.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"type":"fleet_status","payload":[]}`, string(rec.messages()[0]))
	assert.Equal(t, models.StateOpen, m.State())

	require.NoError(t, m.Close())
	<-rec.done

	assert.Equal(t, []models.ConnectionState{
		models.StateConnecting,
		models.StateOpen,
		models.StateClosing,
		models.StateClosed,
	}, rec.states())
}

func TestManager_ReconnectBound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewManager(testConfig(wsURL(srv)), logger.NewNopLogger())
	rec := record(m)
	defer m.Close()
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, m.Exhausted, 2*time.Second, 5*time.Millisecond)

	// Leave room for an eleventh attempt that must never come
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(10), atomic.LoadInt32(&hits))
	assert.Equal(t, 10, m.Attempts())
	assert.Equal(t, models.StateClosed, m.State())
	assert.Equal(t, "Disconnected", m.Status().Status)
	assert.True(t, m.Status().Exhausted)

	connecting := 0
	for _, s := range rec.states() {
		if s == models.StateConnecting {
			connecting++
		}
	}
	assert.Equal(t, 10, connecting)
}

func TestManager_ManualReconnectAfterExhaustion(t *testing.T) {
	var accept atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accept.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := testConfig(wsURL(srv))
	cfg.MaxAttempts = 2
	m := NewManager(cfg, logger.NewNopLogger())
	record(m)
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, m.Exhausted, 2*time.Second, 5*time.Millisecond)

	accept.Store(true)
	require.NoError(t, m.Reconnect())

	require.Eventually(t, func() bool { return m.State() == models.StateOpen }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, m.Exhausted())
	assert.Equal(t, 0, m.Attempts())
}

func TestManager_ReconnectsAfterUnexpectedClose(t *testing.T) {
	var conns int32
	requests := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := atomic.AddInt32(&conns, 1)
		var msg models.Message
		if err := conn.ReadJSON(&msg); err == nil {
			requests <- msg.Type
		}
		if n == 1 {
			// Drop the first connection without a close handshake
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewManager(testConfig(wsURL(srv)), logger.NewNopLogger())
	record(m)
	defer m.Close()
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&conns) == 2 && m.State() == models.StateOpen
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, constants.EventRequestStatus, <-requests)
	assert.Equal(t, constants.EventRequestStatus, <-requests)
	assert.False(t, m.Exhausted())
}

func TestManager_SendRequiresOpen(t *testing.T) {
	m := NewManager(testConfig("ws://127.0.0.1:1"), logger.NewNopLogger())
	defer m.Close()

	err := m.Send(models.Message{Type: constants.EventLocationUpdate})
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, models.StateUninstantiated, m.State())
	assert.Equal(t, "Not initialized", m.Status().Status)
}

func TestManager_SendWritesTextFrame(t *testing.T) {
	frames := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- data
		}
	}))
	defer srv.Close()

	m := NewManager(testConfig(wsURL(srv)), logger.NewNopLogger())
	record(m)
	defer m.Close()
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.State() == models.StateOpen }, 2*time.Second, 5*time.Millisecond)

	msg, err := models.NewMessage(constants.EventStatusUpdate, models.StatusUpdatePayload{Status: "on_duty"})
	require.NoError(t, err)
	require.NoError(t, m.Send(msg))

	<-frames // request_status
	var got models.Message
	require.NoError(t, json.Unmarshal(<-frames, &got))
	assert.Equal(t, constants.EventStatusUpdate, got.Type)
	assert.JSONEq(t, `{"status":"on_duty","battery":null,"signal_strength":null}`, string(got.Payload))
}

func TestManager_CloseIsFinal(t *testing.T) {
	m := NewManager(testConfig("ws://127.0.0.1:1"), logger.NewNopLogger())
	rec := record(m)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	<-rec.done

	assert.Equal(t, models.StateClosed, m.State())
	assert.ErrorIs(t, m.Start(context.Background()), ErrClosed)
	assert.ErrorIs(t, m.Reconnect(), ErrClosed)
}

func TestManager_CloseCancelsPendingReconnect(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(wsURL(srv))
	cfg.RetryInterval = time.Hour
	m := NewManager(cfg, logger.NewNopLogger())
	record(m)
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = m.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a pending reconnect timer")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestConnectionState_Status(t *testing.T) {
	tests := []struct {
		state models.ConnectionState
		want  string
	}{
		{models.StateUninstantiated, "Not initialized"},
		{models.StateConnecting, "Connecting…"},
		{models.StateOpen, "Connected"},
		{models.StateClosing, "Closing…"},
		{models.StateClosed, "Disconnected"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Status())
		})
	}
}

// A cycle that ends while Reconnect starts the next one must not leave the
// new cycle reported as CLOSED.
func TestManager_ReconnectRacingCycleEnd(t *testing.T) {
	var requests int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		// Later handshakes hang so the new cycle stays CONNECTING
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(wsURL(srv))
	cfg.MaxAttempts = 1
	cfg.HandshakeTimeout = 10 * time.Second
	m := NewManager(cfg, logger.NewNopLogger())
	rec := record(m)
	defer m.Close()

	stop := make(chan struct{})
	spinning := make(chan struct{})
	go func() {
		defer close(spinning)
		for {
			select {
			case <-stop:
				return
			default:
				_ = m.Reconnect()
			}
		}
	}()

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&requests) >= 2 }, 2*time.Second, time.Millisecond)
	close(stop)
	<-spinning

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, models.StateConnecting, m.State())
	assert.False(t, m.Exhausted())
	states := rec.states()
	require.NotEmpty(t, states)
	assert.Equal(t, models.StateConnecting, states[len(states)-1])
}
