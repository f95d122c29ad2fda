package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var (
	// ErrNotOpen is returned by Send while the connection is not OPEN
	ErrNotOpen = errors.New("stream connection is not open")
	// ErrClosed is returned once the manager has been closed
	ErrClosed = errors.New("stream manager is closed")
)

// EventKind distinguishes the entries of the event stream
type EventKind int

const (
	// EventState reports a connection state transition
	EventState EventKind = iota
	// EventMessage carries one inbound text frame, uninterpreted
	EventMessage
)

// Event is one entry of the ordered stream returned by Manager.Events
type Event struct {
	Kind  EventKind
	State models.ConnectionState
	Data  []byte
}

// Config holds the connection policy of a Manager
type Config struct {
	URL              string
	Header           http.Header
	RetryInterval    time.Duration // fixed delay between attempts
	MaxAttempts      int           // consecutive failed attempts before giving up
	PingInterval     time.Duration // zero disables heartbeats
	HandshakeTimeout time.Duration
	EventBuffer      int
}

// DefaultConfig returns the default policy for the given endpoint
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		RetryInterval:    3 * time.Second,
		MaxAttempts:      10,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		EventBuffer:      64,
	}
}

// ConfigFromModel builds a Config from the stream section of the app config
func ConfigFromModel(url string, cfg models.StreamConfig) Config {
	c := DefaultConfig(url)
	if cfg.RetryInterval > 0 {
		c.RetryInterval = cfg.RetryInterval
	}
	if cfg.MaxAttempts > 0 {
		c.MaxAttempts = cfg.MaxAttempts
	}
	c.PingInterval = cfg.PingInterval
	if cfg.HandshakeTimeout > 0 {
		c.HandshakeTimeout = cfg.HandshakeTimeout
	}
	return c
}

// Manager owns one streaming connection to a tracking endpoint. It runs
// the connection state machine, reconnects with a fixed interval up to a
// bounded number of attempts and requests a full snapshot on every open.
type Manager struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *logger.ZapLogger

	mu        sync.RWMutex
	base      context.Context
	cancel    context.CancelFunc
	state     models.ConnectionState
	conn      *websocket.Conn
	attempts  int
	exhausted bool
	running   bool
	closed    bool

	writeMu sync.Mutex
	emitMu  sync.Mutex
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a manager in the UNINSTANTIATED state
func NewManager(cfg Config, l *logger.ZapLogger) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if l == nil {
		l = logger.GetGlobalLogger()
	}

	return &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: l,
		state:  models.StateUninstantiated,
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// Events returns the ordered stream of state transitions and inbound
// frames. It is closed by Close.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Start begins connecting in the background. Calling it again is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.base != nil {
		return nil
	}
	m.base = ctx
	m.startLocked()
	return nil
}

// Reconnect starts a fresh connection cycle with a reset attempt counter.
// It is a no-op while a cycle is already running.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.running {
		return nil
	}
	if m.base == nil {
		m.base = context.Background()
	}
	m.attempts = 0
	m.exhausted = false
	m.logger.Info("Manual reconnect requested", logger.String("url", m.cfg.URL))
	m.startLocked()
	return nil
}

func (m *Manager) startLocked() {
	ctx, cancel := context.WithCancel(m.base)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(ctx, cancel)
}

// Close closes the connection, cancels any pending reconnect and closes
// the event stream. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		m.setState(models.StateClosing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			m.logger.Debug("Failed to write close frame", logger.Err(err))
		}
	}
	if cancel != nil {
		cancel()
	}
	close(m.done)
	m.wg.Wait()

	m.setState(models.StateClosed)
	close(m.events)
	return nil
}

// State returns the current connection state
func (m *Manager) State() models.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Exhausted reports whether automatic reconnection gave up
func (m *Manager) Exhausted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exhausted
}

// Attempts returns the consecutive failed attempts of the current cycle
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Status returns the connection summary shown to users
func (m *Manager) Status() models.ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ConnectionStatus{
		State:     m.state,
		Status:    m.state.Status(),
		Exhausted: m.exhausted,
	}
}

// Send marshals v as JSON and writes it as one text frame
func (m *Manager) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}
	return m.SendRaw(data)
}

// SendRaw writes data as one text frame. It returns ErrNotOpen without
// writing anything unless the connection is OPEN.
func (m *Manager) SendRaw(data []byte) error {
	m.mu.RLock()
	conn, state := m.conn, m.state
	m.mu.RUnlock()

	if state != models.StateOpen || conn == nil {
		return ErrNotOpen
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The read side notices the broken socket and reconnects
		_ = conn.Close()
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc) {
	exhausted := false
	defer m.wg.Done()
	defer func() {
		cancel()
		// The final CLOSED lands before a new cycle can start
		m.emitMu.Lock()
		defer m.emitMu.Unlock()
		m.mu.Lock()
		m.running = false
		m.exhausted = exhausted
		prev, changed := m.swapStateLocked(models.StateClosed)
		m.mu.Unlock()
		if changed {
			m.announce(prev, models.StateClosed)
		}
	}()

	for {
		m.setState(models.StateConnecting)

		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			attempts := m.recordFailure()
			m.logger.Warn("Stream connection attempt failed",
				logger.String("url", m.cfg.URL),
				logger.Int("attempt", attempts),
				logger.Int("max_attempts", m.cfg.MaxAttempts),
				logger.Err(err))
			m.setState(models.StateClosed)

			if attempts >= m.cfg.MaxAttempts {
				exhausted = true
				m.logger.Error("Stream reconnect attempts exhausted",
					logger.String("url", m.cfg.URL),
					logger.Int("attempts", attempts))
				return
			}
			if !m.wait(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.attempts = 0
		m.mu.Unlock()

		err = m.serve(ctx, conn)
		if ctx.Err() != nil || m.isClosed() {
			return
		}

		m.logger.Warn("Stream connection lost, reconnecting",
			logger.String("url", m.cfg.URL),
			logger.Duration("retry_interval", m.cfg.RetryInterval),
			logger.Err(err))
		m.setState(models.StateClosed)
		if !m.wait(ctx) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := m.dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// serve runs one open connection until it fails or ctx is cancelled
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer func() {
		close(stop)
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(models.StateOpen)

	// Ask for a full snapshot to cover anything missed while disconnected
	if err := m.Send(models.Message{Type: constants.EventRequestStatus}); err != nil {
		m.logger.Warn("Failed to request status snapshot", logger.Err(err))
	}

	if m.cfg.PingInterval > 0 {
		pongWait := 2 * m.cfg.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go m.heartbeat(conn, stop)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if m.cfg.PingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * m.cfg.PingInterval))
		}
		m.emit(Event{Kind: EventMessage, Data: data})
	}
}

func (m *Manager) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				m.logger.Debug("Heartbeat ping failed", logger.Err(err))
				return
			}
		}
	}
}

func (m *Manager) wait(ctx context.Context) bool {
	timer := time.NewTimer(m.cfg.RetryInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) recordFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	return m.attempts
}

func (m *Manager) setState(state models.ConnectionState) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	prev, changed := m.swapStateLocked(state)
	m.mu.Unlock()
	if changed {
		m.announce(prev, state)
	}
}

func (m *Manager) swapStateLocked(state models.ConnectionState) (models.ConnectionState, bool) {
	prev := m.state
	if prev == state {
		return prev, false
	}
	m.state = state
	return prev, true
}

// announce logs and emits a transition. Callers hold emitMu so events
// follow the order of state changes.
func (m *Manager) announce(prev, state models.ConnectionState) {
	m.logger.Info("Stream connection state changed",
		logger.String("url", m.cfg.URL),
		logger.String("from", string(prev)),
		logger.String("to", string(state)),
		logger.String("status", state.Status()))
	m.emit(Event{Kind: EventState, State: state})
}

// emit delivers ev in order. Once Close has started a full buffer drops
// the event instead of blocking.
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
		return
	default:
	}

	select {
	case m.events <- ev:
	case <-m.done:
	}
}
