package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/stream"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// ErrSessionClosed is returned by commands sent after Close
var ErrSessionClosed = errors.New("dispatcher session is closed")

const (
	noticeFetchFailed   = "Unable to load vehicles. Showing the last known positions."
	noticeExhausted     = "Live updates stopped. Reconnect to resume."
	defaultFetchTimeout = 10 * time.Second
)

// Stream is the tracking connection a session listens on
type Stream interface {
	Start(ctx context.Context) error
	Reconnect() error
	Close() error
	Events() <-chan stream.Event
	Send(v interface{}) error
	State() models.ConnectionState
	Status() models.ConnectionStatus
}

// RefreshMode tells how a refresh was served
type RefreshMode string

const (
	RefreshSnapshot RefreshMode = "snapshot" // request_status sent on the open stream
	RefreshFetch    RefreshMode = "fetch"    // REST fetch while the stream is down
)

// SessionConfig holds session timings
type SessionConfig struct {
	FetchTimeout time.Duration
	PollInterval time.Duration // zero disables timer polling
	NewRelic     *newrelic.Application
}

// SessionConfigFromModel builds a SessionConfig from the fleet section of
// the app config
func SessionConfigFromModel(cfg models.FleetConfig) SessionConfig {
	return SessionConfig{FetchTimeout: cfg.FetchTimeout, PollInterval: cfg.PollInterval}
}

type refreshCmd struct {
	reply chan RefreshMode
}

type fetchResult struct {
	vehicles []models.FleetVehicle
	err      error
}

// Session is one dispatcher view: a stream, a registry and a fetcher tied
// to a single event loop. All registry writes happen on that loop.
type Session struct {
	cfg      SessionConfig
	stream   Stream
	registry *Registry
	fetcher  VehicleFetcher
	logger   *logger.ZapLogger

	refresh chan refreshCmd
	fetched chan fetchResult

	mu           sync.RWMutex
	notice       string
	lastSnapshot time.Time
	lastFetch    time.Time
	fetching     bool
	cancel       context.CancelFunc
	started      bool
	closed       bool
	done         chan struct{}
	closeOnce    sync.Once
}

// NewSession wires a session. Nothing is started until Run.
func NewSession(cfg SessionConfig, s Stream, registry *Registry, fetcher VehicleFetcher, l *logger.ZapLogger) *Session {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Session{
		cfg:      cfg,
		stream:   s,
		registry: registry,
		fetcher:  fetcher,
		logger:   l.WithComponent("dispatcher_session"),
		refresh:  make(chan refreshCmd),
		fetched:  make(chan fetchResult, 1),
		done:     make(chan struct{}),
	}
}

// Registry returns the session's fleet registry
func (s *Session) Registry() *Registry {
	return s.registry
}

// Run loads the vehicle list once, opens the stream and processes events
// until ctx is done or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("dispatcher session already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	defer close(s.done)
	defer cancel()

	// The bootstrap fetch runs before the stream opens so a snapshot that
	// follows always replaces it.
	s.applyFetch(s.fetchOnce(ctx))

	if err := s.stream.Start(ctx); err != nil {
		return err
	}

	var poll <-chan time.Time
	if s.cfg.PollInterval > 0 {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	events := s.stream.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handleEvent(ev)
		case res := <-s.fetched:
			s.setFetching(false)
			s.applyFetch(res)
		case cmd := <-s.refresh:
			cmd.reply <- s.serveRefresh(ctx)
		case <-poll:
			// Snapshots are authoritative while the stream is open
			if s.stream.State() == models.StateOpen {
				continue
			}
			s.startFetch(ctx)
		}
	}
}

// Refresh asks for fresh data: a snapshot when the stream is open,
// otherwise a REST fetch.
func (s *Session) Refresh(ctx context.Context) (RefreshMode, error) {
	cmd := refreshCmd{reply: make(chan RefreshMode, 1)}
	select {
	case s.refresh <- cmd:
	case <-s.done:
		return "", ErrSessionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case mode := <-cmd.reply:
		return mode, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Reconnect starts a new connection cycle on the stream
func (s *Session) Reconnect() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}
	return s.stream.Reconnect()
}

// Close stops the event loop, polling and the stream. Later calls are
// no-ops.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		cancel, started := s.cancel, s.started
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		err = s.stream.Close()
		if started {
			<-s.done
		}
	})
	return err
}

// ConnectionStatus reports the stream state with the latest notice
func (s *Session) ConnectionStatus() models.ConnectionStatus {
	st := s.stream.Status()

	s.mu.RLock()
	st.Notice = s.notice
	s.mu.RUnlock()

	if st.Exhausted && st.Notice == "" {
		st.Notice = noticeExhausted
	}
	return st
}

// LastSnapshot returns when the last fleet_status was applied
func (s *Session) LastSnapshot() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSnapshot, !s.lastSnapshot.IsZero()
}

// LastFetch returns when the last successful REST fetch was merged
func (s *Session) LastFetch() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch, !s.lastFetch.IsZero()
}

func (s *Session) handleEvent(ev stream.Event) {
	switch ev.Kind {
	case stream.EventState:
		if ev.State == models.StateOpen {
			s.setNotice("")
		}
	case stream.EventMessage:
		s.handleMessage(ev.Data)
	}
}

func (s *Session) handleMessage(data []byte) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("Dropping malformed frame", logger.Err(err))
		return
	}

	switch msg.Type {
	case constants.EventLocationUpdate:
		var update models.VehicleLocationPayload
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			s.logger.Warn("Dropping malformed location update", logger.Err(err))
			return
		}
		if !s.registry.ApplyUpdate(update) {
			s.logger.Debug("Ignored location update", logger.String("vehicle_id", update.VehicleID))
		}

	case constants.EventFleetStatus:
		// Only an explicit array replaces the registry; [] clears it
		if raw := bytes.TrimSpace(msg.Payload); len(raw) == 0 || raw[0] != '[' {
			s.logger.Warn("Dropping fleet status without a vehicle list")
			return
		}
		var snapshot []models.FleetVehicle
		if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
			s.logger.Warn("Dropping malformed fleet status", logger.Err(err))
			return
		}
		kept := s.registry.ApplySnapshot(snapshot)
		s.mu.Lock()
		s.lastSnapshot = models.Now()
		s.mu.Unlock()
		s.logger.Debug("Applied fleet snapshot",
			logger.Int("received", len(snapshot)),
			logger.Int("kept", kept))

	case constants.EventError:
		s.logger.Warn("Tracking server reported an error", logger.String("message", msg.ErrorText()))

	default:
		s.logger.Debug("Ignoring frame", logger.String("type", msg.Type))
	}
}

func (s *Session) serveRefresh(ctx context.Context) RefreshMode {
	if s.stream.State() == models.StateOpen {
		msg, _ := models.NewMessage(constants.EventRequestStatus, nil)
		if err := s.stream.Send(msg); err == nil {
			return RefreshSnapshot
		}
	}
	s.startFetch(ctx)
	return RefreshFetch
}

// startFetch runs one REST fetch off the loop; its result comes back on
// the fetched channel. A fetch already in flight is not duplicated.
func (s *Session) startFetch(ctx context.Context) {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return
	}
	s.fetching = true
	s.mu.Unlock()

	go func() {
		res := s.fetchOnce(ctx)
		select {
		case s.fetched <- res:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) fetchOnce(ctx context.Context) fetchResult {
	if s.fetcher == nil {
		return fetchResult{}
	}
	ctx, end := nrpkg.StartBackgroundTransaction(ctx, s.cfg.NewRelic, "dispatcher.fetch_vehicles")
	defer end()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	vehicles, err := s.fetcher.Fetch(ctx)
	return fetchResult{vehicles: vehicles, err: err}
}

func (s *Session) applyFetch(res fetchResult) {
	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			return
		}
		s.logger.Warn("Vehicle fetch failed", logger.Err(res.err))
		s.setNotice(noticeFetchFailed)
		return
	}
	if s.fetcher == nil {
		return
	}

	merged := s.registry.Merge(res.vehicles)
	s.mu.Lock()
	s.lastFetch = models.Now()
	if s.notice == noticeFetchFailed {
		s.notice = ""
	}
	s.mu.Unlock()
	s.logger.Debug("Merged fetched vehicles", logger.Int("merged", merged))
}

func (s *Session) setFetching(v bool) {
	s.mu.Lock()
	s.fetching = v
	s.mu.Unlock()
}

func (s *Session) setNotice(notice string) {
	s.mu.Lock()
	s.notice = notice
	s.mu.Unlock()
}
