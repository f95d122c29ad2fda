package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

var (
	// ErrPermissionDenied means the device refused access to its position
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrPositionUnavailable means the device could not produce a fix
	ErrPositionUnavailable = errors.New("position unavailable")
	// ErrTimeout means no fix arrived within the fix timeout
	ErrTimeout = errors.New("position request timed out")
)

const noticeBuffer = 8

// PositionSource is the device positioning capability
type PositionSource interface {
	RequestPermission(ctx context.Context) error
	CurrentPosition(ctx context.Context) (models.Position, error)
}

// NoticeKind classifies sampler notices
type NoticeKind string

const (
	NoticePermissionDenied    NoticeKind = "permission_denied"
	NoticePositionUnavailable NoticeKind = "position_unavailable"
	NoticeTimeout             NoticeKind = "timeout"
)

// Notice is a user-visible sampling problem
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// SamplerConfig holds the sampling cadence policy
type SamplerConfig struct {
	IdleInterval   time.Duration // no active load
	ActiveInterval time.Duration // while hauling a load
	FixTimeout     time.Duration
}

// DefaultSamplerConfig returns the default cadence
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		IdleInterval:   180 * time.Second,
		ActiveInterval: 30 * time.Second,
		FixTimeout:     10 * time.Second,
	}
}

// SamplerConfigFromModel builds a SamplerConfig from the driver config section
func SamplerConfigFromModel(cfg models.DriverConfig) SamplerConfig {
	c := DefaultSamplerConfig()
	if cfg.IdleInterval > 0 {
		c.IdleInterval = cfg.IdleInterval
	}
	if cfg.ActiveInterval > 0 {
		c.ActiveInterval = cfg.ActiveInterval
	}
	if cfg.FixTimeout > 0 {
		c.FixTimeout = cfg.FixTimeout
	}
	return c
}

type samplerRun struct {
	cancel  context.CancelFunc
	samples chan models.LocationSample
	retune  chan time.Duration
	done    chan struct{}
}

// Sampler produces location samples from a PositionSource at a cadence that
// depends on whether the driver has an active load. A sampler owns at most
// one watch at a time.
type Sampler struct {
	cfg    SamplerConfig
	source PositionSource
	logger *logger.ZapLogger

	mu         sync.Mutex
	run        *samplerRun
	loadID     *string
	lastNotice *Notice
	notices    chan Notice
}

// NewSampler creates a stopped sampler
func NewSampler(cfg SamplerConfig, source PositionSource, l *logger.ZapLogger) *Sampler {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Sampler{
		cfg:     cfg,
		source:  source,
		logger:  l.WithComponent("sampler"),
		notices: make(chan Notice, noticeBuffer),
	}
}

// Start requests permission and begins sampling. While already tracking it
// returns the live channel. The channel is unbuffered and is closed when
// sampling stops, so nothing sampled before Stop is delivered after it.
func (s *Sampler) Start(ctx context.Context) (<-chan models.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return s.run.samples, nil
	}

	if err := s.source.RequestPermission(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			s.noticeLocked(NoticePermissionDenied, "Location permission denied. Enable location access to share your position.")
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &samplerRun{
		cancel:  cancel,
		samples: make(chan models.LocationSample),
		retune:  make(chan time.Duration, 1),
		done:    make(chan struct{}),
	}
	s.run = run
	interval := s.intervalLocked()

	s.logger.Info("Location tracking started",
		logger.Duration("interval", interval),
		logger.Bool("active_load", s.loadID != nil))

	go s.loop(runCtx, run, interval)
	return run.samples, nil
}

// Stop cancels sampling. No sample is delivered after Stop returns.
func (s *Sampler) Stop() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	<-run.done
	s.logger.Info("Location tracking stopped")
}

// Tracking reports whether a watch is active
func (s *Sampler) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// SetActiveLoad switches to the active-load cadence without dropping the watch
func (s *Sampler) SetActiveLoad(loadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadID = models.String(loadID)
	s.retuneLocked()
}

// ClearActiveLoad switches back to the idle cadence
func (s *Sampler) ClearActiveLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadID = nil
	s.retuneLocked()
}

// ActiveLoad returns the current load id, if any
func (s *Sampler) ActiveLoad() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadID == nil {
		return "", false
	}
	return *s.loadID, true
}

// Interval returns the currently requested cadence
func (s *Sampler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalLocked()
}

// Notices returns sampling problems as they happen. Notices are dropped
// when nobody is reading.
func (s *Sampler) Notices() <-chan Notice {
	return s.notices
}

// LastNotice returns the most recent notice
func (s *Sampler) LastNotice() (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastNotice == nil {
		return Notice{}, false
	}
	return *s.lastNotice, true
}

func (s *Sampler) intervalLocked() time.Duration {
	if s.loadID != nil {
		return s.cfg.ActiveInterval
	}
	return s.cfg.IdleInterval
}

func (s *Sampler) retuneLocked() {
	if s.run == nil {
		return
	}
	interval := s.intervalLocked()
	// Keep only the latest request
	select {
	case <-s.run.retune:
	default:
	}
	s.run.retune <- interval
	s.logger.Info("Sampling cadence changed", logger.Duration("interval", interval))
}

func (s *Sampler) loop(ctx context.Context, run *samplerRun, interval time.Duration) {
	defer close(run.done)
	defer close(run.samples)

	if !s.sample(ctx, run) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-run.retune:
			ticker.Reset(d)
		case <-ticker.C:
			if !s.sample(ctx, run) {
				return
			}
		}
	}
}

// sample takes one fix. It returns false when sampling must end.
func (s *Sampler) sample(ctx context.Context, run *samplerRun) bool {
	fixCtx, cancel := context.WithTimeout(ctx, s.cfg.FixTimeout)
	pos, err := s.source.CurrentPosition(fixCtx)
	cancel()

	if ctx.Err() != nil {
		return false
	}

	if err == nil && !models.ValidCoordinates(pos.Latitude, pos.Longitude) {
		err = ErrPositionUnavailable
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrPermissionDenied):
			s.logger.Warn("Location permission revoked, tracking disabled", logger.Err(err))
			s.disable(run)
			return false
		case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			s.logger.Warn("Position request timed out", logger.Duration("timeout", s.cfg.FixTimeout))
			s.notice(NoticeTimeout, "Location request timed out. Retrying on the next update.")
		default:
			s.logger.Warn("Position unavailable", logger.Err(err))
			s.notice(NoticePositionUnavailable, "Location is currently unavailable. Retrying on the next update.")
		}
		return true
	}

	select {
	case run.samples <- models.NewLocationSample(pos):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Sampler) disable(run *samplerRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == run {
		s.run = nil
		run.cancel()
	}
	s.noticeLocked(NoticePermissionDenied, "Location permission denied. Enable location access to share your position.")
}

func (s *Sampler) notice(kind NoticeKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticeLocked(kind, message)
}

func (s *Sampler) noticeLocked(kind NoticeKind, message string) {
	n := Notice{Kind: kind, Message: message, At: models.Now()}
	s.lastNotice = &n
	select {
	case s.notices <- n:
	default:
	}
}
