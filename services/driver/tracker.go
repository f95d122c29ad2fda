package driver

import (
	"context"
	"sync"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
)

// Reconnector restarts a stream connection cycle
type Reconnector interface {
	Reconnect() error
}

// Tracker owns the sampler to publisher pipeline so tracking can be turned
// off and on again at runtime. Every watch it starts gets exactly one
// Track loop.
type Tracker struct {
	base      context.Context
	sampler   *Sampler
	publisher *Publisher
	stream    Reconnector
	logger    *logger.ZapLogger

	mu      sync.Mutex
	current <-chan models.LocationSample
	done    chan struct{}
}

// NewTracker creates a tracker. Watches started by Enable live until Disable
// or until ctx is done.
func NewTracker(ctx context.Context, sampler *Sampler, publisher *Publisher, s Reconnector, l *logger.ZapLogger) *Tracker {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Tracker{
		base:      ctx,
		sampler:   sampler,
		publisher: publisher,
		stream:    s,
		logger:    l.WithComponent("tracker"),
	}
}

// Enable starts sampling and publishing. It is a no-op while a watch is
// live and returns the sampler error when permission is refused.
func (t *Tracker) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sampler.Tracking() {
		return nil
	}

	// Notices left over from an earlier watch or refusal are stale
	t.discardNotices()
	samples, err := t.sampler.Start(t.base)
	if err != nil {
		return err
	}
	if samples == t.current {
		return nil
	}

	// A watch that ended on its own leaves a Track loop finishing up
	t.waitLocked()

	done := make(chan struct{})
	t.current = samples
	t.done = done
	go func() {
		defer close(done)
		t.publisher.Track(t.base, samples, t.sampler.Notices())
	}()
	t.logger.Info("Tracking enabled")
	return nil
}

// Disable stops sampling and waits for the publishing loop to finish
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sampler.Stop()
	t.waitLocked()
	t.current = nil
	t.logger.Info("Tracking disabled")
}

// Tracking reports whether a watch is live
func (t *Tracker) Tracking() bool {
	return t.sampler.Tracking()
}

// Reconnect starts a fresh connection cycle on the stream
func (t *Tracker) Reconnect() error {
	return t.stream.Reconnect()
}

func (t *Tracker) discardNotices() {
	notices := t.sampler.Notices()
	for {
		select {
		case <-notices:
		default:
			return
		}
	}
}

func (t *Tracker) waitLocked() {
	if t.done == nil {
		return
	}
	<-t.done
	t.done = nil
}
