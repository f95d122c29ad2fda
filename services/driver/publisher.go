package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/stream"
)

// Sender is the outbound half of a stream connection
type Sender interface {
	State() models.ConnectionState
	Send(v interface{}) error
}

// LoadContext provides the load the driver is currently hauling
type LoadContext interface {
	ActiveLoad() (string, bool)
}

// StatusFunc builds the payload of a status_update frame
type StatusFunc func() models.StatusUpdatePayload

// LoadStatus reports in_transit while a load is active and idle otherwise.
// The agent reads no battery or signal sensor, so both go out as null.
func LoadStatus(loads LoadContext) StatusFunc {
	return func() models.StatusUpdatePayload {
		status := "idle"
		if loads != nil {
			if _, ok := loads.ActiveLoad(); ok {
				status = "in_transit"
			}
		}
		return models.StatusUpdatePayload{Status: status}
	}
}

// PublisherStatus is the driver side summary shown to the user
type PublisherStatus struct {
	Tracking   bool                   `json:"tracking"`
	Connection models.ConnectionState `json:"connection"`
	Status     string                 `json:"status"`
	LastSample *models.LocationSample `json:"last_sample,omitempty"`
	LastAck    *time.Time             `json:"last_ack,omitempty"`
	Sent       int                    `json:"sent"`
	Dropped    int                    `json:"dropped"`
	Notice     string                 `json:"notice,omitempty"`
	ServerErr  string                 `json:"server_error,omitempty"`
}

// Publisher forwards samples to the tracking server over an open stream and
// keeps the recent history regardless of delivery.
type Publisher struct {
	sender  Sender
	loads   LoadContext
	history *History
	logger  *logger.ZapLogger

	mu        sync.RWMutex
	tracking  bool
	lastAck   *time.Time
	sent      int
	dropped   int
	notice    string
	serverErr string
}

// NewPublisher creates a publisher. loads may be nil when the driver never
// hauls loads.
func NewPublisher(sender Sender, loads LoadContext, l *logger.ZapLogger) *Publisher {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Publisher{
		sender:  sender,
		loads:   loads,
		history: NewHistory(HistoryCapacity),
		logger:  l.WithComponent("publisher"),
	}
}

// History returns the recent sample history
func (p *Publisher) History() *History {
	return p.history
}

// Publish records sample and sends it when the stream is OPEN. It reports
// whether the sample was sent. A sample taken while the stream is not OPEN
// is dropped silently.
func (p *Publisher) Publish(sample models.LocationSample) (bool, error) {
	p.history.Add(sample)

	if p.sender.State() != models.StateOpen {
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Debug("Stream not open, dropping location sample",
			logger.String("state", string(p.sender.State())))
		return false, nil
	}

	payload := models.DriverLocationPayload{LocationSample: sample}
	if p.loads != nil {
		if loadID, ok := p.loads.ActiveLoad(); ok {
			payload.LoadID = models.String(loadID)
		}
	}

	msg, err := models.NewMessage(constants.EventLocationUpdate, payload)
	if err != nil {
		return false, err
	}

	if err := p.sender.Send(msg); err != nil {
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		if errors.Is(err, stream.ErrNotOpen) {
			return false, nil
		}
		p.logger.Warn("Failed to send location update", logger.Err(err))
		return false, fmt.Errorf("failed to publish location: %w", err)
	}

	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	return true, nil
}

// PublishStatus sends a status_update
func (p *Publisher) PublishStatus(status models.StatusUpdatePayload) error {
	msg, err := models.NewMessage(constants.EventStatusUpdate, status)
	if err != nil {
		return err
	}
	if err := p.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

// Track publishes every sample until samples is closed or ctx is done.
// Sampler notices are surfaced through Status and the previous notice is
// cleared on entry. A closed sample channel means tracking ended.
func (p *Publisher) Track(ctx context.Context, samples <-chan models.LocationSample, notices <-chan Notice) {
	p.mu.Lock()
	p.tracking = true
	p.notice = ""
	p.mu.Unlock()
	defer p.setTracking(false)

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notices:
			p.applyNotice(n)
		case sample, ok := <-samples:
			if !ok {
				p.drainNotices(notices)
				return
			}
			if _, err := p.Publish(sample); err != nil {
				p.logger.Debug("Location sample not delivered", logger.Err(err))
			}
		}
	}
}

// ReportStatus sends status_update frames on a fixed cadence while the
// stream is OPEN. It returns when ctx is done.
func (p *Publisher) ReportStatus(ctx context.Context, interval time.Duration, fn StatusFunc) {
	if interval <= 0 || fn == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.sender.State() != models.StateOpen {
				continue
			}
			if err := p.PublishStatus(fn()); err != nil {
				p.logger.Debug("Status update not delivered", logger.Err(err))
			}
		}
	}
}

// Consume handles inbound frames and state changes from the stream until
// events is closed or ctx is done.
func (p *Publisher) Consume(ctx context.Context, events <-chan stream.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == stream.EventMessage {
				p.HandleMessage(ev.Data)
			}
		}
	}
}

// HandleMessage interprets one inbound frame. Malformed frames are logged
// and dropped.
func (p *Publisher) HandleMessage(data []byte) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn("Dropping malformed stream frame", logger.Err(err))
		return
	}

	switch msg.Type {
	case constants.EventLocationReceived:
		ack := models.Now()
		var payload models.LocationReceivedPayload
		if len(msg.Payload) > 0 && json.Unmarshal(msg.Payload, &payload) == nil && !payload.Timestamp.IsZero() {
			ack = payload.Timestamp
		} else if ts, ok := msg.Time(); ok {
			ack = ts
		}
		p.mu.Lock()
		p.lastAck = &ack
		p.mu.Unlock()

	case constants.EventError:
		text := msg.ErrorText()
		p.mu.Lock()
		p.serverErr = text
		p.mu.Unlock()
		p.logger.Warn("Tracking server reported an error", logger.String("message", text))

	default:
		p.logger.Debug("Ignoring stream frame", logger.String("type", msg.Type))
	}
}

// LastAck returns the time of the last server acknowledgement
func (p *Publisher) LastAck() (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastAck == nil {
		return time.Time{}, false
	}
	return *p.lastAck, true
}

// Status returns the driver side summary
func (p *Publisher) Status() PublisherStatus {
	state := p.sender.State()

	p.mu.RLock()
	defer p.mu.RUnlock()

	st := PublisherStatus{
		Tracking:   p.tracking,
		Connection: state,
		Status:     state.Status(),
		Sent:       p.sent,
		Dropped:    p.dropped,
		Notice:     p.notice,
		ServerErr:  p.serverErr,
	}
	if p.lastAck != nil {
		ack := *p.lastAck
		st.LastAck = &ack
	}
	if latest, ok := p.history.Latest(); ok {
		st.LastSample = &latest
	}
	return st
}

func (p *Publisher) setTracking(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracking = v
}

func (p *Publisher) applyNotice(n Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = n.Message
}

func (p *Publisher) drainNotices(notices <-chan Notice) {
	for {
		select {
		case n := <-notices:
			p.applyNotice(n)
		default:
			return
		}
	}
}
