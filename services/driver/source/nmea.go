// Package source provides device position sources for the driver sampler.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/services/driver"
	nmea "github.com/adrianmo/go-nmea"
	serial "go.bug.st/serial"
)

const knotsToMetersPerSecond = 0.514444

// errNoFix marks a well formed sentence that carries no usable fix
var errNoFix = errors.New("nmea sentence has no fix")

// Opener opens the NMEA byte stream of a receiver
type Opener func() (io.ReadCloser, error)

// SerialOpener opens a GPS receiver on a serial device
func SerialOpener(device string, baud int) Opener {
	return func() (io.ReadCloser, error) {
		port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open gps serial %s failed: %w", device, err)
		}
		return port, nil
	}
}

// NMEA is a position source reading RMC and GGA sentences from a receiver.
// Permission is the ability to open the device.
type NMEA struct {
	open   Opener
	logger *logger.ZapLogger

	mu      sync.Mutex
	port    io.ReadCloser
	latest  *models.Position
	version uint64
	served  uint64
	updated chan struct{}
	readErr error
}

// NewNMEA creates an NMEA source over open
func NewNMEA(open Opener, l *logger.ZapLogger) *NMEA {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &NMEA{
		open:    open,
		logger:  l.WithComponent("nmea"),
		updated: make(chan struct{}),
	}
}

// RequestPermission opens the receiver and starts reading sentences
func (n *NMEA) RequestPermission(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.port != nil {
		return nil
	}

	port, err := n.open()
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %v", driver.ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: %v", driver.ErrPositionUnavailable, err)
	}
	n.port = port
	n.readErr = nil
	go n.read(port)
	return nil
}

// CurrentPosition waits for a fix newer than the last one returned. Once
// the receiver stream fails it reports ErrPermissionDenied until
// RequestPermission opens it again.
func (n *NMEA) CurrentPosition(ctx context.Context) (models.Position, error) {
	for {
		n.mu.Lock()
		if n.latest != nil && n.version != n.served {
			n.served = n.version
			pos := *n.latest
			n.mu.Unlock()
			return pos, nil
		}
		if n.port == nil {
			err := n.readErr
			n.mu.Unlock()
			if err != nil {
				// A lost receiver ends the watch; RequestPermission reopens it
				return models.Position{}, fmt.Errorf("%w: gps receiver lost: %v", driver.ErrPermissionDenied, err)
			}
			return models.Position{}, fmt.Errorf("%w: receiver not open", driver.ErrPositionUnavailable)
		}
		updated := n.updated
		n.mu.Unlock()

		select {
		case <-updated:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return models.Position{}, driver.ErrTimeout
			}
			return models.Position{}, ctx.Err()
		}
	}
}

// Close releases the receiver
func (n *NMEA) Close() error {
	n.mu.Lock()
	port := n.port
	n.port = nil
	n.mu.Unlock()

	if port == nil {
		return nil
	}
	return port.Close()
}

func (n *NMEA) read(port io.ReadCloser) {
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			pos, perr := ParseSentence(line)
			switch {
			case perr == nil:
				n.publish(pos)
			case errors.Is(perr, errNoFix):
			default:
				n.logger.Debug("Skipping NMEA sentence", logger.String("line", strings.TrimSpace(line)), logger.Err(perr))
			}
		}
		if err != nil {
			n.mu.Lock()
			if n.port == port {
				n.port = nil
				n.readErr = err
				_ = port.Close()
			}
			close(n.updated)
			n.updated = make(chan struct{})
			n.mu.Unlock()
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				n.logger.Warn("GPS receiver read failed", logger.Err(err))
			}
			return
		}
	}
}

func (n *NMEA) publish(pos models.Position) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// GGA carries no course or speed; keep the ones from the last RMC
	if n.latest != nil {
		if pos.Speed == nil {
			pos.Speed = n.latest.Speed
		}
		if pos.Heading == nil {
			pos.Heading = n.latest.Heading
		}
	}

	n.latest = &pos
	n.version++
	close(n.updated)
	n.updated = make(chan struct{})
}

// ParseSentence decodes a $--RMC or $--GGA sentence into a position.
// Speed is converted from knots to meters per second. Other sentence types
// and sentences without a fix report errNoFix.
func ParseSentence(line string) (models.Position, error) {
	line = strings.TrimSpace(line)
	base, err := nmea.ParseSentence(line)
	if err != nil {
		return models.Position{}, err
	}

	switch base.Type {
	case nmea.TypeRMC:
		// time,status,lat,N/S,lon,E/W,knots,course,date,...
		if field(base, 1) != nmea.ValidRMC || field(base, 2) == "" || field(base, 4) == "" {
			return models.Position{}, errNoFix
		}
	case nmea.TypeGGA:
		// time,lat,N/S,lon,E/W,quality,satellites,hdop,...
		if q := field(base, 5); q == "" || q == nmea.Invalid || field(base, 1) == "" || field(base, 3) == "" {
			return models.Position{}, errNoFix
		}
	default:
		return models.Position{}, errNoFix
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return models.Position{}, err
	}

	switch m := sentence.(type) {
	case nmea.RMC:
		pos := models.Position{Latitude: m.Latitude, Longitude: m.Longitude}
		if field(base, 6) != "" {
			pos.Speed = models.Float64(m.Speed * knotsToMetersPerSecond)
		}
		if field(base, 7) != "" {
			pos.Heading = models.Float64(m.Course)
		}
		if m.Date.Valid && m.Time.Valid {
			pos.Timestamp = fixTime(m.Date, m.Time)
		}
		return pos, nil

	case nmea.GGA:
		pos := models.Position{Latitude: m.Latitude, Longitude: m.Longitude}
		// Rough horizontal accuracy from HDOP and a nominal 5 m receiver error
		if m.HDOP > 0 {
			pos.Accuracy = models.Float64(m.HDOP * 5)
		}
		return pos, nil
	}
	return models.Position{}, errNoFix
}

func field(s nmea.BaseSentence, i int) string {
	if i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}

// fixTime combines the RMC date and time. Two digit years from 69 on are
// the 1900s.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	year := 2000 + d.YY
	if d.YY >= 69 && d.YY < 100 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, 0, time.UTC)
}
