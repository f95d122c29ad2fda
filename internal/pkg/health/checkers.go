package health

import (
	"context"
	"errors"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/database"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/nats"
)

// RedisChecker pings Redis
func RedisChecker(client *database.RedisClient) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		if client == nil {
			return nil
		}
		return client.Ping(ctx)
	})
}

// NATSChecker reports whether the NATS connection is up
func NATSChecker(client *nats.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		if client == nil {
			return nil
		}
		if !client.IsConnected() {
			return errors.New("nats not connected")
		}
		return nil
	})
}

// StreamStatus is anything reporting a tracking stream connection status
type StreamStatus interface {
	ConnectionStatus() models.ConnectionStatus
}

// StreamChecker fails once the stream gave up reconnecting. A stream that
// is still retrying counts as healthy.
func StreamChecker(s StreamStatus) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		st := s.ConnectionStatus()
		if st.Exhausted {
			return errors.New("tracking stream stopped reconnecting")
		}
		return nil
	})
}
